package link

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/raisedeck/accesslink/internal/adapter/provider"
	"github.com/raisedeck/accesslink/internal/config"
	"github.com/raisedeck/accesslink/internal/domain/access"
	"github.com/raisedeck/accesslink/internal/oauth"
	"github.com/raisedeck/accesslink/internal/repository"
)

// Service orchestrates the three-legged provider authorization flow.
type Service interface {
	Start(ctx context.Context, in StartInput) (*StartOutput, error)
	Callback(ctx context.Context, in CallbackInput) (*CallbackResult, error)
}

// StartInput carries the parameters opening an authorization attempt.
type StartInput struct {
	Provider string
	UID      string
	Column   string
}

// StartOutput returns the provider authorize URL the user agent is sent to.
type StartOutput struct {
	RedirectURL string
	State       string
}

// CallbackInput captures the provider redirect query parameters.
type CallbackInput struct {
	Provider string
	Code     string
	State    string
}

// CallbackResult describes a completed authorization. AccountLogin is empty
// when the profile fetch failed; that is a non-fatal degradation, not an
// error.
type CallbackResult struct {
	Provider     string
	UID          string
	Column       string
	AccountLogin string
}

// UpstreamError wraps a provider rejection (token endpoint failure or a
// response without an access token), keeping the provider-supplied text for
// the result page.
type UpstreamError struct {
	Provider string
	Message  string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("provider %s rejected authorization: %s", e.Provider, e.Message)
}

type service struct {
	providers map[string]provider.Endpoint
	client    provider.Client
	repo      repository.AccessRepository
	nonces    repository.StateNonceStore
	cfg       config.Config
	logger    *zap.Logger
	now       func() time.Time
}

// NewService wires the link service implementation.
func NewService(
	providers map[string]provider.Endpoint,
	client provider.Client,
	repo repository.AccessRepository,
	nonces repository.StateNonceStore,
	cfg config.Config,
	logger *zap.Logger,
) Service {
	return &service{
		providers: providers,
		client:    client,
		repo:      repo,
		nonces:    nonces,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *service) Start(ctx context.Context, in StartInput) (*StartOutput, error) {
	uid := strings.TrimSpace(in.UID)
	if uid == "" {
		return nil, fmt.Errorf("uid required: %w", access.ErrInvalidRequest)
	}
	column := strings.TrimSpace(in.Column)
	if column == "" {
		column = access.ColumnSourceControl
	}
	if !access.OAuthColumnAllowed(column) {
		return nil, fmt.Errorf("column %q not linkable: %w", column, access.ErrInvalidRequest)
	}

	ep, err := s.endpoint(in.Provider)
	if err != nil {
		return nil, err
	}

	state := oauth.EncodeState(oauth.StatePayload{
		UID:    uid,
		Column: column,
		Nonce:  uuid.NewString(),
		TS:     s.now().UnixMilli(),
	})
	if state == "" {
		return nil, fmt.Errorf("encode state failed")
	}

	authorizeURL, err := url.Parse(ep.AuthorizeURL)
	if err != nil {
		return nil, fmt.Errorf("parse authorize url: %w", err)
	}
	params := authorizeURL.Query()
	params.Set("client_id", ep.ClientID)
	params.Set("redirect_uri", s.callbackURL(ep.Name))
	params.Set("scope", ep.Scope)
	params.Set("state", state)
	if ep.Name == "gitlab" {
		params.Set("response_type", "code")
	}
	authorizeURL.RawQuery = params.Encode()

	return &StartOutput{RedirectURL: authorizeURL.String(), State: state}, nil
}

func (s *service) Callback(ctx context.Context, in CallbackInput) (*CallbackResult, error) {
	decoded := oauth.DecodeState(in.State)
	if decoded == nil {
		return nil, fmt.Errorf("undecodable state: %w", access.ErrInvalidState)
	}
	uid, _ := decoded["uid"].(string)
	uid = strings.TrimSpace(uid)
	if uid == "" {
		return nil, fmt.Errorf("state missing uid: %w", access.ErrInvalidState)
	}
	column, _ := decoded["column"].(string)
	if !access.OAuthColumnAllowed(column) {
		column = access.ColumnSourceControl
	}

	s.auditState(ctx, decoded)

	ep, err := s.endpoint(in.Provider)
	if err != nil {
		return nil, err
	}

	token, err := s.client.ExchangeCode(ctx, ep, in.Code, s.callbackURL(ep.Name))
	if err != nil {
		s.log().Warn("token exchange failed",
			zap.String("provider", ep.Name),
			zap.Error(err),
		)
		return nil, &UpstreamError{Provider: ep.Name, Message: err.Error()}
	}
	if strings.TrimSpace(token.AccessToken) == "" {
		message := token.ErrorText()
		if message == "" {
			message = "authorization was not granted"
		}
		s.log().Warn("token response missing access token",
			zap.String("provider", ep.Name),
			zap.String("provider_error", token.Error),
		)
		return nil, &UpstreamError{Provider: ep.Name, Message: message}
	}

	// Best-effort: a failed profile fetch degrades the grant (no account
	// name) without aborting the authorization.
	var accountLogin string
	grant := s.buildGrant(ep, token)
	if prof, err := s.client.FetchProfile(ctx, ep, token.AccessToken); err != nil {
		s.log().Warn("profile fetch failed",
			zap.String("provider", ep.Name),
			zap.Error(err),
		)
		grant["account_login"] = nil
	} else {
		accountLogin = prof.Login
		grant["account_login"] = prof.Login
		if prof.ID != 0 {
			grant["account_id"] = prof.ID
		}
	}

	err = s.repo.InTx(ctx, func(store repository.AccessStore) error {
		rec, err := store.Get(ctx, uid)
		if err != nil {
			return err
		}
		updated := access.MarkProviderAuthorized(rec.Section(column), ep.Name, grant, s.now())
		rec.SetSection(column, updated)
		_, err = store.Upsert(ctx, rec)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("persist authorization: %w", err)
	}

	s.log().Info("provider linked",
		zap.String("provider", ep.Name),
		zap.String("uid", uid),
		zap.String("column", column),
		zap.Bool("profile_resolved", accountLogin != ""),
	)

	return &CallbackResult{
		Provider:     ep.Name,
		UID:          uid,
		Column:       column,
		AccountLogin: accountLogin,
	}, nil
}

func (s *service) buildGrant(ep provider.Endpoint, token *provider.TokenResponse) access.ProviderGrant {
	grant := access.ProviderGrant{
		"access_token": token.AccessToken,
		"token_type":   token.TokenType,
		"scope":        token.Scope,
	}
	if token.RefreshToken != "" {
		grant["refresh_token"] = token.RefreshToken
	}
	if token.ExpiresIn > 0 {
		grant["expires_in"] = token.ExpiresIn
	}
	if token.CreatedAt > 0 {
		grant["token_created_at"] = token.CreatedAt
	}
	return grant
}

// auditState observes nonce single-use. The state token carries no integrity
// guarantee, so a replayed or unknown nonce is logged, not rejected.
func (s *service) auditState(ctx context.Context, decoded map[string]any) {
	nonce, _ := decoded["nonce"].(string)
	if strings.TrimSpace(nonce) == "" {
		return
	}
	first, err := s.nonces.Consume(ctx, nonce, s.cfg.StateNonceTTL)
	if err != nil {
		s.log().Warn("state nonce audit unavailable", zap.Error(err))
		return
	}
	if !first {
		s.log().Warn("state nonce replayed", zap.String("nonce", nonce))
	}
}

func (s *service) endpoint(name string) (provider.Endpoint, error) {
	ep, ok := s.providers[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return provider.Endpoint{}, fmt.Errorf("provider %q: %w", name, access.ErrProviderNotFound)
	}
	if !ep.Configured() {
		return provider.Endpoint{}, fmt.Errorf("provider %q: %w", ep.Name, access.ErrNotConfigured)
	}
	return ep, nil
}

func (s *service) callbackURL(providerName string) string {
	return s.cfg.BackendOrigin + "/oauth/" + providerName + "/callback"
}

func (s *service) log() *zap.Logger {
	if s != nil && s.logger != nil {
		return s.logger
	}
	return zap.L()
}
