package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// TokenResponse models a provider token endpoint response. Some providers
// (GitHub) return errors with a 200 status and an error body, so Error and
// ErrorDescription are populated whenever the body carries them.
type TokenResponse struct {
	AccessToken      string
	RefreshToken     string
	TokenType        string
	Scope            string
	ExpiresIn        int64
	CreatedAt        int64
	Error            string
	ErrorDescription string
	Raw              map[string]any
}

// ErrorText returns the best available provider-supplied failure message.
func (t *TokenResponse) ErrorText() string {
	if t == nil {
		return ""
	}
	if t.ErrorDescription != "" {
		return t.ErrorDescription
	}
	return t.Error
}

// Profile is the subset of a provider user profile this service records.
type Profile struct {
	Login string
	ID    int64
	Raw   map[string]any
}

// Client encapsulates outbound HTTP calls to external providers.
type Client interface {
	ExchangeCode(ctx context.Context, ep Endpoint, code, redirectURI string) (*TokenResponse, error)
	FetchProfile(ctx context.Context, ep Endpoint, accessToken string) (*Profile, error)
}

// HTTPClient is the default Client implementation.
type HTTPClient struct {
	httpClient *http.Client
}

// NewHTTPClient constructs the default Client.
func NewHTTPClient(client *http.Client) *HTTPClient {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPClient{httpClient: client}
}

// ExchangeCode swaps an authorization code for tokens at the provider.
func (c *HTTPClient) ExchangeCode(ctx context.Context, ep Endpoint, code, redirectURI string) (*TokenResponse, error) {
	if strings.TrimSpace(ep.TokenURL) == "" {
		return nil, fmt.Errorf("token url missing")
	}
	data := url.Values{}
	data.Set("grant_type", "authorization_code")
	data.Set("code", code)
	data.Set("redirect_uri", redirectURI)
	data.Set("client_id", ep.ClientID)
	data.Set("client_secret", ep.ClientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ep.TokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token exchange request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read token response: %w", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		if resp.StatusCode >= 300 {
			return nil, fmt.Errorf("token exchange failed: status=%d", resp.StatusCode)
		}
		return nil, fmt.Errorf("decode token response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("token exchange failed: status=%d error=%s", resp.StatusCode, stringValue(raw["error"]))
	}

	return &TokenResponse{
		AccessToken:      stringValue(raw["access_token"]),
		RefreshToken:     stringValue(raw["refresh_token"]),
		TokenType:        stringValue(raw["token_type"]),
		Scope:            stringValue(raw["scope"]),
		ExpiresIn:        int64Value(raw["expires_in"]),
		CreatedAt:        int64Value(raw["created_at"]),
		Error:            stringValue(raw["error"]),
		ErrorDescription: stringValue(raw["error_description"]),
		Raw:              raw,
	}, nil
}

// FetchProfile loads the provider's user endpoint with the fresh token.
// GitHub exposes the account name as "login", GitLab as "username".
func (c *HTTPClient) FetchProfile(ctx context.Context, ep Endpoint, accessToken string) (*Profile, error) {
	if strings.TrimSpace(ep.ProfileURL) == "" {
		return nil, fmt.Errorf("profile url missing")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ep.ProfileURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build profile request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("profile request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read profile: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("profile fetch failed: status=%d", resp.StatusCode)
	}

	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}

	login := stringValue(raw["login"])
	if login == "" {
		login = stringValue(raw["username"])
	}
	return &Profile{
		Login: login,
		ID:    int64Value(raw["id"]),
		Raw:   raw,
	}, nil
}

func stringValue(input any) string {
	switch v := input.(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	case json.Number:
		return v.String()
	default:
		return ""
	}
}

func int64Value(input any) int64 {
	switch v := input.(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case json.Number:
		n, _ := v.Int64()
		return n
	case string:
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return 0
}
