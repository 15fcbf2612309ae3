package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/raisedeck/accesslink/internal/adapter/provider"
	"github.com/raisedeck/accesslink/internal/config"
	"github.com/raisedeck/accesslink/internal/domain/access"
	"github.com/raisedeck/accesslink/internal/service/link"
)

// OAuthLinkHandler serves the provider authorization-linking endpoints. The
// callback always renders HTML: the flow runs in a popup whose only channel
// back to the application is a cross-window message plus window closing.
type OAuthLinkHandler struct {
	Link      link.Service
	cfg       config.Config
	providers map[string]provider.Endpoint
	logger    *zap.Logger
}

// NewOAuthLinkHandler creates the handler.
func NewOAuthLinkHandler(svc link.Service, cfg config.Config, providers map[string]provider.Endpoint, logger *zap.Logger) *OAuthLinkHandler {
	return &OAuthLinkHandler{Link: svc, cfg: cfg, providers: providers, logger: logger}
}

// displayName resolves the human-facing provider name for the result page.
func (h *OAuthLinkHandler) displayName(providerName string) string {
	if ep, ok := h.providers[providerName]; ok && ep.DisplayName != "" {
		return ep.DisplayName
	}
	return providerName
}

// Start opens an authorization attempt and redirects to the provider.
func (h *OAuthLinkHandler) Start(c *gin.Context) {
	out, err := h.Link.Start(c.Request.Context(), link.StartInput{
		Provider: c.Param("provider"),
		UID:      c.Query("uid"),
		Column:   c.Query("column"),
	})
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}
	c.Redirect(http.StatusFound, out.RedirectURL)
}

// Callback completes the flow. Every terminal state is an HTML page; only the
// status code distinguishes the cause (400 bad state, 500 misconfiguration,
// 502 provider rejection).
func (h *OAuthLinkHandler) Callback(c *gin.Context) {
	providerName := c.Param("provider")
	res, err := h.Link.Callback(c.Request.Context(), link.CallbackInput{
		Provider: providerName,
		Code:     c.Query("code"),
		State:    c.Query("state"),
	})
	if err == nil {
		message := h.displayName(res.Provider) + " authorization complete."
		if res.AccountLogin != "" {
			message = h.displayName(res.Provider) + " authorization complete for " + res.AccountLogin + "."
		}
		h.renderResult(c, http.StatusOK, res.Provider, true, res.AccountLogin, message+" You can close this window.")
		return
	}

	logger := h.logger
	var upstream *link.UpstreamError
	switch {
	case errors.As(err, &upstream):
		logger.Warn("provider rejected authorization", zap.Error(err))
		h.renderResult(c, http.StatusBadGateway, upstream.Provider, false, "", upstream.Message)
	case errors.Is(err, access.ErrInvalidState), errors.Is(err, access.ErrInvalidRequest), errors.Is(err, access.ErrProviderNotFound):
		logger.Warn("callback could not be verified", zap.Error(err))
		h.renderResult(c, http.StatusBadRequest, providerName, false, "", "We could not verify the authorization request.")
	case errors.Is(err, access.ErrNotConfigured):
		logger.Error("provider credentials missing", zap.Error(err))
		h.renderResult(c, http.StatusInternalServerError, providerName, false, "", "This provider is not configured. Please contact support.")
	default:
		logger.Error("callback failed", zap.Error(err))
		h.renderResult(c, http.StatusInternalServerError, providerName, false, "", "Something went wrong while saving the authorization.")
	}
}
