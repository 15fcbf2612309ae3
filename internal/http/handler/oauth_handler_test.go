package handler

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/raisedeck/accesslink/internal/adapter/provider"
	"github.com/raisedeck/accesslink/internal/config"
	"github.com/raisedeck/accesslink/internal/domain/access"
	"github.com/raisedeck/accesslink/internal/service/link"
)

type fakeLinkService struct {
	startOut *link.StartOutput
	startErr error

	callbackRes *link.CallbackResult
	callbackErr error
}

func (f *fakeLinkService) Start(context.Context, link.StartInput) (*link.StartOutput, error) {
	return f.startOut, f.startErr
}

func (f *fakeLinkService) Callback(context.Context, link.CallbackInput) (*link.CallbackResult, error) {
	return f.callbackRes, f.callbackErr
}

func newOAuthTestRouter(svc link.Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	cfg := config.Config{BrandName: "Raisedeck", CookiePrefix: "rdk"}
	catalog := provider.DefaultCatalog(provider.Credentials{}, provider.Credentials{})
	h := NewOAuthLinkHandler(svc, cfg, catalog, zap.NewNop())

	r := gin.New()
	r.GET("/oauth/:provider", h.Start)
	r.GET("/oauth/:provider/callback", h.Callback)
	return r
}

func TestStartRedirectsToProvider(t *testing.T) {
	router := newOAuthTestRouter(&fakeLinkService{
		startOut: &link.StartOutput{RedirectURL: "https://github.com/login/oauth/authorize?client_id=x"},
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/oauth/github?uid=founder-1", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusFound, w.Code)
	require.Equal(t, "https://github.com/login/oauth/authorize?client_id=x", w.Header().Get("Location"))
}

func TestStartMissingUIDIsJSONError(t *testing.T) {
	router := newOAuthTestRouter(&fakeLinkService{
		startErr: fmt.Errorf("uid required: %w", access.ErrInvalidRequest),
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/oauth/github", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, w.Header().Get("Content-Type"), "application/json")
	require.Contains(t, w.Body.String(), `"invalid_request"`)
}

func TestStartUnknownProvider(t *testing.T) {
	router := newOAuthTestRouter(&fakeLinkService{
		startErr: fmt.Errorf("provider %q: %w", "bitbucket", access.ErrProviderNotFound),
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/oauth/bitbucket?uid=founder-1", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusNotFound, w.Code)
	require.Contains(t, w.Body.String(), `"provider_not_found"`)
}

func TestCallbackSuccessRendersResultPage(t *testing.T) {
	router := newOAuthTestRouter(&fakeLinkService{
		callbackRes: &link.CallbackResult{
			Provider:     "github",
			UID:          "founder-1",
			Column:       access.ColumnSourceControl,
			AccountLogin: "octocat",
		},
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/oauth/github/callback?code=x&state=y", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Header().Get("Content-Type"), "text/html")

	body := w.Body.String()
	require.Contains(t, body, "Connected")
	require.Contains(t, body, "GitHub authorization complete for octocat")
	require.Contains(t, body, "rdk:oauth")
	require.Contains(t, body, "octocat")
	require.Contains(t, body, "window.opener")
	require.Contains(t, body, "window.close()")
}

func TestCallbackBadStateRendersHTML400(t *testing.T) {
	router := newOAuthTestRouter(&fakeLinkService{
		callbackErr: fmt.Errorf("undecodable state: %w", access.ErrInvalidState),
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/oauth/github/callback?state=garbage", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, w.Header().Get("Content-Type"), "text/html")
	require.Contains(t, w.Body.String(), "could not verify")
	require.Contains(t, w.Body.String(), "Connection failed")
}

func TestCallbackUpstreamRejectionRenders502(t *testing.T) {
	router := newOAuthTestRouter(&fakeLinkService{
		callbackErr: &link.UpstreamError{
			Provider: "github",
			Message:  "The code passed is incorrect or expired.",
		},
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/oauth/github/callback?code=x&state=y", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadGateway, w.Code)
	require.Contains(t, w.Header().Get("Content-Type"), "text/html")
	require.Contains(t, w.Body.String(), "incorrect or expired")
}

func TestCallbackNotConfiguredRenders500(t *testing.T) {
	router := newOAuthTestRouter(&fakeLinkService{
		callbackErr: fmt.Errorf("provider %q: %w", "github", access.ErrNotConfigured),
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/oauth/github/callback?code=x&state=y", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.Contains(t, w.Body.String(), "not configured")
}

func TestCallbackUnexpectedErrorRenders500(t *testing.T) {
	router := newOAuthTestRouter(&fakeLinkService{
		callbackErr: fmt.Errorf("persist authorization: connection reset"),
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/oauth/github/callback?code=x&state=y", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.Contains(t, w.Body.String(), "Something went wrong")
}
