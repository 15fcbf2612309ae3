package handler

import (
	"bytes"
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// The popup result page notifies the opener window and closes itself. The
// page shape is identical for success and failure; the opener distinguishes
// them by the ok flag in the posted message.
var resultPageTmpl = template.Must(template.New("oauth_result").Parse(`<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <title>{{.Title}}</title>
  <style>
    body { font-family: -apple-system, "Segoe UI", Roboto, sans-serif; margin: 4rem auto; max-width: 28rem; text-align: center; color: #1f2430; }
    p { line-height: 1.5; }
  </style>
</head>
<body>
  <h2>{{.Heading}}</h2>
  <p>{{.Message}}</p>
  <script>
    (function () {
      var payload = {
        type: {{.MessageType}},
        provider: {{.Provider}},
        ok: {{.OK}},
        account: {{.Account}}
      };
      if (window.opener) {
        try { window.opener.postMessage(payload, "*"); } catch (e) {}
      }
      setTimeout(function () { window.close(); }, 1500);
    })();
  </script>
</body>
</html>
`))

type resultPageData struct {
	Title       string
	Heading     string
	Message     string
	MessageType string
	Provider    string
	OK          bool
	Account     string
}

func (h *OAuthLinkHandler) renderResult(c *gin.Context, status int, providerName string, ok bool, account, message string) {
	heading := "Connection failed"
	if ok {
		heading = "Connected"
	}
	data := resultPageData{
		Title:       h.cfg.BrandName,
		Heading:     heading,
		Message:     message,
		MessageType: h.cfg.CookiePrefix + ":oauth",
		Provider:    providerName,
		OK:          ok,
		Account:     account,
	}

	var buf bytes.Buffer
	if err := resultPageTmpl.Execute(&buf, data); err != nil {
		h.logger.Error("render result page", zap.Error(err))
		c.Data(http.StatusInternalServerError, "text/html; charset=utf-8", []byte("<html><body>Something went wrong.</body></html>"))
		return
	}
	c.Data(status, "text/html; charset=utf-8", buf.Bytes())
}
