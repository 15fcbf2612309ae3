package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"github.com/raisedeck/accesslink/internal/config"
	"github.com/raisedeck/accesslink/internal/http/handler"
	httpmiddleware "github.com/raisedeck/accesslink/internal/http/middleware"
	"github.com/raisedeck/accesslink/internal/middleware"
)

// NewRouter wires Gin routes and middleware.
func NewRouter(cfg config.Config, logger *zap.Logger, accessHandler *handler.AccessHandler, oauthHandler *handler.OAuthLinkHandler, rateLimiter *middleware.RateLimiter) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpmiddleware.RequestLogger(logger))
	if rateLimiter != nil {
		r.Use(rateLimiter.Handler())
	}
	r.Use(middleware.CORS(cfg))
	r.Use(otelgin.Middleware(cfg.ServiceName))

	founders := r.Group("/founders")
	{
		founders.GET("/:uid/validation/access", accessHandler.Get)
		founders.POST("/:uid/validation/access", accessHandler.Save)
	}

	oauth := r.Group("/oauth")
	{
		oauth.GET("/:provider", oauthHandler.Start)
		oauth.GET("/:provider/callback", oauthHandler.Callback)
	}

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return r
}
