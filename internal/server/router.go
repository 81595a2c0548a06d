package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"fulfly-integrations/pkg/config"
	"fulfly-integrations/pkg/middleware"
)

// ProvideRouter builds the gin engine shared by all HTTP routes.
func ProvideRouter(cfg *config.Config) *gin.Engine {
	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(
		gin.Recovery(),
		middleware.RequestLog(),
		middleware.Error(),
	)

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return r
}

// ProvideHandler exposes the router as the server's http.Handler.
func ProvideHandler(r *gin.Engine) http.Handler {
	return r
}
