package apikey

import (
	"strings"

	"fulfly-integrations/pkg/errutil"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	ContextClientID = "client_id"
	ContextKeyID    = "api_key_id"
)

// Auth guards routes behind API key authentication. On success the resolved
// client id is stored in the gin context under ContextClientID.
func Auth(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := bearerToken(c.GetHeader("Authorization"))
		if raw == "" {
			abortUnauthorized(c)
			return
		}

		identity, err := svc.Validate(c.Request.Context(), raw)
		if err != nil {
			zap.L().Error("api key validation failed", zap.Error(err))
			c.AbortWithStatusJSON(500, errutil.BaseError{
				Code:    errutil.StatusInternal,
				Message: "failed to validate api key",
			}.JSON())
			return
		}
		if identity == nil {
			abortUnauthorized(c)
			return
		}

		c.Set(ContextClientID, identity.ClientID)
		c.Set(ContextKeyID, identity.KeyID)
		c.Next()
	}
}

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func abortUnauthorized(c *gin.Context) {
	base := errutil.BaseError{
		Code:    errutil.StatusUnauthorized,
		Message: "invalid api key",
	}
	c.AbortWithStatusJSON(base.Code.HTTPStatus(), base.JSON())
}
