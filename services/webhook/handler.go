package webhook

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"fulfly-integrations/pkg/errutil"
)

// RegisterRoutes mounts the admin subscription endpoint.
func RegisterRoutes(r *gin.Engine, svc *Service) {
	r.POST("/admin/integrations/webhooks", func(c *gin.Context) {
		var in CreateSubscriptionInput
		if err := c.ShouldBindJSON(&in); err != nil {
			_ = c.Error(errutil.ValidationFailed("invalid subscription payload", errutil.WithErr(err)))
			return
		}

		sub, err := svc.CreateSubscription(c.Request.Context(), in)
		if err != nil {
			_ = c.Error(err)
			return
		}

		c.JSON(http.StatusCreated, sub)
	})
}
