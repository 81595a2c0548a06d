package client

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"fulfly-integrations/pkg/errutil"
)

type createClientInput struct {
	Name string `json:"name" binding:"required"`
}

// RegisterRoutes mounts the admin client endpoint.
func RegisterRoutes(r *gin.Engine, svc *Service) {
	r.POST("/admin/integrations/clients", func(c *gin.Context) {
		var in createClientInput
		if err := c.ShouldBindJSON(&in); err != nil {
			_ = c.Error(errutil.ValidationFailed("invalid client payload", errutil.WithErr(err)))
			return
		}

		record, err := svc.Create(c.Request.Context(), in.Name)
		if err != nil {
			_ = c.Error(err)
			return
		}

		c.JSON(http.StatusCreated, record)
	})
}
