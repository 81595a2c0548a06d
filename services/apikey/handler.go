package apikey

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"fulfly-integrations/pkg/errutil"
)

type createKeyInput struct {
	Scopes []string `json:"scopes"`
}

// RegisterRoutes mounts the admin key-minting endpoint. The response is the
// only place the plaintext key ever appears.
func RegisterRoutes(r *gin.Engine, svc *Service) {
	r.POST("/admin/integrations/clients/:id/keys", func(c *gin.Context) {
		var in createKeyInput
		if err := c.ShouldBindJSON(&in); err != nil {
			_ = c.Error(errutil.ValidationFailed("invalid key payload", errutil.WithErr(err)))
			return
		}

		created, err := svc.Create(c.Request.Context(), c.Param("id"), in.Scopes)
		if err != nil {
			_ = c.Error(err)
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"key":    created.Key,
			"key_id": created.Record.ID,
			"scopes": created.Record.ScopeList(),
		})
	})
}
