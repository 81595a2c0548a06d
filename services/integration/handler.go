package integration

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"fulfly-integrations/pkg/errutil"
	"fulfly-integrations/services/apikey"
)

// RegisterRoutes mounts the authenticated inbound ingestion endpoint.
func RegisterRoutes(r *gin.Engine, svc *Service, keys *apikey.Service) {
	group := r.Group("/api/v1/integrations", apikey.Auth(keys))
	group.POST("/issues", func(c *gin.Context) {
		var in CreateIssueInput
		if err := c.ShouldBindJSON(&in); err != nil {
			_ = c.Error(errutil.ValidationFailed("invalid issue payload", errutil.WithErr(err)))
			return
		}

		clientID := c.GetString(apikey.ContextClientID)
		res, err := svc.ProcessInboundIssue(c.Request.Context(), clientID, in)
		if err != nil {
			_ = c.Error(err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"request_id": uuid.NewString(),
			"data":       res,
		})
	})
}
