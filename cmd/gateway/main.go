package main

import (
	"log"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"fulfly-integrations/internal/server"
	"fulfly-integrations/pkg/config"
	"fulfly-integrations/pkg/db"
	"fulfly-integrations/pkg/logger"
	"fulfly-integrations/pkg/redis"
	"fulfly-integrations/pkg/task"
	"fulfly-integrations/services/apikey"
	"fulfly-integrations/services/bootstrap"
	"fulfly-integrations/services/client"
	"fulfly-integrations/services/integration"
	"fulfly-integrations/services/ticket"
	"fulfly-integrations/services/webhook"
)

func main() {
	opts := []fx.Option{
		config.Module,
		logger.Module,
		db.Module,
		redis.Module,
		task.Client,
		fx.Provide(
			provideSnowflakeNode,
			server.ProvideRouter,
			server.ProvideHandler,
			server.ProvideHTTPServer,
		),
		client.Module,
		apikey.Module,
		ticket.Module,
		integration.Module,
		webhook.Module,
		bootstrap.Module,
		fx.Invoke(
			db.Otel,
			registerRoutes,
			server.Run,
		),
		fxLogger,
	}

	if err := fx.ValidateApp(opts...); err != nil {
		log.Fatalf("fx validation failed: %v", err)
	}

	app := fx.New(opts...)

	app.Run()
}

var fxLogger = fx.WithLogger(func(cfg *config.Config, logger *zap.Logger) fxevent.Logger {
	return fxevent.NopLogger
})

func provideSnowflakeNode() (*snowflake.Node, error) {
	return snowflake.NewNode(1)
}

type routeParams struct {
	fx.In
	Router   *gin.Engine
	Clients  *client.Service
	Keys     *apikey.Service
	Issues   *integration.Service
	Webhooks *webhook.Service
}

func registerRoutes(p routeParams) {
	client.RegisterRoutes(p.Router, p.Clients)
	apikey.RegisterRoutes(p.Router, p.Keys)
	webhook.RegisterRoutes(p.Router, p.Webhooks)
	integration.RegisterRoutes(p.Router, p.Issues, p.Keys)
}
