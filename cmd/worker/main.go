package main

import (
	"log"

	"github.com/bwmarrin/snowflake"
	"github.com/hibiken/asynq"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"fulfly-integrations/pkg/config"
	"fulfly-integrations/pkg/db"
	"fulfly-integrations/pkg/logger"
	"fulfly-integrations/pkg/redis"
	"fulfly-integrations/pkg/task"
	"fulfly-integrations/services/apikey"
	"fulfly-integrations/services/client"
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
		task.Server,
		fx.Provide(
			provideSnowflakeNode,
		),
		client.Module,
		apikey.Module,
		ticket.Module,
		webhook.Worker,
		fx.Invoke(
			db.Otel,
			registerHandlers,
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

func registerHandlers(mux *asynq.ServeMux, keys *apikey.Service, hooks *webhook.Service) {
	mux.HandleFunc(apikey.TaskTouch, keys.HandleTouchTask)
	mux.HandleFunc(webhook.TaskDispatch, hooks.HandleDispatchTask)
	mux.HandleFunc(webhook.TaskDeliver, hooks.HandleDeliverTask)
}
