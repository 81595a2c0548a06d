package webhook

import (
	"go.uber.org/fx"
)

var Module = fx.Module("webhook.module",
	fx.Provide(
		NewService,
	),
)

// Worker adds the retry scheduler on top of the service; only the worker
// binary runs it.
var Worker = fx.Module("webhook.worker",
	Module,
	fx.Provide(NewScheduler),
	fx.Invoke(StartScheduler),
)
