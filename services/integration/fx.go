package integration

import (
	"go.uber.org/fx"
)

var Module = fx.Module("integration.module",
	fx.Provide(
		NewService,
	),
)
