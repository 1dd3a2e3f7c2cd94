package main

import (
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	_ "github.com/tanpawarit/Chative-Trip-Planner/pkg/logger/autoload"
)

func main() {
	app := fx.New(
		fx.WithLogger(func() fxevent.Logger { return fxevent.NopLogger }),
		fx.Provide(
			provideAppConfig,
			provideLLMConfig,
			provideStore,
			provideRegistry,
			provideToolGateway,
			provideAuditSinks,
			provideOrchestrator,
			provideRouter,
		),
		fx.Invoke(startServer),
	)
	app.Run()
}
