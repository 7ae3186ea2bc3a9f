package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/evgeny-myasishchev/ledger.simple-banking/pkg/api"
	"github.com/evgeny-myasishchev/ledger.simple-banking/pkg/app"
	"github.com/evgeny-myasishchev/ledger.simple-banking/pkg/dal"
	"github.com/evgeny-myasishchev/ledger.simple-banking/pkg/ledger"
	"github.com/evgeny-myasishchev/ledger.simple-banking/pkg/lib-core-golang/diag"
	"github.com/evgeny-myasishchev/ledger.simple-banking/pkg/lib-core-golang/router"
	"github.com/evgeny-myasishchev/ledger.simple-banking/pkg/version"
)

var logger = diag.CreateLogger()

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	appCfg, err := app.LoadConfig()
	if err != nil {
		logger.WithError(err).Error(ctx, "Failed to load app config")
		os.Exit(1)
	}

	diag.SetupLoggingSystem(func(setup diag.LoggingSystemSetup) {
		setup.SetLogMode(appCfg.Log.Mode)
		setup.SetLogLevel(appCfg.Log.Level)
	})

	injector := app.BootstrapServices(ctx, appCfg)
	if err := injector(func(storage dal.Storage, svc ledger.Service) error {
		defer storage.Close()
		if err := storage.Setup(ctx); err != nil {
			return err
		}
		return router.StartServer(ctx, appCfg.Server.Port, func(r router.Router) {
			r.Use(diag.NewRecoverMiddleware())
			r.Use(diag.NewRequestIDMiddleware())
			r.Use(diag.NewLogRequestsMiddleware(
				diag.IgnorePath("/v1/healthcheck/ping"),
				diag.ObfuscateHeaders("authorization"),
			))
			api.SetupRoutes(r, svc)
		}, router.WithHandlerWrapper(func(next http.Handler) http.Handler {
			return otelhttp.NewHandler(next, version.AppName)
		}))
	}); err != nil {
		logger.WithError(err).Error(ctx, "Server failed")
		os.Exit(1)
	}
}
