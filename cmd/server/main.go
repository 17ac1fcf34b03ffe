package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"go.uber.org/zap"

	"github.com/eugenenazirov/gin-bindings/internal/application"
	"github.com/eugenenazirov/gin-bindings/internal/config"
	"github.com/eugenenazirov/gin-bindings/internal/logging"
)

var signalNotify = signal.Notify

func main() {
	kingpinApp, overrides := newCommandLine()
	kingpin.MustParse(kingpinApp.Parse(os.Args[1:]))

	cfg, err := config.Load(overrides())
	kingpinApp.FatalIfError(err, "load configuration")

	logger, err := logging.New(cfg.LogLevel)
	kingpinApp.FatalIfError(err, "initialize logger")
	defer func() {
		_ = logger.Sync()
	}()

	app, err := application.New(context.Background(), cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize application", zap.Error(err))
	}

	if err := app.Start(); err != nil {
		logger.Fatal("failed to start server", zap.Error(err))
	}

	shutdown(app.Server(), cfg.ShutdownGracePeriod, logger)
}

// newCommandLine declares the server flags. The returned function builds
// config overrides from whatever was parsed, leaving unset flags nil.
func newCommandLine() (*kingpin.Application, func() *config.CLIOverrides) {
	app := kingpin.New("bindings-server", "Serves resolved gin binding tables over HTTP")
	configFile := app.Flag("config", "Path to a YAML or .gin configuration file").String()
	port := app.Flag("port", "HTTP port exposed by the service").String()
	bindingFiles := app.Flag("binding-file", "Binding file to preload as a table (repeatable)").Strings()
	searchPaths := app.Flag("search-path", "Directory searched for included files (repeatable)").Strings()
	logLevel := app.Flag("log-level", "Log level: debug, info, warning, error, critical").String()
	rateLimitRPS := app.Flag("rate-limit-rps", "Requests per second allowed (set 0 to disable)").Default("-1").Float64()
	rateLimitBurst := app.Flag("rate-limit-burst", "Burst capacity for rate limiter").Default("-1").Int()

	return app, func() *config.CLIOverrides {
		overrides := &config.CLIOverrides{
			ConfigFile:   *configFile,
			BindingFiles: *bindingFiles,
			SearchPaths:  *searchPaths,
		}
		if *port != "" {
			overrides.Port = port
		}
		if *logLevel != "" {
			overrides.LogLevel = logLevel
		}
		if *rateLimitRPS >= 0 {
			overrides.RateLimitRPS = rateLimitRPS
		}
		if *rateLimitBurst >= 0 {
			overrides.RateLimitBurst = rateLimitBurst
		}
		return overrides
	}
}

func shutdown(server *http.Server, timeout time.Duration, logger *zap.Logger) {
	quit := make(chan os.Signal, 1)
	signalNotify(quit, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	<-quit
	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Warn("graceful shutdown failed", zap.Error(err))
		if closeErr := server.Close(); closeErr != nil {
			logger.Error("forced close failed", zap.Error(closeErr))
		}
	}
}
