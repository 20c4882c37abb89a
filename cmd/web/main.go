// Command web serves the measures HTTP API: the single-table transforms,
// pipeline runs, health probes and Prometheus metrics.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"sroanalysis/internal/app"
	"sroanalysis/internal/config"
	"sroanalysis/internal/infrastructure"
)

func main() {
	configPath := flag.String("config", "", "YAML config file (defaults to SRO_CONFIG_FILE or config.yaml lookup)")
	baseDir := flag.String("base", "", "base directory relative paths are resolved against (defaults to the working directory)")
	port := flag.Int("port", 0, "listen port, overriding the configuration")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		cfg *config.Config
		err error
	)
	if *configPath == "" {
		cfg, err = config.Load()
	} else {
		cfg, err = config.LoadFrom(*configPath)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "web: failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}

	paths, err := cfg.ResolvePaths(*baseDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "web: %v\n", err)
		os.Exit(1)
	}
	cfg.Logging.FilePath = paths.Resolve(cfg.Logging.FilePath)

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "web: failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer infrastructure.CloseLogFile()

	application, err := app.New(ctx, cfg, paths, logger)
	if err != nil {
		logger.Error("Failed to initialize application", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := application.Run(ctx); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
