package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mailparser_server/config"
	"mailparser_server/internal/bootstrap"
	"mailparser_server/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/joho/godotenv"
)

const (
	shutdownTimeout = 30 * time.Second // Maximum time to wait for graceful shutdown
)

func main() {
	// Load .env file if exists (for local development)
	envErr := godotenv.Load()

	mode := flag.String("mode", "all", "Run mode: api, worker, all, parse, export")
	dir := flag.String("dir", ".", "export: directory of result JSON files")
	columns := flag.String("columns", "", "export: YAML column map (default columns when empty)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config: %v", err)
	}

	logger.Init(logger.Config{
		Level:      logger.ParseLevel(cfg.LogLevel),
		Service:    "mailparser",
		Output:     os.Stderr,
		File:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
	})
	if envErr != nil {
		logger.Debug("No .env file found, using environment variables")
	}

	if *mode == "export" {
		if err := bootstrap.RunExport(*dir, *columns, os.Stdout); err != nil {
			logger.Fatal("Export failed: %v", err)
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, cleanup, err := bootstrap.NewDependencies(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize dependencies: %v", err)
	}
	defer cleanup()

	switch *mode {
	case "api":
		runAPI(ctx, cfg, deps)
	case "worker":
		runWorker(ctx, cfg, deps)
	case "all":
		go runWorker(ctx, cfg, deps)
		runAPI(ctx, cfg, deps)
	case "parse":
		if err := bootstrap.RunParse(ctx, deps.Service, flag.Args(), os.Stdout); err != nil {
			logger.Error("Parse failed: %v", err)
			cleanup()
			os.Exit(1)
		}
	default:
		logger.Fatal("Unknown mode: %s", *mode)
	}
}

func runAPI(ctx context.Context, cfg *config.Config, deps *bootstrap.Dependencies) {
	app := bootstrap.NewAPI(cfg, deps)

	go func() {
		<-ctx.Done()
		logger.Info("Shutting down API server (timeout: %v)...", shutdownTimeout)
		shutdown(app)
	}()

	addr := ":" + cfg.Port
	logger.Info("Starting API server on %s", addr)
	if err := app.Listen(addr); err != nil {
		logger.Fatal("Failed to start server: %v", err)
	}
}

func shutdown(app *fiber.App) {
	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		logger.Error("Error shutting down: %v", err)
		return
	}
	logger.Info("API server shut down gracefully")
}

func runWorker(ctx context.Context, cfg *config.Config, deps *bootstrap.Dependencies) {
	worker, err := bootstrap.NewWorker(ctx, cfg, deps)
	if err != nil {
		logger.Fatal("Failed to initialize worker: %v", err)
	}

	go func() {
		<-ctx.Done()
		logger.Info("Shutting down worker (timeout: %v)...", shutdownTimeout)

		done := make(chan struct{})
		go func() {
			worker.Stop()
			close(done)
		}()

		select {
		case <-done:
			logger.Info("Worker shut down gracefully")
		case <-time.After(shutdownTimeout):
			logger.Warn("Worker shutdown timed out, forcing exit")
			os.Exit(1)
		}
	}()

	logger.Info("Starting worker...")
	if err := worker.Start(); err != nil {
		logger.Fatal("Failed to start worker: %v", err)
	}
}
