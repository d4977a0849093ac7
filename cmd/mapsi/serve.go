package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/spf13/cobra"

	httpapi "github.com/i474232898/mapsi/internal/api/http"
	"github.com/i474232898/mapsi/internal/config"
	"github.com/i474232898/mapsi/internal/scheduler"
	"github.com/i474232898/mapsi/internal/session"
)

func newServeCmd(cfg **config.AppConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(*cfg)
		},
	}
}

func serve(cfg *config.AppConfig) error {
	a, err := newApp(cfg)
	if err != nil {
		return err
	}

	sessions := session.NewManager(a.deps)
	defer sessions.Shutdown()

	// Scheduler that sweeps idle sessions and refreshes their weather.
	sched := scheduler.New(sessions, scheduler.Options{
		IdleTimeout:     cfg.SessionIdleTimeout,
		SweepInterval:   cfg.SweepInterval,
		RefreshInterval: cfg.WeatherRefreshInterval,
	})
	if err := sched.Start(); err != nil {
		return err
	}
	defer sched.Stop()

	// Basic app configuration. WriteTimeout stays unset so event streams
	// are not cut off.
	app := fiber.New(fiber.Config{
		AppName:               "mapsi",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		ErrorHandler:          httpapi.ErrorHandler,
	})

	// Global middleware
	app.Use(logger.New())
	app.Use(recover.New())

	// Basic health endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":   "ok",
			"service":  "mapsi",
			"sessions": sessions.Len(),
		})
	})

	// API routes.
	httpapi.RegisterRoutes(app, sessions, a.history, a.layers)

	go func() {
		log.Printf("INFO: listening on :%s", cfg.Port)
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Printf("ERROR: fiber server stopped: %v", err)
		}
	}()

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("ERROR: shutdown failed: %v", err)
	}
	return nil
}
