package main

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/spf13/cobra"

	httpapi "github.com/i474232898/pm-monitor/internal/api/http"
	"github.com/i474232898/pm-monitor/internal/monitor"
	"github.com/i474232898/pm-monitor/internal/scheduler"
	"github.com/i474232898/pm-monitor/internal/store"
)

var serveLocalOnly bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run monitoring cycles on a schedule and serve the results over HTTP",
	RunE:  serve,
}

func init() {
	serveCmd.Flags().BoolVar(&serveLocalOnly, "local-only", false, "write documents locally without uploading them")
	rootCmd.AddCommand(serveCmd)
}

func serve(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	// In-memory report store with configured retention.
	memStore := store.NewMemoryStore(cfg.StoreMaxReports, cfg.StoreMaxAge)

	a, err := newApp(ctx, cfg, logger, serveLocalOnly, monitor.WithReportStore(memStore))
	if err != nil {
		logger.Error("startup failed", "error", err)
		return err
	}
	defer a.Close()

	sched := scheduler.New(scheduler.Config{
		Interval: cfg.FetchInterval,
		Cron:     cfg.FetchCron,
		Timeout:  cfg.RunTimeout,
	}, a.service, logger)
	if err := sched.Start(); err != nil {
		return err
	}
	defer sched.Stop()

	app := newHTTPApp(memStore)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			logger.Error("fiber server stopped", "error", err)
		}
	}()
	logger.Info("http server listening", "port", cfg.Port)

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("error during shutdown", "error", err)
	}
	return nil
}

func newHTTPApp(reports httpapi.ReportReader) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               appName,
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	app.Use(fiberlogger.New())
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": appName,
		})
	})

	httpapi.RegisterRoutes(app, reports)
	return app
}
