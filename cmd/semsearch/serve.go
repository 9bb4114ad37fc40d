package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/poiesic/semsearch/api"
	"github.com/urfave/cli/v2"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:   "serve",
		Usage:  "Serve the HTTP API and refresh outdated embeddings on a schedule",
		Action: serveAction,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address (overrides server.addr)",
			},
			&cli.StringFlag{
				Name:  "schedule",
				Usage: "Cron schedule with seconds for refreshing outdated embeddings (overrides pipeline.schedule)",
			},
			&cli.BoolFlag{
				Name:  "no-schedule",
				Usage: "Disable scheduled refreshes",
			},
		},
	}
}

func serveAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if v := c.String("addr"); v != "" {
		cfg.Server.Addr = v
	}
	if v := c.String("schedule"); v != "" {
		cfg.Pipeline.Schedule = v
	}

	engine, err := openEngine(cfg)
	if err != nil {
		return err
	}
	defer engine.Close()

	logger := slog.Default().With("component", "serve")

	if !c.Bool("no-schedule") && cfg.Pipeline.Schedule != "" {
		scheduler := engine.NewScheduler()
		if err := scheduler.Start(cfg.Pipeline.Schedule); err != nil {
			return fmt.Errorf("invalid schedule: %w", err)
		}
		defer scheduler.Stop()
		logger.Info("scheduled refresh enabled", "schedule", cfg.Pipeline.Schedule)
	}

	srv := api.NewServer(cfg.Server.Addr, engine,
		api.WithTimeouts(cfg.Server.ReadTimeout.Std(), cfg.Server.WriteTimeout.Std()))

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Std())
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
