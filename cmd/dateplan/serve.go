package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dukerupert/dateplan/internal/config"
	"github.com/dukerupert/dateplan/internal/database"
	"github.com/dukerupert/dateplan/internal/logging"
	"github.com/dukerupert/dateplan/internal/push"
	"github.com/dukerupert/dateplan/internal/reminder"
	"github.com/dukerupert/dateplan/internal/server"
)

func newServeCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(root.configPath)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)

	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	horizon, err := cfg.Horizon()
	if err != nil {
		return err
	}

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	opts := server.Options{
		Location:           loc,
		Horizon:            horizon,
		RateLimitPerMinute: cfg.RateLimit.PerMinute,
	}
	if cfg.Reminder.Enabled {
		opts.Reminder = &reminder.Config{
			Cron:      cfg.Reminder.Cron,
			DaysAhead: cfg.Reminder.DaysAhead,
			Location:  loc,
		}
	}
	if cfg.Push.Enabled() {
		opts.Push = &push.Config{
			VAPIDPublicKey:  cfg.Push.VAPIDPublicKey,
			VAPIDPrivateKey: cfg.Push.VAPIDPrivateKey,
			Subscriber:      cfg.Push.Subscriber,
		}
	} else {
		logger.Info("web push disabled: no VAPID keys configured")
	}
	srv, err := server.New(db, opts, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go srv.Limiter().RunSweeper(ctx, 5*time.Minute)
	if r := srv.Reminder(); r != nil {
		r.Start(ctx)
		defer r.Stop()
	}

	httpServer := &http.Server{
		Addr:         cfg.Listen,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("dateplan listening", "addr", cfg.Listen, "timezone", loc.String(), "horizon", cfg.CalendarHorizon)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
