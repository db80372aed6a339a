package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/harveywai/leasedesk/pkg/api"
	"github.com/harveywai/leasedesk/pkg/auth"
	"github.com/harveywai/leasedesk/pkg/config"
	"github.com/harveywai/leasedesk/pkg/database"
	"github.com/harveywai/leasedesk/pkg/logging"
	"github.com/harveywai/leasedesk/pkg/metrics"
	"github.com/harveywai/leasedesk/pkg/notify"
	"github.com/harveywai/leasedesk/pkg/providers/domain"
	"github.com/harveywai/leasedesk/pkg/sweep"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync() //nolint:errcheck

	if err := run(cfg, log); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database connection and run migrations.
	db, err := database.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return err
	}
	store := database.NewStore(db)

	// Seed default admin user if no users exist.
	if err := store.SeedAdmin(ctx, cfg.Auth.AdminPassword, log); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}

	issuer, err := auth.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.AccessTTL, cfg.Auth.RefreshTTL)
	if err != nil {
		return err
	}

	m := metrics.New()
	resolver := domain.NewWhoisResolver(log, cfg.Sweep.WhoisTimeout, cfg.Sweep.ProbeTLS)

	var notifyOpts []notify.Option
	if cfg.Notify.TelegramAPI != "" {
		notifyOpts = append(notifyOpts, notify.WithTelegramAPI(cfg.Notify.TelegramAPI))
	}
	notifier := notify.New(store, log, notifyOpts...)

	sweeper := sweep.New(store, resolver, notifier, m, log, sweep.Options{
		Thresholds:   cfg.Expiry,
		Interval:     cfg.Sweep.Interval,
		Workers:      cfg.Sweep.Workers,
		WhoisRefresh: cfg.Sweep.WhoisRefresh,
		Out:          os.Stdout,
	})
	if cfg.Sweep.Enabled {
		go func() {
			if err := sweeper.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("sweeper stopped", zap.Error(err))
			}
		}()
	}

	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	handler := api.New(api.Options{
		Store:        store,
		Issuer:       issuer,
		Log:          log,
		Thresholds:   cfg.Expiry,
		PageSizes:    cfg.List.PageSizes,
		CookieSecure: cfg.Auth.CookieSecure,
		Resolver:     resolver,
		Refresher:    sweeper,
		Metrics:      m,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
