package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/illegible-ink/crates/internal/auth"
	"github.com/illegible-ink/crates/internal/repositories"
	"github.com/illegible-ink/crates/internal/server"
	"github.com/illegible-ink/crates/internal/services"
	"github.com/illegible-ink/crates/internal/shared"
)

// Serve wires the storefront together and runs it until interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	config := r.loadConfig(cmd)
	if host := cmd.String("host"); host != "" {
		config.Server.Host = host
	}
	if port := cmd.Int("port"); port != 0 {
		config.Server.Port = port
	}

	db, err := shared.NewDatabase(config.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	shared.ConfigureDatabase(db, config.Database.MaxOpenConns, config.Database.MaxIdleConns)
	if err := shared.RunMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	manager, err := auth.NewSessionManager(
		config.Server.SessionSecret,
		time.Duration(config.Server.SessionTTLMinutes)*time.Minute,
	)
	if err != nil {
		return fmt.Errorf("failed to create session manager: %w", err)
	}

	flow, err := auth.NewFlow(config.Credentials.Spotify, nil, r.logger)
	if err != nil {
		return fmt.Errorf("failed to create auth flow: %w", err)
	}

	payments, err := services.NewStripeService(config.Credentials.Stripe.SecretKey, r.logger)
	if err != nil {
		return fmt.Errorf("failed to create payments client: %w", err)
	}

	storefront, err := server.NewStorefront(server.StorefrontConfig{
		Catalog:  r.catalog,
		Flow:     flow,
		Payments: payments,
		Ledger:   repositories.NewPurchaseRepository(db),
		BaseURL:  config.Server.BaseURL,
		Logger:   r.logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create storefront: %w", err)
	}

	router := server.NewBasicRouter()
	router.Use(
		server.RequestLogger(r.logger, "/success"),
		server.RateLimit(
			config.Server.RateLimitRequests,
			time.Duration(config.Server.RateLimitWindowMin)*time.Minute,
		),
		server.WithSessions(manager, r.logger),
	)
	router.Handler(storefront)

	srv := server.NewServer(config.Server, router, r.logger)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	if cmd.Bool("open") {
		url := config.Server.BaseURL
		if url == "" {
			url = "http://" + srv.Addr()
		}
		if err := shared.OpenBrowser(url); err != nil {
			r.logger.Warn("failed to open browser", "url", url, "error", err)
		}
	}

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
