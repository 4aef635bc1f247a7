package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/MrJamesThe3rd/mpesaflow/internal/auth"
	"github.com/MrJamesThe3rd/mpesaflow/internal/bootstrap"
	"github.com/MrJamesThe3rd/mpesaflow/internal/config"
	apiHttp "github.com/MrJamesThe3rd/mpesaflow/internal/http"
	appHandler "github.com/MrJamesThe3rd/mpesaflow/internal/http/application"
	callbackHandler "github.com/MrJamesThe3rd/mpesaflow/internal/http/callback"
	txHandler "github.com/MrJamesThe3rd/mpesaflow/internal/http/transaction"
	"github.com/MrJamesThe3rd/mpesaflow/internal/mpesa"
	"github.com/MrJamesThe3rd/mpesaflow/internal/payment"
	"github.com/MrJamesThe3rd/mpesaflow/internal/retry"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to load .env", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel()})).
		With("app", cfg.App.Name))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	services, err := bootstrap.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}

	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := services.Close(closeCtx); err != nil {
			slog.Error("failed to close storage", "error", err)
		}
	}()

	verifier, err := newVerifier(cfg)
	if err != nil {
		return err
	}

	var (
		sandboxClient    = mpesa.NewClient(cfg.SandboxEndpoints())
		productionClient = mpesa.NewClient(cfg.ProductionEndpoints())
	)

	resolver := payment.EnvironmentResolver{
		auth.EnvironmentDevelopment: payment.StaticResolver{Profile: payment.Profile{
			Credentials: payment.Credentials{
				ConsumerKey:       cfg.Sandbox.ConsumerKey,
				ConsumerSecret:    cfg.Sandbox.ConsumerSecret,
				PassKey:           cfg.Sandbox.PassKey,
				BusinessShortCode: cfg.Sandbox.BusinessShortCode,
			},
			Provider: sandboxClient,
		}},
		auth.EnvironmentProduction: payment.NewTenantResolver(services.Applications, productionClient),
	}

	var (
		poller         = payment.NewPoller(retry.Policy{MaxAttempts: cfg.Poll.MaxAttempts, Interval: cfg.Poll.Interval}, cfg.Poll.Timeout)
		paymentService = payment.NewService(resolver, services.Transactions, poller)
	)

	var (
		transactionH = txHandler.NewHandler(paymentService, services.Transactions, cfg.App.PublicURL)
		callbackH    = callbackHandler.NewHandler(paymentService)
		applicationH = appHandler.NewHandler(services.Applications)
	)

	router := apiHttp.New(apiHttp.Options{
		AllowedOrigin: cfg.App.AllowedOrigin,
		AppAPIID:      cfg.Auth.AppAPIID,
		RootAPIID:     cfg.Auth.RootAPIID,
	}, verifier, transactionH, callbackH, applicationH)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		WriteTimeout:      cfg.Server.Timeout,
	}

	errCh := make(chan error, 1)

	go func() {
		slog.Info("starting server", "port", srv.Addr, "db_driver", cfg.DB.Driver, "auth_mode", cfg.Auth.Mode)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}

		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}

func newVerifier(cfg *config.Config) (auth.Verifier, error) {
	switch cfg.Auth.Mode {
	case "jwt":
		return auth.NewJWTVerifier(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer), nil
	case "remote":
		return auth.NewRemoteVerifier(cfg.Auth.VerifyURL, cfg.Auth.CacheTTL), nil
	}

	return nil, fmt.Errorf("unsupported auth mode %q", cfg.Auth.Mode)
}
