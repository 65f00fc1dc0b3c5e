package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"conti/internal/backend"
	"conti/internal/cli"
	apphttp "conti/internal/http"
	applog "conti/internal/log"
	"conti/internal/services"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "token" {
		if err := issueToken(os.Args[2:]); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	cfg, logger := cli.Bootstrap(applog.ComponentApp)
	logger.Info("Starting conti", "port", cfg.Port, "data_backend", cfg.DataBackend, "events_backend", cfg.EventsBackend)

	if cfg.JWTSecret == "" {
		logger.Error("JWT_SECRET is required")
		os.Exit(1)
	}

	loc, err := cfg.Location()
	if err != nil {
		logger.Error("Invalid summary timezone", "error", err, "timezone", cfg.SummaryTimezone)
		os.Exit(1)
	}

	ctx := applog.WithLogger(context.Background(), logger)
	factory := backend.NewFactory(logger.Logger)

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	storeResult, err := factory.CreateStore(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize store", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	publisher, err := factory.CreatePublisher(ctx, cfg)
	if err != nil {
		logger.Error("Failed to initialize event publisher", "error", err)
		os.Exit(1)
	}

	summaries, err := factory.CreateSummaryCache(ctx, cfg)
	if err != nil {
		logger.Error("Failed to initialize summary cache", "error", err)
		os.Exit(1)
	}

	svc := services.NewAccountService(storeResult.Store,
		services.WithPublisher(publisher),
		services.WithSummaryCache(summaries.Cache),
		services.WithLocation(loc),
		services.WithLogger(logger.WithComponent(applog.ComponentAccount)),
	)

	srv := apphttp.NewServer(":"+cfg.Port, svc, apphttp.Options{
		JWTSecret:          cfg.JWTSecret,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		GinMode:            cfg.GinMode,
		Logger:             logger,
	})

	shutdownCtx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		if err := svc.Close(); err != nil {
			logger.Error("Service close error", "error", err)
		}
		if summaries.Cleanup != nil {
			if err := summaries.Cleanup(); err != nil {
				logger.Error("Summary cache close error", "error", err)
			}
		}
	})

	logger.Info("Server listening", "addr", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err)
		os.Exit(1)
	}

	cli.WaitForShutdown(shutdownCtx, done)
}

// issueToken prints a signed bearer token for local use:
//
//	conti token -owner alice [-admin] [-ttl 24h]
func issueToken(args []string) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	owner := fs.String("owner", "", "owner id placed in the subject claim")
	admin := fs.Bool("admin", false, "grant the admin claim")
	ttl := fs.Duration("ttl", 24*time.Hour, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *owner == "" {
		return errors.New("token: -owner is required")
	}

	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	if cfg.JWTSecret == "" {
		return errors.New("token: JWT_SECRET is required")
	}

	tok, err := apphttp.GenerateToken(cfg.JWTSecret, *owner, *admin, *ttl)
	if err != nil {
		return fmt.Errorf("sign token: %w", err)
	}
	fmt.Println(tok)
	return nil
}
