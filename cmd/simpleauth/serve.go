// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SimpleAuth Contributors

package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/yoshisuproject/simpleauth/internal/auth"
	authpg "github.com/yoshisuproject/simpleauth/internal/auth/postgres"
	"github.com/yoshisuproject/simpleauth/internal/config"
	"github.com/yoshisuproject/simpleauth/internal/logging"
	"github.com/yoshisuproject/simpleauth/internal/mail"
	"github.com/yoshisuproject/simpleauth/internal/observability"
	"github.com/yoshisuproject/simpleauth/internal/store"
	"github.com/yoshisuproject/simpleauth/internal/web"
)

// shutdownTimeout bounds graceful shutdown of the HTTP servers.
const shutdownTimeout = 10 * time.Second

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the authentication server",
		Long: `Start the HTTP server: login and logout, password reset links,
per-route access control, and the hourly reset-token cleanup.`,
		RunE: runServe,
	}
	registerConfigFlags(cmd)
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	if configFile == "" {
		configFile, _ = cmd.Root().PersistentFlags().GetString("config")
	}

	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return err
	}

	logging.SetDefault("simpleauth", version, cfg.Log.Format, cfg.Log.Level)
	logger := logging.Setup("simpleauth", version, cfg.Log.Format, cfg.Log.Level, nil)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := store.Connect(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer pool.Close()

	users := authpg.NewUserRepository(pool)
	sessions := authpg.NewSessionRepository(pool)
	tokens := authpg.NewResetTokenRepository(pool)
	hasher := auth.NewArgon2idHasher()

	svc, err := auth.NewServiceWithLogger(users, sessions, hasher, logger)
	if err != nil {
		return err
	}

	resets, err := auth.NewPasswordResetServiceWithLogger(users, tokens, hasher, cfg.Reset.TokenTTL, logger)
	if err != nil {
		return err
	}

	var mailer mail.Mailer
	switch cfg.Mail.Mode {
	case "smtp":
		mailer, err = mail.NewSMTPMailerWithLogger(mail.SMTPConfig{
			Addr:     cfg.Mail.Addr,
			From:     cfg.Mail.From,
			Username: cfg.Mail.Username,
			Password: cfg.Mail.Password,
		}, logger)
		if err != nil {
			return err
		}
	default:
		mailer = mail.NewNopMailer(logger)
	}

	var metrics *observability.Metrics
	var obsServer *observability.Server
	if cfg.Observability.Enabled {
		obsServer = observability.NewServer(cfg.Observability.Addr, pingReadiness(pool))
		metrics = obsServer.Metrics()
	}

	cleanup, err := auth.NewTokenCleanup(tokens, cfg.Reset.CleanupInterval, logger, metrics.RecordTokensCleaned)
	if err != nil {
		return err
	}

	rules, err := web.DefaultRules(cfg.Access.Excluded)
	if err != nil {
		return err
	}

	cookies := web.NewCookieManager(cfg.Cookie)

	server, err := web.NewServer(cfg.Server.Addr, svc, rules, cookies, cfg.URLs, metrics, logger)
	if err != nil {
		return err
	}

	handlers, err := web.NewHandlers(svc, resets, mailer, cookies, cfg.Server.BaseURL, cfg.URLs, metrics, logger)
	if err != nil {
		return err
	}
	web.RegisterRoutes(server, handlers)

	var obsErrCh <-chan error
	if obsServer != nil {
		obsErrCh, err = obsServer.Start()
		if err != nil {
			return err
		}
	}

	webErrCh, err := server.Start()
	if err != nil {
		return err
	}

	cleanupDone := make(chan struct{})
	go func() {
		defer close(cleanupDone)
		cleanup.Run(ctx)
	}()

	logger.Info("simpleauth started", "addr", server.Addr())

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-webErrCh:
		if err != nil {
			runErr = oops.With("component", "web").Wrap(err)
		}
	case err := <-obsErrCh:
		if err != nil {
			runErr = oops.With("component", "observability").Wrap(err)
		}
	}
	stop()
	<-cleanupDone

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Stop(shutdownCtx); err != nil && runErr == nil {
		runErr = err
	}
	if obsServer != nil {
		if err := obsServer.Stop(shutdownCtx); err != nil && runErr == nil {
			runErr = err
		}
	}

	return runErr
}

// pingReadiness reports ready once the database answers a ping.
func pingReadiness(pinger interface {
	Ping(ctx context.Context) error
}) observability.ReadinessChecker {
	return func() bool {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return pinger.Ping(ctx) == nil
	}
}
