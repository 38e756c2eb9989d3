// Command console serves the operator console. "console token <operator-id>"
// issues a session token pair when auth is enforced.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"powerhause/internal/app"
	"powerhause/internal/config"
	"powerhause/internal/deploy"
	"powerhause/internal/gateway"
	"powerhause/internal/handler"
	"powerhause/internal/middleware"
	"powerhause/internal/pkg"
	"powerhause/internal/router"
	"powerhause/internal/service"
	"powerhause/internal/session"
	"powerhause/internal/view"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	flagSet := pflag.NewFlagSet("console", pflag.ContinueOnError)
	envFile := flagSet.String("env-file", ".env", "path to a .env file")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		return err
	}
	if err := app.LoadEnv(*envFile); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger, err := pkg.NewLogger(cfg.Log.Level, cfg.Log.Format, "powerhause-console")
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	var closer app.Closer
	defer closer.Close(logger)

	args := flagSet.Args()
	if len(args) > 0 && args[0] == "token" {
		return issueToken(cfg, logger, &closer, args[1:])
	}
	return serve(cfg, logger, &closer)
}

func issueToken(cfg *config.Config, logger *zap.Logger, closer *app.Closer, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: console token <operator-id>")
	}
	if cfg.Auth.Mode != config.AuthEnforced {
		return errors.New("tokens are only issued when CONSOLE_AUTH_MODE=enforced")
	}
	ctx := context.Background()
	tokens, err := app.NewTokenProvider(ctx, cfg, logger, closer)
	if err != nil {
		return err
	}
	pair, err := tokens.Issue(ctx, args[0])
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(pair)
}

func serve(cfg *config.Config, logger *zap.Logger, closer *app.Closer) error {
	var gw gateway.Gateway
	switch cfg.Gateway.Mode {
	case config.GatewayLocal:
		svc, err := app.NewCommunityService(cfg, logger, closer)
		if err != nil {
			return err
		}
		gw = svc
	default:
		gw = gateway.NewHTTPClient(gateway.HTTPConfig{
			BaseURL:   cfg.Gateway.BaseURL,
			APIToken:  cfg.Gateway.APIToken,
			Timeout:   cfg.Gateway.Timeout,
			TokenFrom: session.TokenFromContext,
		}, logger)
	}

	var provider session.Provider = session.Anonymous{}
	var tokens *session.TokenProvider
	if cfg.Auth.Mode == config.AuthEnforced {
		var err error
		tokens, err = app.NewTokenProvider(context.Background(), cfg, logger, closer)
		if err != nil {
			return err
		}
		provider = tokens
	}

	notifier := service.NewNotifyService(pkg.SMTPConfig{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
	}, cfg.SMTP.NotifyTo, logger)
	closer.Add(func() error {
		notifier.Wait()
		return nil
	})

	registry := view.NewRegistry(gw, logger,
		deploy.WithDelay(cfg.Deploy.HandoffDelay),
		deploy.WithObserver(notifier.OnOutcome),
	)

	r := router.InitConsoleRouter(router.ConsoleDeps{
		Console:  handler.NewConsoleHandler(registry, gw, logger),
		Auth:     handler.NewAuthHandler(tokens, registry, logger),
		Provider: provider,
		Limiter:  middleware.NewRateLimiter(cfg.RateLimit.PerSecond, cfg.RateLimit.Burst),
		Logger:   logger,
	})
	logger.Info("console starting",
		zap.String("auth_mode", string(cfg.Auth.Mode)),
		zap.String("gateway_mode", string(cfg.Gateway.Mode)),
		zap.Bool("notify", notifier.Enabled()),
	)
	return app.Serve(cfg.HTTP.ConsoleAddr, r, logger)
}
