// Command api serves the community API that the console calls in remote
// gateway mode.
package main

import (
	"context"
	"fmt"
	"os"

	"powerhause/internal/app"
	"powerhause/internal/config"
	"powerhause/internal/handler"
	"powerhause/internal/pkg"
	"powerhause/internal/router"
	"powerhause/internal/session"

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
	flagSet := pflag.NewFlagSet("api", pflag.ContinueOnError)
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
	logger, err := pkg.NewLogger(cfg.Log.Level, cfg.Log.Format, "powerhause-api")
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	var closer app.Closer
	defer closer.Close(logger)

	svc, err := app.NewCommunityService(cfg, logger, &closer)
	if err != nil {
		return err
	}

	// 与控制台共用会话；disabled 时不鉴权
	var provider session.Provider
	if cfg.Auth.Mode == config.AuthEnforced {
		tokens, err := app.NewTokenProvider(context.Background(), cfg, logger, &closer)
		if err != nil {
			return err
		}
		provider = tokens
	}

	r := router.InitAPIRouter(handler.NewCommunityHandler(svc), provider, logger)
	logger.Info("community api starting", zap.String("auth_mode", string(cfg.Auth.Mode)))
	return app.Serve(cfg.HTTP.APIAddr, r, logger)
}
