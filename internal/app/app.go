// Package app wires configuration into the components shared by the
// console and the community API server.
package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"powerhause/internal/config"
	"powerhause/internal/pkg"
	"powerhause/internal/repository/mysql"
	"powerhause/internal/repository/redis"
	"powerhause/internal/service"
	"powerhause/internal/session"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// LoadEnv 读取 .env 文件，文件不存在不算错误
func LoadEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Closer 按注册的逆序释放资源
type Closer struct {
	fns []func() error
}

func (c *Closer) Add(fn func() error) {
	c.fns = append(c.fns, fn)
}

func (c *Closer) Close(logger *zap.Logger) {
	for i := len(c.fns) - 1; i >= 0; i-- {
		if err := c.fns[i](); err != nil {
			logger.Warn("close failed", zap.Error(err))
		}
	}
}

// NewCommunityService 连接 MySQL 与 Kafka，构造本地社区服务
func NewCommunityService(cfg *config.Config, logger *zap.Logger, closer *Closer) (*service.CommunityService, error) {
	if err := mysql.InitDB(cfg.Database.DSN); err != nil {
		return nil, err
	}
	closer.Add(mysql.Close)

	producer, err := pkg.NewKafkaProducer(pkg.KafkaConfig{Brokers: cfg.Kafka.Brokers, Topic: cfg.Kafka.Topic})
	if err != nil {
		return nil, err
	}
	closer.Add(producer.Close)

	var verifier service.CredentialVerifier
	if cfg.Telegram.Verify {
		verifier = service.NewTelegramVerifier(cfg.Telegram.BaseURL, logger)
	}
	repo := mysql.NewCommunityRepository(mysql.DB)
	return service.NewCommunityService(repo, producer, verifier, logger), nil
}

// NewTokenProvider 连接 Redis 并构造 JWT 会话校验
func NewTokenProvider(ctx context.Context, cfg *config.Config, logger *zap.Logger, closer *Closer) (*session.TokenProvider, error) {
	if err := redis.Init(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB); err != nil {
		return nil, err
	}
	closer.Add(redis.Close)

	issuer := &pkg.TokenIssuer{
		AccessSecret:  []byte(cfg.Auth.AccessSecret),
		RefreshSecret: []byte(cfg.Auth.RefreshSecret),
		AccessTTL:     cfg.Auth.AccessTTL,
		RefreshTTL:    cfg.Auth.RefreshTTL,
	}
	store := redis.NewSessionRepository(redis.Client, cfg.Auth.AccessTTL)
	return session.NewTokenProvider(issuer, store, logger), nil
}

// Serve 运行 HTTP 服务直到收到退出信号
func Serve(addr string, handler http.Handler, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
