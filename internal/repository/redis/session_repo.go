package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrTokenNotFound    = errors.New("token not found")
	ErrRedisUnavailable = errors.New("redis unavailable")
)

const SessionTokenPrefix = "console:session:token:"

// SessionRepository 每个操作员只保留最近一次签发的 access token
type SessionRepository struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSessionRepository(client *redis.Client, ttl time.Duration) *SessionRepository {
	return &SessionRepository{client: client, ttl: ttl}
}

func (r *SessionRepository) key(operatorID string) string {
	return SessionTokenPrefix + operatorID
}

func (r *SessionRepository) AddToken(ctx context.Context, operatorID, token string) error {
	if err := r.client.Set(ctx, r.key(operatorID), token, r.ttl).Err(); err != nil {
		return ErrRedisUnavailable
	}
	return nil
}

func (r *SessionRepository) GetToken(ctx context.Context, operatorID string) (string, error) {
	token, err := r.client.Get(ctx, r.key(operatorID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrTokenNotFound
	}
	if err != nil {
		return "", ErrRedisUnavailable
	}
	return token, nil
}

// ExtendToken 滑动续期；key 已过期时返回 ErrTokenNotFound
func (r *SessionRepository) ExtendToken(ctx context.Context, operatorID string) error {
	ok, err := r.client.Expire(ctx, r.key(operatorID), r.ttl).Result()
	if err != nil {
		return ErrRedisUnavailable
	}
	if !ok {
		return ErrTokenNotFound
	}
	return nil
}

func (r *SessionRepository) DeleteToken(ctx context.Context, operatorID string) error {
	if err := r.client.Del(ctx, r.key(operatorID)).Err(); err != nil {
		return ErrRedisUnavailable
	}
	return nil
}
