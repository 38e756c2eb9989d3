package session

import (
	"context"
	"errors"
	"net/http"

	"powerhause/internal/pkg"
	"powerhause/internal/repository/redis"

	"go.uber.org/zap"
)

// TokenStore 保存每个操作员当前有效的 access token
type TokenStore interface {
	AddToken(ctx context.Context, operatorID, token string) error
	GetToken(ctx context.Context, operatorID string) (string, error)
	ExtendToken(ctx context.Context, operatorID string) error
	DeleteToken(ctx context.Context, operatorID string) error
}

// TokenProvider checks a bearer JWT and requires it to be the latest token
// issued to that operator. A successful check extends the stored token.
type TokenProvider struct {
	issuer *pkg.TokenIssuer
	store  TokenStore
	logger *zap.Logger
}

func NewTokenProvider(issuer *pkg.TokenIssuer, store TokenStore, logger *zap.Logger) *TokenProvider {
	return &TokenProvider{issuer: issuer, store: store, logger: logger}
}

func (p *TokenProvider) Authenticate(r *http.Request) (Identity, error) {
	tokenStr, err := bearerToken(r)
	if err != nil {
		return Identity{}, err
	}
	claims, err := p.issuer.ParseAccess(tokenStr)
	if err != nil {
		return Identity{}, ErrInvalidToken
	}

	ctx := r.Context()
	current, err := p.store.GetToken(ctx, claims.OperatorID)
	if errors.Is(err, redis.ErrTokenNotFound) || (err == nil && current != tokenStr) {
		return Identity{}, ErrReplaced
	}
	if err != nil {
		return Identity{}, err
	}
	if err := p.store.ExtendToken(ctx, claims.OperatorID); err != nil {
		p.logger.Warn("failed to extend session", zap.String("operator_id", claims.OperatorID), zap.Error(err))
	}
	return Identity{OperatorID: claims.OperatorID, Token: tokenStr}, nil
}

// Issue 签发新令牌并使该操作员之前的令牌失效
func (p *TokenProvider) Issue(ctx context.Context, operatorID string) (*pkg.Pair, error) {
	pair, err := p.issuer.GeneratePair(operatorID)
	if err != nil {
		return nil, err
	}
	if err := p.store.AddToken(ctx, operatorID, pair.AccessToken); err != nil {
		return nil, err
	}
	return pair, nil
}

// Refresh 用 refresh token 换新令牌
func (p *TokenProvider) Refresh(ctx context.Context, refreshToken string) (*pkg.Pair, error) {
	operatorID, pair, err := p.issuer.Refresh(refreshToken)
	if err != nil {
		return nil, err
	}
	if err := p.store.AddToken(ctx, operatorID, pair.AccessToken); err != nil {
		return nil, err
	}
	return pair, nil
}

func (p *TokenProvider) Revoke(ctx context.Context, operatorID string) error {
	return p.store.DeleteToken(ctx, operatorID)
}
