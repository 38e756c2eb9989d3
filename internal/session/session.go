// Package session resolves the operator behind a console request.
package session

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

var (
	ErrMissingCredentials = errors.New("missing authorization header")
	ErrInvalidFormat      = errors.New("invalid authorization format")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrReplaced           = errors.New("account has been logged in elsewhere")
)

// Identity 当前操作员；Token 为通过校验的 access token，匿名时为空
type Identity struct {
	OperatorID string `json:"operator_id"`
	Anonymous  bool   `json:"anonymous"`
	Token      string `json:"-"`
}

// Provider 从请求中识别操作员
type Provider interface {
	Authenticate(r *http.Request) (Identity, error)
}

type ctxKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok
}

// TokenFromContext 供下游调用转发当前操作员的令牌
func TokenFromContext(ctx context.Context) string {
	id, _ := FromContext(ctx)
	return id.Token
}

// AnonymousOperatorID 关闭登录校验时所有请求共用的操作员
const AnonymousOperatorID = "anonymous"

// Anonymous accepts every request as the same operator.
type Anonymous struct{}

func (Anonymous) Authenticate(*http.Request) (Identity, error) {
	return Identity{OperatorID: AnonymousOperatorID, Anonymous: true}, nil
}

func bearerToken(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", ErrMissingCredentials
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", ErrInvalidFormat
	}
	return parts[1], nil
}
