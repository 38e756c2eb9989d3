package pkg

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrTokenExpired      = errors.New("token expired")
	ErrTokenInvalid      = errors.New("token invalid")
	ErrRefreshExpired    = errors.New("refresh expired")
	ErrRefreshInvalid    = errors.New("refresh invalid")
	ErrTokenParseFailure = errors.New("token parse failure")
)

const (
	subjectAccess  = "access"
	subjectRefresh = "refresh"
)

type Claims struct {
	OperatorID string `json:"operator_id"`
	jwt.RegisteredClaims
}

type Pair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// TokenIssuer 签发与解析控制台令牌
type TokenIssuer struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

func (i *TokenIssuer) GeneratePair(operatorID string) (*Pair, error) {
	now := time.Now()

	access := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		OperatorID: operatorID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.AccessTTL)),
			Subject:   subjectAccess,
		},
	})
	accessToken, err := access.SignedString(i.AccessSecret)
	if err != nil {
		return nil, err
	}

	refresh := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		OperatorID: operatorID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.RefreshTTL)),
			Subject:   subjectRefresh,
		},
	})
	refreshToken, err := refresh.SignedString(i.RefreshSecret)
	if err != nil {
		return nil, err
	}

	return &Pair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

// ParseAccess 解析 access
func (i *TokenIssuer) ParseAccess(tokenStr string) (*Claims, error) {
	claims, err := parse(tokenStr, i.AccessSecret, subjectAccess)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrTokenExpired
		case errors.Is(err, ErrTokenParseFailure):
			return nil, err
		default:
			return nil, ErrTokenInvalid
		}
	}
	return claims, nil
}

// Refresh 用 refresh 换一对新令牌，返回操作员 ID
func (i *TokenIssuer) Refresh(refreshToken string) (string, *Pair, error) {
	claims, err := parse(refreshToken, i.RefreshSecret, subjectRefresh)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", nil, ErrRefreshExpired
		}
		return "", nil, ErrRefreshInvalid
	}
	pair, err := i.GeneratePair(claims.OperatorID)
	if err != nil {
		return "", nil, err
	}
	return claims.OperatorID, pair, nil
}

func parse(tokenStr string, secret []byte, subject string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithSubject(subject))
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !token.Valid || !ok || claims.OperatorID == "" {
		return nil, ErrTokenParseFailure
	}
	return claims, nil
}
