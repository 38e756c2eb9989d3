package handler

import (
	"net/http"

	"powerhause/internal/middleware"
	"powerhause/internal/session"
	"powerhause/internal/view"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AuthHandler 会话相关接口；tokens 为 nil 表示未启用登录校验
type AuthHandler struct {
	tokens   *session.TokenProvider
	registry *view.Registry
	logger   *zap.Logger
}

func NewAuthHandler(tokens *session.TokenProvider, registry *view.Registry, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{tokens: tokens, registry: registry, logger: logger}
}

func (h *AuthHandler) Me(c *gin.Context) {
	id, ok := middleware.Identity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"msg": "unauthorized"})
		return
	}
	c.JSON(http.StatusOK, id)
}

// TokenRefresh 利用 refresh 来更新 access
func (h *AuthHandler) TokenRefresh(c *gin.Context) {
	if h.tokens == nil {
		c.JSON(http.StatusNotFound, gin.H{"msg": "token auth is disabled"})
		return
	}
	var req struct {
		RefreshToken string `json:"refreshToken" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid params"})
		return
	}

	pair, err := h.tokens.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"msg": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"AccessToken": pair.AccessToken, "RefreshToken": pair.RefreshToken})
}

// Logout 关闭该操作员的所有页面并吊销令牌
func (h *AuthHandler) Logout(c *gin.Context) {
	id, ok := middleware.Identity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"msg": "unauthorized"})
		return
	}
	h.registry.CloseSession(id.OperatorID)
	if h.tokens != nil && !id.Anonymous {
		if err := h.tokens.Revoke(c.Request.Context(), id.OperatorID); err != nil {
			h.logger.Error("logout failed", zap.String("operator_id", id.OperatorID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"msg": "logout failed"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"msg": "ok"})
}
