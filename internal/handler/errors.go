package handler

import (
	"errors"
	"net/http"

	"powerhause/internal/deploy"
	"powerhause/internal/draft"
	"powerhause/internal/gateway"
	"powerhause/internal/view"

	"github.com/gin-gonic/gin"
)

// consoleStatus 把错误映射为控制台响应码
func consoleStatus(err error) int {
	switch {
	case errors.Is(err, gateway.ErrValidation),
		errors.Is(err, draft.ErrUnknownField),
		errors.Is(err, draft.ErrRuleIndex):
		return http.StatusBadRequest
	case errors.Is(err, gateway.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, gateway.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, gateway.ErrDeployment),
		errors.Is(err, gateway.ErrOperation),
		errors.Is(err, gateway.ErrTransport):
		return http.StatusBadGateway
	case errors.Is(err, view.ErrNotLoaded),
		errors.Is(err, view.ErrBusy),
		errors.Is(err, view.ErrClosed),
		errors.Is(err, deploy.ErrInProgress),
		errors.Is(err, deploy.ErrClosed):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// writeConsoleError 错误体为 {"msg": ...}；404 额外带返回入口
func writeConsoleError(c *gin.Context, err error, extra gin.H) {
	status := consoleStatus(err)
	body := gin.H{"msg": gateway.Detail(err)}
	if status == http.StatusNotFound {
		body["back"] = "/dashboard"
	}
	for k, v := range extra {
		body[k] = v
	}
	c.JSON(status, body)
}

// apiStatus 社区服务的响应码，错误体为 {"detail": ...}
func apiStatus(err error) int {
	switch {
	case errors.Is(err, gateway.ErrValidation), errors.Is(err, gateway.ErrDeployment):
		return http.StatusBadRequest
	case errors.Is(err, gateway.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, gateway.ErrOperation):
		return http.StatusConflict
	case errors.Is(err, gateway.ErrUnauthorized):
		return http.StatusUnauthorized
	}
	return http.StatusInternalServerError
}

func writeAPIError(c *gin.Context, err error) {
	c.JSON(apiStatus(err), gin.H{"detail": gateway.Detail(err)})
}
