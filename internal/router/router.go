package router

import (
	"powerhause/internal/handler"
	"powerhause/internal/middleware"
	"powerhause/internal/session"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ConsoleDeps 控制台路由依赖
type ConsoleDeps struct {
	Console  *handler.ConsoleHandler
	Auth     *handler.AuthHandler
	Provider session.Provider
	Limiter  *middleware.RateLimiter
	Logger   *zap.Logger
}

func InitConsoleRouter(d ConsoleDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	// token相关接口
	tokenGroup := r.Group("/api/token")
	{
		tokenGroup.POST("/refresh", d.Auth.TokenRefresh)
	}

	authed := r.Group("/")
	authed.Use(middleware.AuthMiddleware(d.Provider, d.Logger))
	if d.Limiter != nil {
		authed.Use(d.Limiter.Middleware())
	}

	// 登录态接口
	authGroup := authed.Group("/api/auth")
	{
		authGroup.GET("/me", d.Auth.Me)
		authGroup.POST("/logout", d.Auth.Logout)
	}

	// 社区列表页
	dashboardGroup := authed.Group("/dashboard")
	{
		dashboardGroup.GET("", d.Console.Dashboard)
		dashboardGroup.POST("/communities", d.Console.CreateCommunity)
		dashboardGroup.POST("/communities/:id/post-now", d.Console.PostNow)
	}

	// 配置与部署页
	setupGroup := authed.Group("/setup/:id")
	{
		setupGroup.POST("", d.Console.OpenSetup)
		setupGroup.GET("", d.Console.GetSetup)
		setupGroup.DELETE("", d.Console.CloseSetup)
		setupGroup.PATCH("/fields", d.Console.SetFields)
		setupGroup.POST("/rules", d.Console.AddRule)
		setupGroup.PUT("/rules/:index", d.Console.SetRule)
		setupGroup.DELETE("/rules/:index", d.Console.RemoveRule)
		setupGroup.POST("/save", d.Console.Save)
		setupGroup.POST("/deploy", d.Console.Deploy)
	}

	// 状态页
	authed.GET("/status/:id", d.Console.Status)

	return r
}

// InitAPIRouter 社区服务路由；provider 为 nil 时不做鉴权
func InitAPIRouter(community *handler.CommunityHandler, provider session.Provider, logger *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/api/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "healthy"})
	})

	// 社区相关接口
	communityGroup := r.Group("/api/communities")
	if provider != nil {
		communityGroup.Use(middleware.AuthMiddleware(provider, logger))
	}
	{
		communityGroup.GET("", community.List)
		communityGroup.POST("/create", community.Create)
		communityGroup.GET("/:id", community.Get)
		communityGroup.PUT("/:id", community.Update)
		communityGroup.POST("/:id/deploy", community.Deploy)
		communityGroup.POST("/:id/post-now", community.PostNow)
	}

	return r
}
