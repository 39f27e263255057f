package router

import (
	"fmt"
	"strings"

	"github.com/storefront-bridge/internal/cache"
	"github.com/storefront-bridge/internal/config"
	publichandlers "github.com/storefront-bridge/internal/http/handlers/public"
	"github.com/storefront-bridge/internal/logger"
	"github.com/storefront-bridge/internal/provider"

	"github.com/gin-gonic/gin"
)

// SetupRouter 初始化路由
func SetupRouter(cfg *config.Config, c *provider.Container) *gin.Engine {
	log := logger.L
	if log == nil {
		log = logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	}
	r := gin.New()

	publicHandler := publichandlers.New(c)
	redisPrefix := strings.TrimSpace(cfg.Redis.Prefix)
	if redisPrefix == "" {
		redisPrefix = "sfb"
	}
	redisClient := cache.Client()
	mutationRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:cart_mutation", redisPrefix),
		WindowSeconds: cfg.Security.MutationRateLimit.WindowSeconds,
		MaxRequests:   cfg.Security.MutationRateLimit.MaxRequests,
	}

	// 中间件
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(log))
	r.Use(CORSMiddleware(cfg.CORS))

	// API 路由组
	apiV1 := r.Group("/api/v1")
	{
		// 会话签发（无需鉴权）
		apiV1.POST("/session", RateLimitMiddleware(redisClient, mutationRule, KeyByIP), publicHandler.CreateSession)

		// 商品接口
		products := apiV1.Group("/products")
		{
			products.GET("/:handle", publicHandler.GetProduct)
			products.POST("/:handle/resolve", publicHandler.ResolveVariant)
			products.POST("/:handle/availability", publicHandler.OptionAvailability)
		}

		// 购物车接口（需会话鉴权）
		cart := apiV1.Group("/cart")
		cart.Use(SessionAuthMiddleware(c.SessionService))
		{
			cart.GET("", publicHandler.GetCart)
			cart.GET("/events", publicHandler.ListCartEvents)

			mutation := RateLimitMiddleware(redisClient, mutationRule, KeyBySession)
			cart.PUT("/token", mutation, publicHandler.BindCartToken)
			cart.POST("/items", mutation, publicHandler.AddCartItem)
			cart.POST("/lines", mutation, publicHandler.ChangeCartLine)
			cart.POST("/discounts", mutation, publicHandler.ApplyDiscount)
			cart.DELETE("/discounts/:code", mutation, publicHandler.RemoveDiscount)
		}
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
