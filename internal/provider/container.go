package provider

import (
	"github.com/storefront-bridge/internal/cache"
	"github.com/storefront-bridge/internal/config"
	"github.com/storefront-bridge/internal/logger"
	"github.com/storefront-bridge/internal/models"
	"github.com/storefront-bridge/internal/platform"
	"github.com/storefront-bridge/internal/queue"
	"github.com/storefront-bridge/internal/repository"
	"github.com/storefront-bridge/internal/service"
)

// Container 依赖注入容器
type Container struct {
	Config      *config.Config
	QueueClient *queue.Client

	PlatformClient *platform.Client

	// Repositories
	SessionRepo   repository.SessionRepository
	CartEventRepo repository.CartEventRepository

	// Services
	SessionService *service.SessionService
	VariantService *service.VariantService
	CatalogService *service.CatalogService
	CartService    *service.CartService
}

// NewContainer 初始化容器
func NewContainer(cfg *config.Config) *Container {
	// 初始化缓存
	if err := cache.InitRedis(&cfg.Redis); err != nil {
		logger.Warnw("provider_init_redis_failed", "error", err)
	}

	// 初始化队列客户端
	var queueClient *queue.Client
	if cfg.Queue.Enabled {
		qc, err := queue.NewClient(&cfg.Queue)
		if err != nil {
			logger.Errorw("provider_init_queue_client_failed", "error", err)
		} else {
			queueClient = qc
		}
	}

	c := &Container{
		Config:         cfg,
		QueueClient:    queueClient,
		PlatformClient: platform.NewClient(&cfg.Platform),
	}

	// 1. 初始化 Repositories
	c.initRepositories()

	// 2. 初始化 Services
	c.initServices()

	return c
}

func (c *Container) initRepositories() {
	db := models.DB
	c.SessionRepo = repository.NewSessionRepository(db)
	c.CartEventRepo = repository.NewCartEventRepository(db)
}

func (c *Container) initServices() {
	c.SessionService = service.NewSessionService(c.SessionRepo, c.Config.Session.SecretKey, c.Config.Session.ExpireHours, c.Config.Cart.Mode)
	c.VariantService = service.NewVariantService()
	c.CatalogService = service.NewCatalogService(c.PlatformClient, c.QueueClient, c.Config.Cart.SnapshotTTLSeconds)
	c.CartService = service.NewCartService(c.PlatformClient, c.SessionRepo, c.QueueClient, service.CartServiceOptions{
		Mode:                  c.Config.Cart.Mode,
		FreeShippingThreshold: c.Config.Cart.FreeShippingThreshold,
	})
}
