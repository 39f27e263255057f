package service

import (
	"context"
	"time"

	"github.com/storefront-bridge/internal/cache"
	"github.com/storefront-bridge/internal/logger"
	"github.com/storefront-bridge/internal/models"
	"github.com/storefront-bridge/internal/queue"

	"github.com/hibiken/asynq"
)

// ProductCatalog 商品目录访问接口
// platform.Client 是生产实现，测试可注入内存实现。
type ProductCatalog interface {
	FetchProduct(ctx context.Context, handle string) (*models.Product, error)
}

// RefreshQueue 快照刷新任务投递接口（queue.Client 是生产实现）
type RefreshQueue interface {
	EnqueueProductSnapRefresh(payload queue.ProductSnapRefreshPayload, opts ...asynq.Option) error
}

// productSnapshot 缓存中的快照信封，FetchedAt 用于临期判断
type productSnapshot struct {
	Product   *models.Product `json:"product"`
	FetchedAt time.Time       `json:"fetched_at"`
}

// CatalogService 商品目录服务
// 快照进 Redis 缓存，缓存未命中回源平台并做契约校验；
// 命中但临近过期时先返回缓存副本，同时排队异步刷新。
type CatalogService struct {
	catalog      ProductCatalog
	queue        RefreshQueue
	ttl          time.Duration
	refreshAfter time.Duration
}

// NewCatalogService 创建商品目录服务
func NewCatalogService(catalog ProductCatalog, refreshQueue RefreshQueue, ttlSeconds int) *CatalogService {
	ttl := 5 * time.Minute
	if ttlSeconds > 0 {
		ttl = time.Duration(ttlSeconds) * time.Second
	}
	return &CatalogService{
		catalog:      catalog,
		queue:        refreshQueue,
		ttl:          ttl,
		refreshAfter: ttl * 4 / 5,
	}
}

// GetProduct 获取商品快照（缓存优先）
func (s *CatalogService) GetProduct(ctx context.Context, handle string) (*models.Product, error) {
	key := cache.ProductSnapshotKey(handle)

	var cached productSnapshot
	hit, err := cache.GetJSON(ctx, key, &cached)
	if err != nil {
		logger.Warnw("catalog_cache_read_failed", "handle", handle, "error", err)
	}
	if hit && cached.Product != nil && len(cached.Product.Variants) > 0 {
		if s.staleForRefresh(cached.FetchedAt) {
			s.ScheduleRefresh(handle)
		}
		return cached.Product, nil
	}

	product, err := s.catalog.FetchProduct(ctx, handle)
	if err != nil {
		return nil, err
	}
	s.store(ctx, handle, product)
	return product, nil
}

// RefreshProduct 回源刷新商品快照（worker 任务使用）
func (s *CatalogService) RefreshProduct(ctx context.Context, handle string) (*models.Product, error) {
	product, err := s.catalog.FetchProduct(ctx, handle)
	if err != nil {
		return nil, err
	}
	s.store(ctx, handle, product)
	return product, nil
}

// ScheduleRefresh 排队异步刷新（尽力而为）
func (s *CatalogService) ScheduleRefresh(handle string) {
	if s.queue == nil {
		return
	}
	if err := s.queue.EnqueueProductSnapRefresh(queue.ProductSnapRefreshPayload{Handle: handle}); err != nil {
		logger.Warnw("catalog_refresh_enqueue_failed", "handle", handle, "error", err)
	}
}

// staleForRefresh 判断快照是否临近过期（超过 TTL 的 4/5）
func (s *CatalogService) staleForRefresh(fetchedAt time.Time) bool {
	if fetchedAt.IsZero() {
		return true
	}
	return time.Since(fetchedAt) >= s.refreshAfter
}

func (s *CatalogService) store(ctx context.Context, handle string, product *models.Product) {
	snapshot := productSnapshot{Product: product, FetchedAt: time.Now()}
	if err := cache.SetJSON(ctx, cache.ProductSnapshotKey(handle), snapshot, s.ttl); err != nil {
		logger.Warnw("catalog_cache_write_failed", "handle", handle, "error", err)
	}
}
