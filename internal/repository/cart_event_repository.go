package repository

import (
	"github.com/storefront-bridge/internal/models"

	"gorm.io/gorm"
)

// CartEventListFilter 查询购物车事件的过滤条件
type CartEventListFilter struct {
	SessionID string
	EventType string
	Limit     int
}

// CartEventRepository 购物车事件数据访问接口
type CartEventRepository interface {
	Create(event *models.CartEvent) error
	List(filter CartEventListFilter) ([]models.CartEvent, error)
}

// GormCartEventRepository GORM 实现
type GormCartEventRepository struct {
	db *gorm.DB
}

// NewCartEventRepository 创建购物车事件仓库
func NewCartEventRepository(db *gorm.DB) *GormCartEventRepository {
	return &GormCartEventRepository{db: db}
}

// Create 写入事件
func (r *GormCartEventRepository) Create(event *models.CartEvent) error {
	if event == nil {
		return nil
	}
	return r.db.Create(event).Error
}

// List 按条件查询事件
func (r *GormCartEventRepository) List(filter CartEventListFilter) ([]models.CartEvent, error) {
	query := r.db.Model(&models.CartEvent{})
	if filter.SessionID != "" {
		query = query.Where("session_id = ?", filter.SessionID)
	}
	if filter.EventType != "" {
		query = query.Where("event_type = ?", filter.EventType)
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	var events []models.CartEvent
	if err := query.Order("created_at desc").Limit(limit).Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}
