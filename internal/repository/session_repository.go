package repository

import (
	"errors"

	"github.com/storefront-bridge/internal/models"

	"gorm.io/gorm"
)

// SessionRepository 店面会话数据访问接口
type SessionRepository interface {
	GetBySessionID(sessionID string) (*models.StorefrontSession, error)
	Create(session *models.StorefrontSession) error
	Update(session *models.StorefrontSession) error
	Touch(sessionID string) error
}

// GormSessionRepository GORM 实现
type GormSessionRepository struct {
	db *gorm.DB
}

// NewSessionRepository 创建会话仓库
func NewSessionRepository(db *gorm.DB) *GormSessionRepository {
	return &GormSessionRepository{db: db}
}

// GetBySessionID 按会话标识查询
func (r *GormSessionRepository) GetBySessionID(sessionID string) (*models.StorefrontSession, error) {
	var session models.StorefrontSession
	err := r.db.Where("session_id = ?", sessionID).First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// Create 创建会话
func (r *GormSessionRepository) Create(session *models.StorefrontSession) error {
	if session == nil {
		return nil
	}
	return r.db.Create(session).Error
}

// Update 保存会话（包括折扣码缓存与购物车令牌）
func (r *GormSessionRepository) Update(session *models.StorefrontSession) error {
	if session == nil {
		return nil
	}
	return r.db.Save(session).Error
}

// Touch 刷新会话活跃时间
func (r *GormSessionRepository) Touch(sessionID string) error {
	return r.db.Model(&models.StorefrontSession{}).
		Where("session_id = ?", sessionID).
		Update("last_seen_at", gorm.Expr("CURRENT_TIMESTAMP")).Error
}
