package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// StorefrontSession 店面会话
// 每个浏览器会话对应一条记录，携带对已应用折扣码的本地缓存。
// 该缓存允许过期（其他标签页可能已改动），写操作前必须以平台快照重新校验。
type StorefrontSession struct {
	ID            uint           `gorm:"primarykey" json:"id"`                                // 主键
	SessionID     string         `gorm:"type:varchar(64);not null;uniqueIndex" json:"session_id"` // 会话标识
	CartToken     string         `gorm:"type:varchar(128)" json:"cart_token"`                 // 平台购物车令牌
	DiscountCodes string         `gorm:"type:varchar(512)" json:"discount_codes"`             // 本地缓存的折扣码（CSV）
	CartMode      string         `gorm:"type:varchar(20);not null;default:'drawer'" json:"cart_mode"` // page / drawer
	LastSeenAt    time.Time      `json:"last_seen_at"`                                        // 最近活跃时间
	CreatedAt     time.Time      `gorm:"index" json:"created_at"`                             // 创建时间
	UpdatedAt     time.Time      `gorm:"index" json:"updated_at"`                             // 更新时间
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`                                      // 软删除时间
}

// TableName 指定表名
func (StorefrontSession) TableName() string {
	return "storefront_sessions"
}

// CachedDiscountCodes 返回本地缓存的折扣码列表
func (s *StorefrontSession) CachedDiscountCodes() []string {
	if s == nil {
		return nil
	}
	raw := strings.TrimSpace(s.DiscountCodes)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	codes := make([]string, 0, len(parts))
	for _, part := range parts {
		code := strings.TrimSpace(part)
		if code == "" {
			continue
		}
		codes = append(codes, code)
	}
	return codes
}

// SetCachedDiscountCodes 覆盖本地缓存的折扣码列表
func (s *StorefrontSession) SetCachedDiscountCodes(codes []string) {
	if s == nil {
		return
	}
	s.DiscountCodes = strings.Join(codes, ",")
}
