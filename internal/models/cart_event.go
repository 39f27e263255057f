package models

import (
	"time"

	"gorm.io/gorm"
)

// CartEvent 购物车事件审计记录
// 由 worker 异步落库，写入失败不影响购物车变更本身。
type CartEvent struct {
	ID        uint           `gorm:"primarykey" json:"id"`                            // 主键
	SessionID string         `gorm:"type:varchar(64);not null;index" json:"session_id"` // 会话标识
	EventType string         `gorm:"type:varchar(40);not null;index" json:"event_type"` // 事件类型
	Scope     string         `gorm:"type:varchar(40)" json:"scope"`                   // 触发来源（form / line:N / discount）
	Payload   string         `gorm:"type:text" json:"payload"`                        // 事件载荷（JSON）
	CreatedAt time.Time      `gorm:"index" json:"created_at"`                         // 创建时间
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`                                  // 软删除时间
}

// TableName 指定表名
func (CartEvent) TableName() string {
	return "cart_events"
}
