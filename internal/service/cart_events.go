package service

import (
	"sync"

	"github.com/storefront-bridge/internal/models"
)

// CartEvent 购物车控制器对外通知的事件
// Type 取值限定为 constants 中的 CartEvent* 常量，载荷字段按类型选填。
type CartEvent struct {
	Type      string           `json:"type"`
	SessionID string           `json:"session_id"`
	Scope     string           `json:"scope,omitempty"` // 触发来源：form / line:N / discount
	Message   string           `json:"message,omitempty"`
	Code      string           `json:"code,omitempty"` // 折扣码事件携带
	Line      int              `json:"line,omitempty"` // 行项目事件携带
	View      *models.CartView `json:"view,omitempty"` // 刷新事件携带整体替换后的视图
}

// CartListener 事件订阅回调
type CartListener func(event CartEvent)

// cartNotifier 进程内事件分发器
// 订阅集合在页面生命周期内只增不减，回调同步执行。
type cartNotifier struct {
	mu        sync.RWMutex
	listeners []CartListener
}

func (n *cartNotifier) subscribe(listener CartListener) {
	if listener == nil {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.listeners = append(n.listeners, listener)
}

func (n *cartNotifier) notify(event CartEvent) {
	n.mu.RLock()
	listeners := make([]CartListener, len(n.listeners))
	copy(listeners, n.listeners)
	n.mu.RUnlock()
	for _, listener := range listeners {
		listener(event)
	}
}
