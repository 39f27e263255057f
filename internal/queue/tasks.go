package queue

import (
	"encoding/json"

	"github.com/storefront-bridge/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// TaskCartEventRecord 购物车事件落库任务
	TaskCartEventRecord = constants.TaskCartEventRecord
	// TaskProductSnapRefresh 商品快照刷新任务
	TaskProductSnapRefresh = constants.TaskProductSnapRefresh
)

// CartEventRecordPayload 购物车事件落库任务载荷
type CartEventRecordPayload struct {
	SessionID string `json:"session_id"`
	EventType string `json:"event_type"`
	Scope     string `json:"scope,omitempty"`
	Payload   string `json:"payload,omitempty"`
}

// ProductSnapRefreshPayload 商品快照刷新任务载荷
type ProductSnapRefreshPayload struct {
	Handle string `json:"handle"`
}

// NewCartEventRecordTask 创建购物车事件落库任务
func NewCartEventRecordTask(payload CartEventRecordPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCartEventRecord, body), nil
}

// NewProductSnapRefreshTask 创建商品快照刷新任务
func NewProductSnapRefreshTask(payload ProductSnapRefreshPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskProductSnapRefresh, body), nil
}
