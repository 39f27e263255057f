package worker

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/storefront-bridge/internal/logger"
	"github.com/storefront-bridge/internal/models"
	"github.com/storefront-bridge/internal/provider"
	"github.com/storefront-bridge/internal/queue"

	"github.com/hibiken/asynq"
)

// Consumer 异步任务消费者
type Consumer struct {
	*provider.Container
}

// NewConsumer 创建消费者
func NewConsumer(c *provider.Container) *Consumer {
	return &Consumer{
		Container: c,
	}
}

// Register 注册消费者
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(queue.TaskCartEventRecord, c.handleCartEventRecord)
	mux.HandleFunc(queue.TaskProductSnapRefresh, c.handleProductSnapRefresh)
}

func (c *Consumer) handleCartEventRecord(_ context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_cart_event_record_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.CartEventRecordPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_cart_event_record_unmarshal_failed", "error", err)
		return err
	}
	if strings.TrimSpace(payload.SessionID) == "" || strings.TrimSpace(payload.EventType) == "" {
		logger.Debugw("worker_cart_event_record_skip_invalid_payload",
			"session_id", payload.SessionID,
			"event_type", payload.EventType,
		)
		return nil
	}
	event := &models.CartEvent{
		SessionID: payload.SessionID,
		EventType: payload.EventType,
		Scope:     payload.Scope,
		Payload:   payload.Payload,
	}
	if err := c.CartEventRepo.Create(event); err != nil {
		logger.Warnw("worker_cart_event_record_create_failed",
			"session_id", payload.SessionID,
			"event_type", payload.EventType,
			"error", err,
		)
		return err
	}
	return nil
}

func (c *Consumer) handleProductSnapRefresh(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_product_snap_refresh_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.ProductSnapRefreshPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_product_snap_refresh_unmarshal_failed", "error", err)
		return err
	}
	handle := strings.TrimSpace(payload.Handle)
	if handle == "" {
		logger.Debugw("worker_product_snap_refresh_skip_empty_handle")
		return nil
	}
	if c.CatalogService == nil {
		logger.Warnw("worker_product_snap_refresh_skip_catalog_nil", "handle", handle)
		return nil
	}
	if _, err := c.CatalogService.RefreshProduct(ctx, handle); err != nil {
		logger.Warnw("worker_product_snap_refresh_failed", "handle", handle, "error", err)
		return err
	}
	return nil
}
