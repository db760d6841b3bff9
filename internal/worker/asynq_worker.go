package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dujiao-next/settlement/internal/logger"
	"github.com/dujiao-next/settlement/internal/provider"
	"github.com/dujiao-next/settlement/internal/queue"
	"github.com/dujiao-next/settlement/internal/service"

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
	mux.HandleFunc(queue.TaskSettlementCommission, c.handleSettlementStage)
	mux.HandleFunc(queue.TaskSettlementRankEvaluate, c.handleSettlementStage)
	mux.HandleFunc(queue.TaskSettlementNotify, c.handleSettlementStage)
	mux.HandleFunc(queue.TaskNotifyOrderConfirmed, c.handleNotification)
	mux.HandleFunc(queue.TaskNotifyCommissionAlert, c.handleNotification)
}

func (c *Consumer) handleSettlementStage(ctx context.Context, task *asynq.Task) error {
	if c == nil || c.Container == nil || c.SettlementService == nil || task == nil {
		logger.Debugw("worker_settlement_stage_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.SettlementStagePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_settlement_stage_unmarshal_failed", "task_type", task.Type(), "error", err)
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	if payload.OrderID == 0 || payload.Stage == "" {
		logger.Debugw("worker_settlement_stage_skip_invalid_payload", "order_id", payload.OrderID, "stage", payload.Stage)
		return nil
	}
	if err := c.SettlementService.RunStage(ctx, payload.OrderID, payload.Stage); err != nil {
		if isPermanentStageError(err) {
			logger.Settlement(payload.OrderID, payload.Stage).Warnw("worker_settlement_stage_skip_retry", "error", err)
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		return err
	}
	return nil
}

func (c *Consumer) handleNotification(ctx context.Context, task *asynq.Task) error {
	if c == nil || c.Container == nil || c.NotificationService == nil || task == nil {
		logger.Debugw("worker_notification_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.NotificationPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_notification_unmarshal_failed", "task_type", task.Type(), "error", err)
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	created, err := c.NotificationService.Record(ctx, payload)
	if err != nil {
		if errors.Is(err, service.ErrValidation) {
			logger.Warnw("worker_notification_invalid_payload", "kind", payload.Kind, "order_id", payload.OrderID, "error", err)
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		logger.Warnw("worker_notification_record_failed", "kind", payload.Kind, "order_id", payload.OrderID, "error", err)
		return err
	}
	if !created {
		logger.Debugw("worker_notification_duplicate", "dedupe_key", payload.DedupeKey())
	}
	return nil
}

// 订单不存在、状态不符或阶段未知时重试无意义
func isPermanentStageError(err error) bool {
	return errors.Is(err, service.ErrSettlementStageUnknown) ||
		errors.Is(err, service.ErrOrderNotFound) ||
		errors.Is(err, service.ErrInvalidOrderState)
}
