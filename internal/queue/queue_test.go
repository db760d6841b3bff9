package queue

import (
	"encoding/json"
	"testing"

	"github.com/dujiao-next/settlement/internal/config"
	"github.com/dujiao-next/settlement/internal/constants"
)

func TestDisabledClientIsNoop(t *testing.T) {
	client, err := NewClient(&config.QueueConfig{Enabled: false})
	if err != nil {
		t.Fatalf("new client failed: %v", err)
	}
	if client.Enabled() {
		t.Fatalf("expected disabled client")
	}
	if err := client.EnqueueSettlementStage(SettlementStagePayload{OrderID: 1, Stage: constants.SettlementStageCommission}); err != nil {
		t.Fatalf("disabled enqueue should be noop: %v", err)
	}
}

func TestNewSettlementStageTaskRoutesByStage(t *testing.T) {
	task, err := NewSettlementStageTask(SettlementStagePayload{OrderID: 9, Stage: constants.SettlementStageRankEvaluate})
	if err != nil {
		t.Fatalf("new task failed: %v", err)
	}
	if task.Type() != TaskSettlementRankEvaluate {
		t.Fatalf("unexpected task type: %s", task.Type())
	}
	var payload SettlementStagePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		t.Fatalf("decode payload failed: %v", err)
	}
	if payload.OrderID != 9 || payload.Stage != constants.SettlementStageRankEvaluate {
		t.Fatalf("unexpected payload: %+v", payload)
	}

	notifyTask, err := NewSettlementStageTask(SettlementStagePayload{OrderID: 9, Stage: constants.SettlementStageNotify})
	if err != nil {
		t.Fatalf("new notify stage task failed: %v", err)
	}
	if notifyTask.Type() != TaskSettlementNotify {
		t.Fatalf("unexpected notify stage type: %s", notifyTask.Type())
	}

	if _, err := NewSettlementStageTask(SettlementStagePayload{OrderID: 9, Stage: "bogus"}); err == nil {
		t.Fatalf("expected unknown stage error")
	}
}

func TestSettlementTaskIDAndDedupeKey(t *testing.T) {
	if got := SettlementTaskID(12, constants.SettlementStageCommission); got != "12:commission" {
		t.Fatalf("unexpected task id: %s", got)
	}
	payload := NotificationPayload{Kind: constants.NotificationKindCommissionAlert, UserID: 3, OrderID: 12}
	if got := payload.DedupeKey(); got != "commission_alert:12:3" {
		t.Fatalf("unexpected dedupe key: %s", got)
	}
	task, err := NewNotificationTask(payload)
	if err != nil {
		t.Fatalf("new notification task failed: %v", err)
	}
	if task.Type() != TaskNotifyCommissionAlert {
		t.Fatalf("unexpected notification task type: %s", task.Type())
	}
}

func TestBuildServerConfigDefaults(t *testing.T) {
	opt, cfg := BuildServerConfig(&config.QueueConfig{Host: " redis.local ", Port: 6380, DB: 2})
	if opt.Addr != "redis.local:6380" || opt.DB != 2 {
		t.Fatalf("unexpected redis opt: %+v", opt)
	}
	if cfg.Concurrency != 10 {
		t.Fatalf("expected default concurrency 10, got %d", cfg.Concurrency)
	}
	if cfg.Queues[SettlementQueue] <= cfg.Queues[NotifyQueue] || len(cfg.Queues) != 2 {
		t.Fatalf("settlement queue should outweigh notify: %+v", cfg.Queues)
	}

	_, custom := BuildServerConfig(&config.QueueConfig{Concurrency: 3, Queues: map[string]int{SettlementQueue: 1}})
	if custom.Concurrency != 3 || len(custom.Queues) != 1 {
		t.Fatalf("expected configured values, got %+v", custom)
	}
}
