package queue

import (
	"encoding/json"
	"fmt"

	"github.com/dujiao-next/settlement/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// TaskSettlementCommission 佣金分发阶段
	TaskSettlementCommission = constants.TaskSettlementCommission
	// TaskSettlementRankEvaluate 等级评估阶段
	TaskSettlementRankEvaluate = constants.TaskSettlementRankEvaluate
	// TaskSettlementNotify 通知请求阶段
	TaskSettlementNotify = constants.TaskSettlementNotify
	// TaskNotifyOrderConfirmed 订单确认通知
	TaskNotifyOrderConfirmed = constants.TaskNotifyOrderConfirmed
	// TaskNotifyCommissionAlert 佣金到账通知
	TaskNotifyCommissionAlert = constants.TaskNotifyCommissionAlert
)

// SettlementStagePayload 结算阶段任务载荷
type SettlementStagePayload struct {
	OrderID uint   `json:"order_id"`
	Stage   string `json:"stage"`
}

// NotificationPayload 通知请求载荷
type NotificationPayload struct {
	Kind         string `json:"kind"`
	UserID       uint   `json:"user_id"`
	OrderID      uint   `json:"order_id"`
	OrderNo      string `json:"order_no,omitempty"`
	CommissionID *uint  `json:"commission_id,omitempty"`
	Level        int    `json:"level,omitempty"`
	Amount       string `json:"amount,omitempty"`
}

// DedupeKey 通知去重键
func (p NotificationPayload) DedupeKey() string {
	return fmt.Sprintf("%s:%d:%d", p.Kind, p.OrderID, p.UserID)
}

// SettlementTaskType 根据阶段选择任务类型
func SettlementTaskType(stage string) (string, error) {
	switch stage {
	case constants.SettlementStageCommission:
		return TaskSettlementCommission, nil
	case constants.SettlementStageRankEvaluate:
		return TaskSettlementRankEvaluate, nil
	case constants.SettlementStageNotify:
		return TaskSettlementNotify, nil
	default:
		return "", fmt.Errorf("unknown settlement stage: %s", stage)
	}
}

// SettlementTaskID 结算任务唯一 ID（订单:阶段）
func SettlementTaskID(orderID uint, stage string) string {
	return fmt.Sprintf("%d:%s", orderID, stage)
}

// NewSettlementStageTask 创建结算阶段任务
func NewSettlementStageTask(payload SettlementStagePayload) (*asynq.Task, error) {
	taskType, err := SettlementTaskType(payload.Stage)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(taskType, body), nil
}

// NewNotificationTask 创建通知任务
func NewNotificationTask(payload NotificationPayload) (*asynq.Task, error) {
	taskType := TaskNotifyOrderConfirmed
	if payload.Kind == constants.NotificationKindCommissionAlert {
		taskType = TaskNotifyCommissionAlert
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(taskType, body), nil
}
