package service

import (
	"context"
	"strings"
	"time"

	"github.com/dujiao-next/settlement/internal/constants"
	"github.com/dujiao-next/settlement/internal/logger"
	"github.com/dujiao-next/settlement/internal/models"
	"github.com/dujiao-next/settlement/internal/queue"
	"github.com/dujiao-next/settlement/internal/repository"
)

// NotificationService 通知请求服务：只登记请求，模板渲染与投递由外部完成
type NotificationService struct {
	repo        repository.NotificationRepository
	queueClient *queue.Client
}

// NewNotificationService 创建通知服务
func NewNotificationService(repo repository.NotificationRepository, queueClient *queue.Client) *NotificationService {
	return &NotificationService{
		repo:        repo,
		queueClient: queueClient,
	}
}

// RequestOrderConfirmation 请求发送订单确认通知
func (s *NotificationService) RequestOrderConfirmation(order *models.Order) error {
	if order == nil {
		return ErrOrderNotFound
	}
	return s.Request(queue.NotificationPayload{
		Kind:    constants.NotificationKindOrderConfirmation,
		UserID:  order.UserID,
		OrderID: order.ID,
		OrderNo: order.OrderNo,
		Amount:  order.TotalAmount.String(),
	})
}

// RequestCommissionAlert 请求发送佣金到账通知
func (s *NotificationService) RequestCommissionAlert(commission *models.Commission) error {
	if commission == nil {
		return nil
	}
	commissionID := commission.ID
	return s.Request(queue.NotificationPayload{
		Kind:         constants.NotificationKindCommissionAlert,
		UserID:       commission.EarnerUserID,
		OrderID:      commission.OrderID,
		CommissionID: &commissionID,
		Level:        commission.Level,
		Amount:       commission.Amount.String(),
	})
}

// Request 队列可用时异步入队，否则直接登记
func (s *NotificationService) Request(payload queue.NotificationPayload) error {
	if s == nil {
		return nil
	}
	if s.queueClient != nil && s.queueClient.Enabled() {
		return s.queueClient.EnqueueNotification(payload)
	}
	_, err := s.Record(context.Background(), payload)
	return err
}

// Record 以去重键登记通知请求，重复请求返回 false
func (s *NotificationService) Record(_ context.Context, payload queue.NotificationPayload) (bool, error) {
	if s == nil || s.repo == nil {
		return false, nil
	}
	kind := strings.TrimSpace(payload.Kind)
	if kind != constants.NotificationKindOrderConfirmation && kind != constants.NotificationKindCommissionAlert {
		return false, ErrValidation
	}
	if payload.UserID == 0 || payload.OrderID == 0 {
		return false, ErrValidation
	}
	body := models.JSON{
		"order_no": payload.OrderNo,
		"amount":   payload.Amount,
	}
	if payload.Level > 0 {
		body["level"] = payload.Level
	}
	notification := &models.Notification{
		Kind:         kind,
		UserID:       payload.UserID,
		OrderID:      payload.OrderID,
		CommissionID: payload.CommissionID,
		DedupeKey:    payload.DedupeKey(),
		Payload:      body,
		CreatedAt:    time.Now(),
	}
	created, err := s.repo.CreateIfAbsent(notification)
	if err != nil {
		return false, err
	}
	if created {
		logger.Debugw("notification_recorded",
			"kind", kind,
			"user_id", payload.UserID,
			"order_id", payload.OrderID,
		)
	}
	return created, nil
}

// ListByUser 查询用户通知请求
func (s *NotificationService) ListByUser(userID uint, limit int) ([]models.Notification, error) {
	return s.repo.ListByUser(userID, limit)
}
