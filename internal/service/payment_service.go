package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dujiao-next/settlement/internal/config"
	"github.com/dujiao-next/settlement/internal/constants"
	"github.com/dujiao-next/settlement/internal/logger"
	"github.com/dujiao-next/settlement/internal/models"
	"github.com/dujiao-next/settlement/internal/repository"

	"gorm.io/gorm"
)

const defaultVerifyTimeout = 5 * time.Second

// PaymentService 支付确认服务
type PaymentService struct {
	orderRepo     repository.OrderRepository
	verifier      SignatureVerifier
	settlementSvc *SettlementService
	verifyTimeout time.Duration
}

// ConfirmPaymentInput 支付确认参数
type ConfirmPaymentInput struct {
	UserID     uint
	OrderRef   string
	PaymentRef string
	Signature  string
}

// NewPaymentService 创建支付确认服务
func NewPaymentService(
	orderRepo repository.OrderRepository,
	verifier SignatureVerifier,
	settlementSvc *SettlementService,
	cfg config.PaymentConfig,
) *PaymentService {
	timeout := time.Duration(cfg.VerifyTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = defaultVerifyTimeout
	}
	return &PaymentService{
		orderRepo:     orderRepo,
		verifier:      verifier,
		settlementSvc: settlementSvc,
		verifyTimeout: timeout,
	}
}

// ConfirmPayment 验签后将订单由待支付切换为已支付，并在同一事务内登记结算任务
func (s *PaymentService) ConfirmPayment(ctx context.Context, input ConfirmPaymentInput) (*models.Order, error) {
	orderRef := strings.TrimSpace(input.OrderRef)
	paymentRef := strings.TrimSpace(input.PaymentRef)
	if input.UserID == 0 || orderRef == "" || paymentRef == "" || strings.TrimSpace(input.Signature) == "" {
		return nil, fmt.Errorf("%w: order_ref, payment_ref and signature required", ErrValidation)
	}
	if err := s.verify(ctx, PaymentAssertion{OrderRef: orderRef, PaymentRef: paymentRef, Signature: input.Signature}); err != nil {
		logger.Warnw("payment_signature_rejected",
			"user_id", input.UserID,
			"order_ref", orderRef,
			"error", err,
		)
		return nil, err
	}

	order, err := s.orderRepo.GetByUserAndExternalRef(input.UserID, orderRef)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, fmt.Errorf("%w: order not found for user", ErrInvalidOrderState)
	}

	err = models.DB.Transaction(func(tx *gorm.DB) error {
		orderRepo := s.orderRepo.WithTx(tx)
		locked, err := orderRepo.GetByIDForUpdate(order.ID)
		if err != nil {
			return err
		}
		if locked == nil || locked.UserID != input.UserID || locked.Status != constants.OrderStatusPending {
			return fmt.Errorf("%w: order is not pending", ErrInvalidOrderState)
		}
		now := time.Now()
		affected, err := orderRepo.TransitionStatus(order.ID, input.UserID, constants.OrderStatusPending, constants.OrderStatusPaid, map[string]interface{}{
			"external_payment_ref": paymentRef,
			"paid_at":              &now,
		})
		if err != nil {
			return fmt.Errorf("%w: %v", ErrOrderUpdateFailed, err)
		}
		if affected == 0 {
			return fmt.Errorf("%w: order is not pending", ErrInvalidOrderState)
		}
		return s.settlementSvc.EnsureTasksTx(tx, order.ID)
	})
	if err != nil {
		return nil, err
	}
	logger.Infow("payment_confirmed",
		"order_id", order.ID,
		"user_id", input.UserID,
		"payment_ref", paymentRef,
	)

	// 结算异步执行，不影响支付确认结果
	s.settlementSvc.Dispatch(order.ID, constants.SettlementStageCommission)

	updated, err := s.orderRepo.GetByID(order.ID)
	if err != nil || updated == nil {
		return order, nil
	}
	return updated, nil
}

func (s *PaymentService) verify(ctx context.Context, assertion PaymentAssertion) error {
	if s.verifier == nil {
		return ErrPaymentNotVerified
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, s.verifyTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- s.verifier.Verify(ctx, assertion)
	}()
	select {
	case err := <-done:
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrInvalidSignature) {
			return err
		}
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return fmt.Errorf("%w: %v", ErrPaymentNotVerified, err)
		}
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", ErrPaymentNotVerified, ctx.Err())
	}
}
