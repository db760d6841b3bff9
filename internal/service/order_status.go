package service

import (
	"fmt"
	"time"

	"github.com/dujiao-next/settlement/internal/constants"
	"github.com/dujiao-next/settlement/internal/logger"
	"github.com/dujiao-next/settlement/internal/models"

	"gorm.io/gorm"
)

// orderTransitions 订单状态只允许单向流转
var orderTransitions = map[string][]string{
	constants.OrderStatusPending: {constants.OrderStatusPaid, constants.OrderStatusCancelled},
	constants.OrderStatusPaid:    {constants.OrderStatusShipped},
	constants.OrderStatusShipped: {constants.OrderStatusDelivered},
}

// CanTransitionOrder 判断订单状态能否流转
func CanTransitionOrder(from, to string) bool {
	for _, target := range orderTransitions[from] {
		if target == to {
			return true
		}
	}
	return false
}

// ShipOrder 管理端发货
func (s *OrderService) ShipOrder(orderID uint) (*models.Order, error) {
	return s.adminTransition(orderID, constants.OrderStatusShipped)
}

// DeliverOrder 管理端确认签收
func (s *OrderService) DeliverOrder(orderID uint) (*models.Order, error) {
	return s.adminTransition(orderID, constants.OrderStatusDelivered)
}

func (s *OrderService) adminTransition(orderID uint, target string) (*models.Order, error) {
	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if err := s.transition(order, 0, target); err != nil {
		return nil, err
	}
	return s.orderRepo.GetByID(orderID)
}

// transition 以当前状态做比较交换；取消时在同一事务内释放库存
func (s *OrderService) transition(order *models.Order, userID uint, target string) error {
	if !CanTransitionOrder(order.Status, target) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidOrderState, order.Status, target)
	}
	now := time.Now()
	updates := map[string]interface{}{}
	switch target {
	case constants.OrderStatusShipped:
		updates["shipped_at"] = &now
	case constants.OrderStatusDelivered:
		updates["delivered_at"] = &now
	case constants.OrderStatusCancelled:
		updates["cancelled_at"] = &now
	}

	err := models.DB.Transaction(func(tx *gorm.DB) error {
		affected, err := s.orderRepo.WithTx(tx).TransitionStatus(order.ID, userID, order.Status, target, updates)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrOrderUpdateFailed, err)
		}
		if affected == 0 {
			return fmt.Errorf("%w: order %d changed concurrently", ErrInvalidOrderState, order.ID)
		}
		if target != constants.OrderStatusCancelled || !s.cfg.CancelReleasesStock {
			return nil
		}
		var items []models.OrderItem
		if err := tx.Where("order_id = ?", order.ID).Find(&items).Error; err != nil {
			return err
		}
		productRepo := s.productRepo.WithTx(tx)
		for _, item := range items {
			if _, err := productRepo.ReleaseStock(item.ProductID, item.Quantity); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	logger.Infow("order_status_changed",
		"order_id", order.ID,
		"from", order.Status,
		"to", target,
	)
	return nil
}
