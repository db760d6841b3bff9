package service

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dujiao-next/settlement/internal/config"
	"github.com/dujiao-next/settlement/internal/constants"
	"github.com/dujiao-next/settlement/internal/logger"
	"github.com/dujiao-next/settlement/internal/models"
	"github.com/dujiao-next/settlement/internal/repository"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// OrderService 订单服务：下单预占库存、取消释放库存、查询
type OrderService struct {
	orderRepo   repository.OrderRepository
	productRepo repository.ProductRepository
	userRepo    repository.UserRepository
	cfg         config.OrderConfig
	orderIDs    *snowflake.Node
}

const (
	orderNoPrefix      = "ST"
	defaultOrderNodeID = 1
)

// CreateOrderItem 下单项
type CreateOrderItem struct {
	ProductID uint `json:"product_id"`
	Quantity  int  `json:"quantity"`
}

// PlaceOrderInput 下单参数
type PlaceOrderInput struct {
	UserID      uint
	Items       []CreateOrderItem
	Total       string // 客户端声明金额，可为空
	ShippingRef string
}

// NewOrderService 创建订单服务
func NewOrderService(
	orderRepo repository.OrderRepository,
	productRepo repository.ProductRepository,
	userRepo repository.UserRepository,
	cfg config.OrderConfig,
) *OrderService {
	node, err := snowflake.NewNode(int64(cfg.NodeID))
	if err != nil {
		logger.Warnw("order_node_id_invalid", "node_id", cfg.NodeID, "fallback", defaultOrderNodeID, "error", err)
		node, _ = snowflake.NewNode(defaultOrderNodeID)
	}
	return &OrderService{
		orderRepo:   orderRepo,
		productRepo: productRepo,
		userRepo:    userRepo,
		cfg:         cfg,
		orderIDs:    node,
	}
}

// PlaceOrder 校验库存并在同一事务内创建订单与预占库存
func (s *OrderService) PlaceOrder(input PlaceOrderInput) (*models.Order, error) {
	if input.UserID == 0 {
		return nil, fmt.Errorf("%w: user required", ErrValidation)
	}
	items, err := mergeCreateOrderItems(input.Items)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: items required", ErrValidation)
	}
	var claimed *decimal.Decimal
	if raw := strings.TrimSpace(input.Total); raw != "" {
		value, err := decimal.NewFromString(raw)
		if err != nil || value.IsNegative() {
			return nil, fmt.Errorf("%w: invalid total", ErrValidation)
		}
		value = models.RoundMinorUnit(value)
		claimed = &value
	}
	user, err := s.userRepo.GetByID(input.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	if user.Status == constants.UserStatusDisabled {
		return nil, ErrUserDisabled
	}

	// 按商品 ID 顺序加锁，避免并发下单互相等待
	lockOrder := make([]int, len(items))
	for i := range lockOrder {
		lockOrder[i] = i
	}
	sort.Slice(lockOrder, func(a, b int) bool {
		return items[lockOrder[a]].ProductID < items[lockOrder[b]].ProductID
	})

	var order *models.Order
	err = models.DB.Transaction(func(tx *gorm.DB) error {
		productRepo := s.productRepo.WithTx(tx)
		orderItems := make([]models.OrderItem, len(items))
		total := decimal.Zero
		for _, idx := range lockOrder {
			item := items[idx]
			product, err := productRepo.GetByIDForUpdate(item.ProductID)
			if err != nil {
				return err
			}
			if product == nil {
				return fmt.Errorf("%w: product %d", ErrProductNotFound, item.ProductID)
			}
			if !product.IsActive {
				return fmt.Errorf("%w: product %d", ErrProductUnavailable, item.ProductID)
			}
			if product.Stock < item.Quantity {
				return fmt.Errorf("%w: product %d", ErrOutOfStock, item.ProductID)
			}
			affected, err := productRepo.ReserveStock(product.ID, item.Quantity)
			if err != nil {
				return err
			}
			if affected == 0 {
				return fmt.Errorf("%w: product %d", ErrOutOfStock, item.ProductID)
			}
			unitPrice := product.EffectivePrice()
			lineTotal := models.RoundMinorUnit(unitPrice.Decimal.Mul(decimal.NewFromInt(int64(item.Quantity))))
			total = total.Add(lineTotal)
			orderItems[idx] = models.OrderItem{
				ProductID:   product.ID,
				ProductName: product.Name,
				UnitPrice:   unitPrice,
				Quantity:    item.Quantity,
				TotalPrice:  models.NewMoneyFromDecimal(lineTotal),
			}
		}
		total = models.RoundMinorUnit(total)
		if claimed != nil && !claimed.Equal(total) {
			return fmt.Errorf("%w: total mismatch, expected %s", ErrValidation, total.StringFixed(2))
		}

		now := time.Now()
		order = &models.Order{
			OrderNo:          s.nextOrderNo(),
			UserID:           input.UserID,
			Status:           constants.OrderStatusPending,
			TotalAmount:      models.NewMoneyFromDecimal(total),
			ShippingRef:      strings.TrimSpace(input.ShippingRef),
			ExternalOrderRef: uuid.NewString(),
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		if err := s.orderRepo.WithTx(tx).Create(order, orderItems); err != nil {
			return fmt.Errorf("%w: %v", ErrOrderCreateFailed, err)
		}
		order.Items = orderItems
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.Infow("order_placed",
		"order_id", order.ID,
		"order_no", order.OrderNo,
		"user_id", order.UserID,
		"total_amount", order.TotalAmount.String(),
	)
	return order, nil
}

// CancelOrder 用户取消待支付订单，按配置释放预占库存
func (s *OrderService) CancelOrder(userID uint, orderID uint) (*models.Order, error) {
	if userID == 0 || orderID == 0 {
		return nil, ErrValidation
	}
	order, err := s.orderRepo.GetByUserAndID(userID, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if err := s.transition(order, userID, constants.OrderStatusCancelled); err != nil {
		return nil, err
	}
	return s.orderRepo.GetByUserAndID(userID, orderID)
}

// GetOrder 用户查询订单详情
func (s *OrderService) GetOrder(userID uint, orderID uint) (*models.Order, error) {
	order, err := s.orderRepo.GetByUserAndID(userID, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

// ListOrders 用户查询订单列表
func (s *OrderService) ListOrders(filter repository.OrderListFilter) ([]models.Order, int64, error) {
	if filter.UserID == 0 {
		return nil, 0, ErrValidation
	}
	return s.orderRepo.ListByUser(filter)
}

// nextOrderNo 雪花 ID 保证多实例下单号唯一且按时间递增
func (s *OrderService) nextOrderNo() string {
	return orderNoPrefix + s.orderIDs.Generate().String()
}

// mergeCreateOrderItems 合并重复商品的下单项
func mergeCreateOrderItems(items []CreateOrderItem) ([]CreateOrderItem, error) {
	if len(items) == 0 {
		return nil, nil
	}
	merged := make([]CreateOrderItem, 0, len(items))
	indexMap := make(map[uint]int)
	for _, item := range items {
		if item.ProductID == 0 || item.Quantity <= 0 {
			return nil, fmt.Errorf("%w: invalid order item", ErrValidation)
		}
		if idx, ok := indexMap[item.ProductID]; ok {
			merged[idx].Quantity += item.Quantity
			continue
		}
		indexMap[item.ProductID] = len(merged)
		merged = append(merged, item)
	}
	return merged, nil
}
