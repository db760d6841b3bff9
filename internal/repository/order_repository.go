package repository

import (
	"errors"
	"time"

	"github.com/dujiao-next/settlement/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OrderRepository 订单数据访问接口
type OrderRepository interface {
	Create(order *models.Order, items []models.OrderItem) error
	GetByID(id uint) (*models.Order, error)
	GetByIDForUpdate(id uint) (*models.Order, error)
	GetByUserAndExternalRef(userID uint, externalOrderRef string) (*models.Order, error)
	GetByUserAndID(userID uint, id uint) (*models.Order, error)
	ListByUser(filter OrderListFilter) ([]models.Order, int64, error)
	TransitionStatus(id uint, userID uint, from string, to string, updates map[string]interface{}) (int64, error)
	SumSettledVolume(userIDs []uint, statuses []string, since time.Time) (decimal.Decimal, error)
	WithTx(tx *gorm.DB) *GormOrderRepository
}

// GormOrderRepository GORM 实现
type GormOrderRepository struct {
	db *gorm.DB
}

// NewOrderRepository 创建订单仓库
func NewOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// WithTx 绑定事务
func (r *GormOrderRepository) WithTx(tx *gorm.DB) *GormOrderRepository {
	if tx == nil {
		return r
	}
	return &GormOrderRepository{db: tx}
}

// Create 创建订单与订单项
func (r *GormOrderRepository) Create(order *models.Order, items []models.OrderItem) error {
	if err := r.db.Omit("Items").Create(order).Error; err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}
	for i := range items {
		items[i].OrderID = order.ID
		items[i].Position = i + 1
	}
	if err := r.db.Create(&items).Error; err != nil {
		return err
	}
	order.Items = items
	return nil
}

// GetByID 根据 ID 获取订单（含订单项）
func (r *GormOrderRepository) GetByID(id uint) (*models.Order, error) {
	if id == 0 {
		return nil, nil
	}
	var order models.Order
	if err := r.db.Preload("Items", orderItemsByPosition).First(&order, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

// GetByIDForUpdate 加行锁获取订单
func (r *GormOrderRepository) GetByIDForUpdate(id uint) (*models.Order, error) {
	if id == 0 {
		return nil, nil
	}
	var order models.Order
	if err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&order, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

// GetByUserAndExternalRef 按用户与网关订单引用获取订单
func (r *GormOrderRepository) GetByUserAndExternalRef(userID uint, externalOrderRef string) (*models.Order, error) {
	if userID == 0 || externalOrderRef == "" {
		return nil, nil
	}
	var order models.Order
	if err := r.db.Where("user_id = ? AND external_order_ref = ?", userID, externalOrderRef).First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

// GetByUserAndID 按用户与订单 ID 获取订单（含订单项）
func (r *GormOrderRepository) GetByUserAndID(userID uint, id uint) (*models.Order, error) {
	if userID == 0 || id == 0 {
		return nil, nil
	}
	var order models.Order
	if err := r.db.Preload("Items", orderItemsByPosition).
		Where("id = ? AND user_id = ?", id, userID).
		First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

// ListByUser 分页查询用户订单
func (r *GormOrderRepository) ListByUser(filter OrderListFilter) ([]models.Order, int64, error) {
	query := r.db.Model(&models.Order{}).Where("user_id = ?", filter.UserID)
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	query = applyPagination(query, filter.Page, filter.PageSize)

	var orders []models.Order
	if err := query.Preload("Items", orderItemsByPosition).Order("id desc").Find(&orders).Error; err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// TransitionStatus 状态比较并交换：仅当当前状态为 from 时更新为 to
// userID 为 0 时不限定归属（管理端流转）
func (r *GormOrderRepository) TransitionStatus(id uint, userID uint, from string, to string, updates map[string]interface{}) (int64, error) {
	if id == 0 {
		return 0, errors.New("invalid order id")
	}
	fields := map[string]interface{}{
		"status":     to,
		"updated_at": time.Now(),
	}
	for key, value := range updates {
		fields[key] = value
	}
	query := r.db.Model(&models.Order{}).Where("id = ? AND status = ?", id, from)
	if userID != 0 {
		query = query.Where("user_id = ?", userID)
	}
	result := query.Updates(fields)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// SumSettledVolume 统计用户集合在窗口内已结算订单金额
func (r *GormOrderRepository) SumSettledVolume(userIDs []uint, statuses []string, since time.Time) (decimal.Decimal, error) {
	if len(userIDs) == 0 || len(statuses) == 0 {
		return decimal.Zero, nil
	}
	var totals []models.Money
	if err := r.db.Model(&models.Order{}).
		Where("user_id IN ? AND status IN ? AND paid_at >= ?", userIDs, statuses, since).
		Pluck("total_amount", &totals).Error; err != nil {
		return decimal.Zero, err
	}
	sum := decimal.Zero
	for _, amount := range totals {
		sum = sum.Add(amount.Decimal)
	}
	return sum, nil
}

func orderItemsByPosition(db *gorm.DB) *gorm.DB {
	return db.Order("position asc")
}
