package repository

import (
	"errors"

	"github.com/dujiao-next/settlement/internal/models"

	"gorm.io/gorm"
)

// CommissionRepository 佣金数据访问接口
type CommissionRepository interface {
	GetByOrderAndEarner(orderID uint, earnerUserID uint) (*models.Commission, error)
	Create(commission *models.Commission) error
	ListByOrder(orderID uint) ([]models.Commission, error)
	List(filter CommissionListFilter) ([]models.Commission, int64, error)
	WithTx(tx *gorm.DB) *GormCommissionRepository
}

// GormCommissionRepository GORM 实现
type GormCommissionRepository struct {
	db *gorm.DB
}

// NewCommissionRepository 创建佣金仓库
func NewCommissionRepository(db *gorm.DB) *GormCommissionRepository {
	return &GormCommissionRepository{db: db}
}

// WithTx 绑定事务
func (r *GormCommissionRepository) WithTx(tx *gorm.DB) *GormCommissionRepository {
	if tx == nil {
		return r
	}
	return &GormCommissionRepository{db: tx}
}

// GetByOrderAndEarner 按幂等键获取佣金
func (r *GormCommissionRepository) GetByOrderAndEarner(orderID uint, earnerUserID uint) (*models.Commission, error) {
	var commission models.Commission
	if err := r.db.Where("order_id = ? AND earner_user_id = ?", orderID, earnerUserID).First(&commission).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &commission, nil
}

// Create 创建佣金记录
func (r *GormCommissionRepository) Create(commission *models.Commission) error {
	return r.db.Create(commission).Error
}

// ListByOrder 获取订单的全部佣金（按层级）
func (r *GormCommissionRepository) ListByOrder(orderID uint) ([]models.Commission, error) {
	var commissions []models.Commission
	if err := r.db.Where("order_id = ?", orderID).Order("level asc").Find(&commissions).Error; err != nil {
		return nil, err
	}
	return commissions, nil
}

// List 分页查询佣金
func (r *GormCommissionRepository) List(filter CommissionListFilter) ([]models.Commission, int64, error) {
	query := r.db.Model(&models.Commission{})
	if filter.EarnerUserID != 0 {
		query = query.Where("earner_user_id = ?", filter.EarnerUserID)
	}
	if filter.OrderID != 0 {
		query = query.Where("order_id = ?", filter.OrderID)
	}
	if filter.Level > 0 {
		query = query.Where("level = ?", filter.Level)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	query = applyPagination(query, filter.Page, filter.PageSize)

	var commissions []models.Commission
	if err := query.Order("id desc").Find(&commissions).Error; err != nil {
		return nil, 0, err
	}
	return commissions, total, nil
}
