package repository

import (
	"errors"
	"time"

	"github.com/dujiao-next/settlement/internal/constants"
	"github.com/dujiao-next/settlement/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SettlementTaskRepository 结算出箱任务数据访问接口
type SettlementTaskRepository interface {
	Ensure(orderID uint, stage string) (*models.SettlementTask, error)
	Get(orderID uint, stage string) (*models.SettlementTask, error)
	ListByOrder(orderID uint) ([]models.SettlementTask, error)
	ListStale(filter SettlementTaskSweepFilter) ([]models.SettlementTask, error)
	MarkRunning(id uint, staleBefore time.Time) (int64, error)
	MarkDone(id uint) error
	MarkFailed(id uint, status string, reason string) error
	Reset(orderID uint, stage string) error
	WithTx(tx *gorm.DB) *GormSettlementTaskRepository
}

// GormSettlementTaskRepository GORM 实现
type GormSettlementTaskRepository struct {
	db *gorm.DB
}

// NewSettlementTaskRepository 创建结算任务仓库
func NewSettlementTaskRepository(db *gorm.DB) *GormSettlementTaskRepository {
	return &GormSettlementTaskRepository{db: db}
}

// WithTx 绑定事务
func (r *GormSettlementTaskRepository) WithTx(tx *gorm.DB) *GormSettlementTaskRepository {
	if tx == nil {
		return r
	}
	return &GormSettlementTaskRepository{db: tx}
}

// Ensure 按 (订单, 阶段) 幂等创建任务并返回当前记录
func (r *GormSettlementTaskRepository) Ensure(orderID uint, stage string) (*models.SettlementTask, error) {
	task := &models.SettlementTask{
		OrderID: orderID,
		Stage:   stage,
		Status:  constants.SettlementTaskStatusPending,
	}
	if err := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "order_id"}, {Name: "stage"}},
		DoNothing: true,
	}).Create(task).Error; err != nil {
		return nil, err
	}
	return r.Get(orderID, stage)
}

// Get 获取任务
func (r *GormSettlementTaskRepository) Get(orderID uint, stage string) (*models.SettlementTask, error) {
	var task models.SettlementTask
	if err := r.db.Where("order_id = ? AND stage = ?", orderID, stage).First(&task).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &task, nil
}

// ListByOrder 获取订单全部结算任务
func (r *GormSettlementTaskRepository) ListByOrder(orderID uint) ([]models.SettlementTask, error) {
	var tasks []models.SettlementTask
	if err := r.db.Where("order_id = ?", orderID).Order("id asc").Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

// ListStale 扫描滞留任务
func (r *GormSettlementTaskRepository) ListStale(filter SettlementTaskSweepFilter) ([]models.SettlementTask, error) {
	query := r.db.Model(&models.SettlementTask{})
	if len(filter.Statuses) > 0 {
		query = query.Where("status IN ?", filter.Statuses)
	}
	if !filter.UpdatedBefore.IsZero() {
		query = query.Where("updated_at < ?", filter.UpdatedBefore)
	}
	if filter.MaxAttempts > 0 {
		query = query.Where("attempts < ?", filter.MaxAttempts)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	var tasks []models.SettlementTask
	if err := query.Order("id asc").Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

// MarkRunning 占用任务并累加尝试次数：只占用待执行、失败，或在 staleBefore 之前就已滞留的执行中任务
func (r *GormSettlementTaskRepository) MarkRunning(id uint, staleBefore time.Time) (int64, error) {
	result := r.db.Model(&models.SettlementTask{}).
		Where("id = ? AND (status IN ? OR (status = ? AND updated_at < ?))",
			id,
			[]string{constants.SettlementTaskStatusPending, constants.SettlementTaskStatusFailed},
			constants.SettlementTaskStatusRunning,
			staleBefore,
		).
		Updates(map[string]interface{}{
			"status":     constants.SettlementTaskStatusRunning,
			"attempts":   gorm.Expr("attempts + 1"),
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// MarkDone 标记完成
func (r *GormSettlementTaskRepository) MarkDone(id uint) error {
	now := time.Now()
	return r.db.Model(&models.SettlementTask{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":       constants.SettlementTaskStatusDone,
		"last_error":   "",
		"completed_at": &now,
		"updated_at":   now,
	}).Error
}

// MarkFailed 标记失败或中止
func (r *GormSettlementTaskRepository) MarkFailed(id uint, status string, reason string) error {
	if len(reason) > 2000 {
		reason = reason[:2000]
	}
	return r.db.Model(&models.SettlementTask{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":     status,
		"last_error": reason,
		"updated_at": time.Now(),
	}).Error
}

// Reset 重置任务为待执行（管理端重放）
func (r *GormSettlementTaskRepository) Reset(orderID uint, stage string) error {
	return r.db.Model(&models.SettlementTask{}).
		Where("order_id = ? AND stage = ?", orderID, stage).
		Updates(map[string]interface{}{
			"status":     constants.SettlementTaskStatusPending,
			"attempts":   0,
			"last_error": "",
			"updated_at": time.Now(),
		}).Error
}
