package repository

import (
	"errors"

	"github.com/dujiao-next/settlement/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CommissionSettingRepository 分佣层级配置数据访问接口
type CommissionSettingRepository interface {
	List() ([]models.CommissionSetting, error)
	ListActive() ([]models.CommissionSetting, error)
	GetByLevel(level int) (*models.CommissionSetting, error)
	Count() (int64, error)
	Upsert(setting *models.CommissionSetting) error
	WithTx(tx *gorm.DB) *GormCommissionSettingRepository
}

// GormCommissionSettingRepository GORM 实现
type GormCommissionSettingRepository struct {
	db *gorm.DB
}

// NewCommissionSettingRepository 创建分佣配置仓库
func NewCommissionSettingRepository(db *gorm.DB) *GormCommissionSettingRepository {
	return &GormCommissionSettingRepository{db: db}
}

// WithTx 绑定事务
func (r *GormCommissionSettingRepository) WithTx(tx *gorm.DB) *GormCommissionSettingRepository {
	if tx == nil {
		return r
	}
	return &GormCommissionSettingRepository{db: tx}
}

// List 获取全部层级（按层级升序）
func (r *GormCommissionSettingRepository) List() ([]models.CommissionSetting, error) {
	var settings []models.CommissionSetting
	if err := r.db.Order("level asc").Find(&settings).Error; err != nil {
		return nil, err
	}
	return settings, nil
}

// ListActive 获取启用层级（按层级升序）
func (r *GormCommissionSettingRepository) ListActive() ([]models.CommissionSetting, error) {
	var settings []models.CommissionSetting
	if err := r.db.Where("is_active = ?", true).Order("level asc").Find(&settings).Error; err != nil {
		return nil, err
	}
	return settings, nil
}

// GetByLevel 按层级获取
func (r *GormCommissionSettingRepository) GetByLevel(level int) (*models.CommissionSetting, error) {
	var setting models.CommissionSetting
	if err := r.db.Where("level = ?", level).First(&setting).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &setting, nil
}

// Count 统计层级数量
func (r *GormCommissionSettingRepository) Count() (int64, error) {
	var count int64
	if err := r.db.Model(&models.CommissionSetting{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Upsert 按层级写入或覆盖
func (r *GormCommissionSettingRepository) Upsert(setting *models.CommissionSetting) error {
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "level"}},
		DoUpdates: clause.AssignmentColumns([]string{"percentage", "is_active", "updated_at"}),
	}).Create(setting).Error
}
