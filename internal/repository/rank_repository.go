package repository

import (
	"errors"

	"github.com/dujiao-next/settlement/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RankRepository 等级数据访问接口
type RankRepository interface {
	ListOrdered() ([]models.Rank, error)
	GetByID(id uint) (*models.Rank, error)
	GetByName(name string) (*models.Rank, error)
	Create(rank *models.Rank) error
	CreateAchievementIfAbsent(achievement *models.RankAchievement) (bool, error)
	ListAchievementsByUser(userID uint) ([]models.RankAchievement, error)
	WithTx(tx *gorm.DB) *GormRankRepository
}

// GormRankRepository GORM 实现
type GormRankRepository struct {
	db *gorm.DB
}

// NewRankRepository 创建等级仓库
func NewRankRepository(db *gorm.DB) *GormRankRepository {
	return &GormRankRepository{db: db}
}

// WithTx 绑定事务
func (r *GormRankRepository) WithTx(tx *gorm.DB) *GormRankRepository {
	if tx == nil {
		return r
	}
	return &GormRankRepository{db: tx}
}

// ListOrdered 按等级序升序获取全部等级
func (r *GormRankRepository) ListOrdered() ([]models.Rank, error) {
	var ranks []models.Rank
	if err := r.db.Order("sort_order asc").Find(&ranks).Error; err != nil {
		return nil, err
	}
	return ranks, nil
}

// GetByID 根据 ID 获取等级
func (r *GormRankRepository) GetByID(id uint) (*models.Rank, error) {
	if id == 0 {
		return nil, nil
	}
	var rank models.Rank
	if err := r.db.First(&rank, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &rank, nil
}

// GetByName 根据名称获取等级
func (r *GormRankRepository) GetByName(name string) (*models.Rank, error) {
	var rank models.Rank
	if err := r.db.Where("name = ?", name).First(&rank).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &rank, nil
}

// Create 创建等级
func (r *GormRankRepository) Create(rank *models.Rank) error {
	return r.db.Create(rank).Error
}

// CreateAchievementIfAbsent 写入晋级记录，已存在时返回 false
func (r *GormRankRepository) CreateAchievementIfAbsent(achievement *models.RankAchievement) (bool, error) {
	result := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "rank_id"}},
		DoNothing: true,
	}).Create(achievement)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ListAchievementsByUser 获取用户晋级历史
func (r *GormRankRepository) ListAchievementsByUser(userID uint) ([]models.RankAchievement, error) {
	var achievements []models.RankAchievement
	if err := r.db.Preload("Rank").Where("user_id = ?", userID).Order("achieved_at asc, id asc").Find(&achievements).Error; err != nil {
		return nil, err
	}
	return achievements, nil
}
