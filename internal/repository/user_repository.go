package repository

import (
	"errors"
	"strings"
	"time"

	"github.com/dujiao-next/settlement/internal/models"

	"gorm.io/gorm"
)

// UserRepository 用户数据访问接口
type UserRepository interface {
	GetByID(id uint) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	Create(user *models.User) error
	UpdateLastLogin(id uint, at time.Time) error
	CountDirectReferrals(userID uint) (int64, error)
	ListDirectReferralIDs(userID uint) ([]uint, error)
	PromoteRank(userID uint, rankID uint, fromRankID *uint) (int64, error)
	WithTx(tx *gorm.DB) *GormUserRepository
}

// GormUserRepository GORM 实现
type GormUserRepository struct {
	db *gorm.DB
}

// NewUserRepository 创建用户仓库
func NewUserRepository(db *gorm.DB) *GormUserRepository {
	return &GormUserRepository{db: db}
}

// WithTx 绑定事务
func (r *GormUserRepository) WithTx(tx *gorm.DB) *GormUserRepository {
	if tx == nil {
		return r
	}
	return &GormUserRepository{db: tx}
}

// GetByID 根据 ID 获取用户
func (r *GormUserRepository) GetByID(id uint) (*models.User, error) {
	if id == 0 {
		return nil, nil
	}
	var user models.User
	if err := r.db.First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

// GetByEmail 根据邮箱获取用户
func (r *GormUserRepository) GetByEmail(email string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, nil
	}
	var user models.User
	if err := r.db.Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

// Create 创建用户
func (r *GormUserRepository) Create(user *models.User) error {
	return r.db.Create(user).Error
}

// UpdateLastLogin 更新最后登录时间
func (r *GormUserRepository) UpdateLastLogin(id uint, at time.Time) error {
	return r.db.Model(&models.User{}).Where("id = ?", id).Update("last_login_at", at).Error
}

// CountDirectReferrals 统计直推人数
func (r *GormUserRepository) CountDirectReferrals(userID uint) (int64, error) {
	var count int64
	if err := r.db.Model(&models.User{}).Where("referrer_id = ?", userID).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// ListDirectReferralIDs 获取直推用户 ID 列表
func (r *GormUserRepository) ListDirectReferralIDs(userID uint) ([]uint, error) {
	var ids []uint
	if err := r.db.Model(&models.User{}).Where("referrer_id = ?", userID).Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// PromoteRank 条件更新用户等级（当前等级仍为 fromRankID 时才写入）
func (r *GormUserRepository) PromoteRank(userID uint, rankID uint, fromRankID *uint) (int64, error) {
	query := r.db.Model(&models.User{}).Where("id = ?", userID)
	if fromRankID == nil {
		query = query.Where("current_rank_id IS NULL")
	} else {
		query = query.Where("current_rank_id = ?", *fromRankID)
	}
	result := query.Update("current_rank_id", rankID)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
