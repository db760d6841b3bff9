package repository

import (
	"github.com/dujiao-next/settlement/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// NotificationRepository 通知请求数据访问接口
type NotificationRepository interface {
	CreateIfAbsent(notification *models.Notification) (bool, error)
	ListByUser(userID uint, limit int) ([]models.Notification, error)
}

// GormNotificationRepository GORM 实现
type GormNotificationRepository struct {
	db *gorm.DB
}

// NewNotificationRepository 创建通知仓库
func NewNotificationRepository(db *gorm.DB) *GormNotificationRepository {
	return &GormNotificationRepository{db: db}
}

// CreateIfAbsent 按去重键写入，已存在时返回 false
func (r *GormNotificationRepository) CreateIfAbsent(notification *models.Notification) (bool, error) {
	result := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "dedupe_key"}},
		DoNothing: true,
	}).Create(notification)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ListByUser 获取用户最近的通知请求
func (r *GormNotificationRepository) ListByUser(userID uint, limit int) ([]models.Notification, error) {
	if limit <= 0 {
		limit = 20
	}
	var notifications []models.Notification
	if err := r.db.Where("user_id = ?", userID).Order("id desc").Limit(limit).Find(&notifications).Error; err != nil {
		return nil, err
	}
	return notifications, nil
}
