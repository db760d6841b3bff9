package models

import (
	"time"

	"gorm.io/gorm"
)

// User 用户表
type User struct {
	ID            uint           `gorm:"primarykey" json:"id"`                                // 主键
	Email         string         `gorm:"uniqueIndex;not null" json:"email"`                   // 邮箱
	PasswordHash  string         `gorm:"not null;default:''" json:"-"`                        // 密码哈希（不返回给前端）
	DisplayName   string         `gorm:"default:''" json:"display_name"`                      // 昵称
	Role          string         `gorm:"type:varchar(32);not null;default:'customer'" json:"role"` // 角色
	Status        string         `gorm:"type:varchar(32);not null;default:'active'" json:"status"` // 账号状态
	ReferrerID    *uint          `gorm:"index" json:"referrer_id,omitempty"`                  // 上级推荐人（注册时写入，本系统只读）
	CurrentRankID *uint          `gorm:"index" json:"current_rank_id,omitempty"`              // 历史最高等级
	LastLoginAt   *time.Time     `json:"last_login_at"`                                       // 最后登录时间
	CreatedAt     time.Time      `gorm:"index" json:"created_at"`                             // 创建时间
	UpdatedAt     time.Time      `gorm:"index" json:"updated_at"`                             // 更新时间
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`                                      // 软删除时间

	CurrentRank *Rank `gorm:"foreignKey:CurrentRankID" json:"current_rank,omitempty"` // 当前等级
}

// TableName 指定表名
func (User) TableName() string {
	return "users"
}
