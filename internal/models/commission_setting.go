package models

import "time"

// CommissionSetting 分佣层级配置
type CommissionSetting struct {
	ID         uint      `gorm:"primarykey" json:"id"`                                    // 主键
	Level      int       `gorm:"not null;uniqueIndex" json:"level"`                       // 层级（1 为直推）
	Percentage Money     `gorm:"type:decimal(10,2);not null;default:0" json:"percentage"` // 分佣比例（百分比）
	IsActive   bool      `gorm:"not null;index" json:"is_active"`            // 是否启用
	CreatedAt  time.Time `json:"created_at"`                                              // 创建时间
	UpdatedAt  time.Time `json:"updated_at"`                                              // 更新时间
}

// TableName 指定表名
func (CommissionSetting) TableName() string {
	return "commission_settings"
}
