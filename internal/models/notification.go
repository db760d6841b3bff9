package models

import "time"

// Notification 待投递通知请求（模板渲染与投递由外部完成）
type Notification struct {
	ID           uint      `gorm:"primarykey" json:"id"`                                     // 主键
	Kind         string    `gorm:"type:varchar(32);not null;index" json:"kind"`              // 通知类型
	UserID       uint      `gorm:"not null;index" json:"user_id"`                            // 接收用户
	OrderID      uint      `gorm:"not null;index" json:"order_id"`                           // 关联订单
	CommissionID *uint     `json:"commission_id,omitempty"`                                  // 关联佣金
	DedupeKey    string    `gorm:"type:varchar(128);uniqueIndex;not null" json:"dedupe_key"` // 去重键
	Payload      JSON      `gorm:"type:json" json:"payload"`                                 // 通知内容
	CreatedAt    time.Time `gorm:"index" json:"created_at"`                                  // 创建时间
}

// TableName 指定表名
func (Notification) TableName() string {
	return "notifications"
}
