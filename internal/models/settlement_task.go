package models

import "time"

// SettlementTask 结算出箱任务（订单 + 阶段唯一）
type SettlementTask struct {
	ID          uint       `gorm:"primarykey" json:"id"`                                               // 主键
	OrderID     uint       `gorm:"not null;index:idx_settlement_task_order_stage,unique" json:"order_id"` // 订单ID
	Stage       string     `gorm:"type:varchar(32);not null;index:idx_settlement_task_order_stage,unique" json:"stage"` // 结算阶段
	Status      string     `gorm:"type:varchar(32);not null;index" json:"status"`                      // 任务状态
	Attempts    int        `gorm:"not null;default:0" json:"attempts"`                                 // 已尝试次数
	LastError   string     `gorm:"type:text" json:"last_error"`                                        // 最近错误
	CompletedAt *time.Time `json:"completed_at"`                                                       // 完成时间
	CreatedAt   time.Time  `gorm:"index" json:"created_at"`                                            // 创建时间
	UpdatedAt   time.Time  `gorm:"index" json:"updated_at"`                                            // 更新时间
}

// TableName 指定表名
func (SettlementTask) TableName() string {
	return "settlement_tasks"
}
