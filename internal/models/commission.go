package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Commission 推荐佣金记录（订单 + 收益人唯一，作为结算幂等键）
type Commission struct {
	ID           uint            `gorm:"primarykey" json:"id"`                                                          // 主键
	OrderID      uint            `gorm:"not null;index:idx_commission_order_earner,unique" json:"order_id"`             // 订单ID
	EarnerUserID uint            `gorm:"not null;index:idx_commission_order_earner,unique;index" json:"earner_user_id"` // 收益人
	FromUserID   uint            `gorm:"not null;index" json:"from_user_id"`                                            // 下单用户
	Level        int             `gorm:"not null" json:"level"`                                                         // 层级
	BaseAmount   Money           `gorm:"type:decimal(20,2);not null;default:0" json:"base_amount"`                      // 订单金额
	Percentage   Money           `gorm:"type:decimal(10,2);not null;default:0" json:"percentage"`                       // 层级比例
	Multiplier   decimal.Decimal `gorm:"type:decimal(10,3);not null;default:1" json:"multiplier"`                       // 等级倍率
	Amount       Money           `gorm:"type:decimal(20,2);not null;default:0" json:"amount"`                           // 佣金金额
	Type         string          `gorm:"type:varchar(32);not null" json:"type"`                                         // 佣金类型
	Status       string          `gorm:"type:varchar(32);not null;index" json:"status"`                                 // 佣金状态
	CreatedAt    time.Time       `gorm:"index" json:"created_at"`                                                       // 创建时间
}

// TableName 指定表名
func (Commission) TableName() string {
	return "commissions"
}
