package models

import (
	"time"

	"gorm.io/gorm"
)

// Order 订单表
type Order struct {
	ID                 uint           `gorm:"primarykey" json:"id"`                                                      // 主键
	OrderNo            string         `gorm:"type:varchar(64);uniqueIndex;not null" json:"order_no"`                     // 订单号
	UserID             uint           `gorm:"not null;index:idx_orders_user_status_paid,priority:1" json:"user_id"`      // 下单用户
	Status             string         `gorm:"type:varchar(32);not null;index:idx_orders_user_status_paid,priority:2" json:"status"` // 订单状态
	TotalAmount        Money          `gorm:"type:decimal(20,2);not null;default:0" json:"total_amount"`                 // 订单金额
	ShippingRef        string         `gorm:"type:varchar(255);not null;default:''" json:"shipping_ref"`                 // 收货信息引用
	ExternalOrderRef   string         `gorm:"type:varchar(128);uniqueIndex;not null" json:"external_order_ref"`          // 网关订单引用（参与签名）
	ExternalPaymentRef string         `gorm:"type:varchar(128);index;not null;default:''" json:"external_payment_ref"`   // 网关支付流水
	PaidAt             *time.Time     `gorm:"index:idx_orders_user_status_paid,priority:3" json:"paid_at"`              // 支付时间
	ShippedAt          *time.Time     `json:"shipped_at"`                                                                // 发货时间
	DeliveredAt        *time.Time     `json:"delivered_at"`                                                              // 签收时间
	CancelledAt        *time.Time     `json:"cancelled_at"`                                                              // 取消时间
	CreatedAt          time.Time      `gorm:"index" json:"created_at"`                                                   // 创建时间
	UpdatedAt          time.Time      `gorm:"index" json:"updated_at"`                                                   // 更新时间
	DeletedAt          gorm.DeletedAt `gorm:"index" json:"-"`                                                            // 软删除时间

	Items []OrderItem `gorm:"foreignKey:OrderID" json:"items,omitempty"` // 订单项
}

// TableName 指定表名
func (Order) TableName() string {
	return "orders"
}
