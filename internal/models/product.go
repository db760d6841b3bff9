package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Product 商品表（库存仅由下单预占与取消释放修改）
type Product struct {
	ID        uint           `gorm:"primarykey" json:"id"`                                   // 主键
	SKU       string         `gorm:"type:varchar(64);uniqueIndex;not null" json:"sku"`       // 商品编码
	Name      string         `gorm:"type:varchar(255);not null" json:"name"`                 // 商品名称
	Price     Money          `gorm:"type:decimal(20,2);not null;default:0" json:"price"`     // 原价
	Discount  Money          `gorm:"type:decimal(5,2);not null;default:0" json:"discount"`   // 折扣（百分比 0-100）
	Stock     int            `gorm:"not null;default:0" json:"stock"`                        // 可用库存
	IsActive  bool           `gorm:"not null;index" json:"is_active"`           // 是否上架
	CreatedAt time.Time      `gorm:"index" json:"created_at"`                                // 创建时间
	UpdatedAt time.Time      `gorm:"index" json:"updated_at"`                                // 更新时间
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`                                         // 软删除时间
}

// TableName 指定表名
func (Product) TableName() string {
	return "products"
}

// EffectivePrice 折后单价
func (p Product) EffectivePrice() Money {
	discount := p.Discount.Decimal
	if discount.LessThanOrEqual(decimal.Zero) {
		return NewMoneyFromDecimal(p.Price.Decimal)
	}
	if discount.GreaterThan(decimal.NewFromInt(100)) {
		discount = decimal.NewFromInt(100)
	}
	factor := decimal.NewFromInt(100).Sub(discount).Div(decimal.NewFromInt(100))
	return NewMoneyFromDecimal(p.Price.Decimal.Mul(factor))
}
