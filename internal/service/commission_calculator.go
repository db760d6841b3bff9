package service

import (
	"github.com/dujiao-next/settlement/internal/models"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// CalculateCommission 佣金 = 订单金额 × 比例/100 × 等级倍率，按最小货币单位四舍五入，结果不为负
func CalculateCommission(orderTotal, percentage, multiplier decimal.Decimal) decimal.Decimal {
	if orderTotal.LessThanOrEqual(decimal.Zero) || percentage.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}
	amount := orderTotal.Mul(percentage).Div(hundred).Mul(normalizeMultiplier(multiplier))
	amount = models.RoundMinorUnit(amount)
	if amount.IsNegative() {
		return decimal.Zero
	}
	return amount
}

// RankMultiplier 返回等级倍率，无等级时为 1
func RankMultiplier(rank *models.Rank) decimal.Decimal {
	if rank == nil {
		return decimal.NewFromInt(1)
	}
	return normalizeMultiplier(rank.CommissionMultiplier)
}

func normalizeMultiplier(multiplier decimal.Decimal) decimal.Decimal {
	one := decimal.NewFromInt(1)
	if multiplier.LessThan(one) {
		return one
	}
	return multiplier
}
