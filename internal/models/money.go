package models

import (
	"database/sql/driver"
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// MoneyScale 金额精度（最小货币单位：分）
const MoneyScale int32 = 2

// Money 统一金额类型（保留 2 位小数）
type Money struct {
	decimal.Decimal
}

// NewMoneyFromDecimal 从 decimal 创建金额（四舍五入到分）
func NewMoneyFromDecimal(amount decimal.Decimal) Money {
	return Money{Decimal: RoundMinorUnit(amount)}
}

// NewMoneyFromString 从字符串创建金额
func NewMoneyFromString(value string) (Money, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return Money{}, err
	}
	return NewMoneyFromDecimal(d), nil
}

// ZeroMoney 零金额
func ZeroMoney() Money {
	return Money{Decimal: decimal.Zero}
}

// RoundMinorUnit 按最小货币单位四舍五入（half-up，非负数与远离零等价）
func RoundMinorUnit(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(MoneyScale)
}

// Add 金额相加
func (m Money) Add(other Money) Money {
	return NewMoneyFromDecimal(m.Decimal.Add(other.Decimal))
}

// MarshalJSON 统一输出 2 位小数的字符串
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// UnmarshalJSON 兼容字符串与数字两种写法
func (m *Money) UnmarshalJSON(b []byte) error {
	text := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if text == "" || text == "null" {
		return nil
	}
	parsed, err := NewMoneyFromString(text)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Value 用于数据库写入
func (m Money) Value() (driver.Value, error) {
	return RoundMinorUnit(m.Decimal).Value()
}

// Scan 用于数据库读取
func (m *Money) Scan(value interface{}) error {
	if err := m.Decimal.Scan(value); err != nil {
		return err
	}
	m.Decimal = RoundMinorUnit(m.Decimal)
	return nil
}

// String 返回 2 位小数格式
func (m Money) String() string {
	return RoundMinorUnit(m.Decimal).StringFixed(MoneyScale)
}
