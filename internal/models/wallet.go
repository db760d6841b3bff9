package models

import "time"

// WalletAccount 用户钱包
// 余额恒等式：balance = total_earnings - total_withdrawn - 已批准提现
type WalletAccount struct {
	ID             uint      `gorm:"primarykey" json:"id"`                                          // 主键
	UserID         uint      `gorm:"not null;uniqueIndex" json:"user_id"`                           // 用户ID
	Balance        Money     `gorm:"type:decimal(20,2);not null;default:0" json:"balance"`          // 可用余额
	TotalEarnings  Money     `gorm:"type:decimal(20,2);not null;default:0" json:"total_earnings"`   // 累计收益
	TotalWithdrawn Money     `gorm:"type:decimal(20,2);not null;default:0" json:"total_withdrawn"`  // 累计提现
	CreatedAt      time.Time `json:"created_at"`                                                    // 创建时间
	UpdatedAt      time.Time `json:"updated_at"`                                                    // 更新时间
}

// TableName 指定表名
func (WalletAccount) TableName() string {
	return "wallet_accounts"
}

// WalletTransaction 钱包流水
type WalletTransaction struct {
	ID            uint      `gorm:"primarykey" json:"id"`                                         // 主键
	UserID        uint      `gorm:"not null;index" json:"user_id"`                                // 用户ID
	OrderID       *uint     `gorm:"index" json:"order_id,omitempty"`                              // 关联订单
	CommissionID  *uint     `gorm:"index" json:"commission_id,omitempty"`                         // 关联佣金
	Type          string    `gorm:"type:varchar(32);not null;index" json:"type"`                  // 流水类型
	Direction     string    `gorm:"type:varchar(8);not null" json:"direction"`                    // 资金方向
	Amount        Money     `gorm:"type:decimal(20,2);not null;default:0" json:"amount"`          // 变动金额
	BalanceBefore Money     `gorm:"type:decimal(20,2);not null;default:0" json:"balance_before"`  // 变动前余额
	BalanceAfter  Money     `gorm:"type:decimal(20,2);not null;default:0" json:"balance_after"`   // 变动后余额
	Reference     string    `gorm:"type:varchar(128);not null;uniqueIndex" json:"reference"`      // 业务幂等引用
	Remark        string    `gorm:"type:varchar(255);not null;default:''" json:"remark"`          // 备注
	CreatedAt     time.Time `gorm:"index" json:"created_at"`                                      // 创建时间
}

// TableName 指定表名
func (WalletTransaction) TableName() string {
	return "wallet_transactions"
}
