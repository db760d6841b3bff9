package repository

import "time"

// OrderListFilter 查询订单列表的过滤条件
type OrderListFilter struct {
	Page     int
	PageSize int
	UserID   uint
	Status   string
}

// CommissionListFilter 查询佣金列表的过滤条件
type CommissionListFilter struct {
	Page         int
	PageSize     int
	EarnerUserID uint
	OrderID      uint
	Level        int
}

// WalletTransactionListFilter 查询钱包流水的过滤条件
type WalletTransactionListFilter struct {
	Page     int
	PageSize int
	UserID   uint
	Type     string
}

// SettlementTaskSweepFilter 结算任务补偿扫描条件
type SettlementTaskSweepFilter struct {
	Statuses      []string
	UpdatedBefore time.Time
	MaxAttempts   int
	Limit         int
}

// ProductListFilter 商品列表查询条件
type ProductListFilter struct {
	Page        int
	PageSize    int
	Search      string
	OnlyActive  bool
	InStockOnly bool
}
