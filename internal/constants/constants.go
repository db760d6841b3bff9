package constants

// 订单状态常量
const (
	OrderStatusPending   = "pending"
	OrderStatusPaid      = "paid"
	OrderStatusShipped   = "shipped"
	OrderStatusDelivered = "delivered"
	OrderStatusCancelled = "cancelled"
)

// 计入业绩的订单状态
var SettledOrderStatuses = []string{
	OrderStatusPaid,
	OrderStatusShipped,
	OrderStatusDelivered,
}

// 佣金类型与状态常量
const (
	CommissionTypeReferral   = "referral"
	CommissionStatusApproved = "approved"
)

// 钱包流水类型常量
const (
	WalletTxnTypeCommission = "commission"
	WalletTxnTypePayout     = "payout"
	WalletTxnDirectionIn    = "in"
	WalletTxnDirectionOut   = "out"
)

// 用户角色与状态常量
const (
	UserRoleCustomer   = "customer"
	UserStatusActive   = "active"
	UserStatusDisabled = "disabled"
)

// 结算阶段常量
const (
	SettlementStageCommission   = "commission"
	SettlementStageRankEvaluate = "rank_evaluate"
	SettlementStageNotify       = "notify"
)

// 结算任务状态常量
const (
	SettlementTaskStatusPending = "pending"
	SettlementTaskStatusRunning = "running"
	SettlementTaskStatusDone    = "done"
	SettlementTaskStatusFailed  = "failed"
	SettlementTaskStatusAborted = "aborted"
)

// 通知类型常量
const (
	NotificationKindOrderConfirmation = "order_confirmation"
	NotificationKindCommissionAlert   = "commission_alert"
)

// 默认佣金层级比例（百分比）
var DefaultCommissionPercentages = []string{"10", "5", "3"}

// 队列与任务常量
const (
	QueueSettlement = "settlement"
	QueueNotify     = "notify"

	TaskSettlementCommission   = "settlement:commission"
	TaskSettlementRankEvaluate = "settlement:rank_evaluate"
	TaskSettlementNotify       = "settlement:notify"
	TaskNotifyOrderConfirmed   = "notify:order_confirmation"
	TaskNotifyCommissionAlert  = "notify:commission_alert"
)
