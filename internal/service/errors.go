package service

import (
	"errors"
	"strings"
)

// 校验与输入错误
var (
	ErrValidation               = errors.New("validation failed")
	ErrInvalidCredentials       = errors.New("invalid credentials")
	ErrCommissionSettingInvalid = errors.New("commission setting invalid")
)

// 库存相关错误
var (
	ErrProductNotFound    = errors.New("product not found")
	ErrProductUnavailable = errors.New("product unavailable")
	ErrOutOfStock         = errors.New("out of stock")
)

// 订单与支付相关错误
var (
	ErrOrderNotFound      = errors.New("order not found")
	ErrInvalidOrderState  = errors.New("invalid order state")
	ErrInvalidSignature   = errors.New("invalid payment signature")
	ErrOrderCreateFailed  = errors.New("order create failed")
	ErrOrderUpdateFailed  = errors.New("order update failed")
	ErrPaymentNotVerified = errors.New("payment verification unavailable")
)

// 结算相关错误
var (
	ErrReferralCycleDetected  = errors.New("referral cycle detected")
	ErrLedgerWriteConflict    = errors.New("ledger write conflict")
	ErrSettlementStageUnknown = errors.New("settlement stage unknown")
	ErrSettlementTaskNotFound = errors.New("settlement task not found")
	ErrSettlementStageWaiting = errors.New("settlement stage waiting for commission")
	ErrWalletUpdateFailed     = errors.New("wallet update failed")
)

// 用户与等级相关错误
var (
	ErrUserNotFound  = errors.New("user not found")
	ErrUserDisabled  = errors.New("user disabled")
	ErrRankNotFound  = errors.New("rank not found")
	ErrAdminNotFound = errors.New("admin not found")
)

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate")
}
