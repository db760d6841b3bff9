package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/dujiao-next/settlement/internal/constants"
	"github.com/dujiao-next/settlement/internal/logger"
	"github.com/dujiao-next/settlement/internal/models"
	"github.com/dujiao-next/settlement/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CommissionCredit 单个收益人的入账请求
type CommissionCredit struct {
	OrderID      uint
	EarnerUserID uint
	FromUserID   uint
	Level        int
	BaseAmount   decimal.Decimal
	Percentage   decimal.Decimal
	Multiplier   decimal.Decimal
	Amount       decimal.Decimal
}

// CommissionLedger 佣金入账接口
type CommissionLedger interface {
	Credit(credit CommissionCredit) (*models.Commission, bool, error)
}

// LedgerWriter 以 (订单, 收益人) 为幂等键写入佣金与钱包
type LedgerWriter struct {
	commissionRepo repository.CommissionRepository
	walletRepo     repository.WalletRepository
}

// NewLedgerWriter 创建账本写入器
func NewLedgerWriter(commissionRepo repository.CommissionRepository, walletRepo repository.WalletRepository) *LedgerWriter {
	return &LedgerWriter{
		commissionRepo: commissionRepo,
		walletRepo:     walletRepo,
	}
}

// BuildCommissionReference 佣金入账流水引用
func BuildCommissionReference(orderID, earnerUserID uint) string {
	return fmt.Sprintf("commission:%d:%d", orderID, earnerUserID)
}

// Credit 单个收益人的佣金记录与钱包加款在同一事务内完成；已入账时返回 created=false
func (w *LedgerWriter) Credit(credit CommissionCredit) (*models.Commission, bool, error) {
	if credit.OrderID == 0 || credit.EarnerUserID == 0 {
		return nil, false, ErrValidation
	}
	amount := models.RoundMinorUnit(credit.Amount)
	if amount.IsNegative() {
		amount = decimal.Zero
	}

	var result *models.Commission
	err := models.DB.Transaction(func(tx *gorm.DB) error {
		commissionRepo := w.commissionRepo.WithTx(tx)
		existing, err := commissionRepo.GetByOrderAndEarner(credit.OrderID, credit.EarnerUserID)
		if err != nil {
			return err
		}
		if existing != nil {
			return ErrLedgerWriteConflict
		}

		now := time.Now()
		commission := &models.Commission{
			OrderID:      credit.OrderID,
			EarnerUserID: credit.EarnerUserID,
			FromUserID:   credit.FromUserID,
			Level:        credit.Level,
			BaseAmount:   models.NewMoneyFromDecimal(credit.BaseAmount),
			Percentage:   models.NewMoneyFromDecimal(credit.Percentage),
			Multiplier:   normalizeMultiplier(credit.Multiplier),
			Amount:       models.NewMoneyFromDecimal(amount),
			Type:         constants.CommissionTypeReferral,
			Status:       constants.CommissionStatusApproved,
			CreatedAt:    now,
		}
		if err := commissionRepo.Create(commission); err != nil {
			if isUniqueViolation(err) {
				return ErrLedgerWriteConflict
			}
			return err
		}
		// 零金额佣金只留审计记录，不动钱包
		if amount.GreaterThan(decimal.Zero) {
			if err := w.applyWalletCredit(w.walletRepo.WithTx(tx), commission, now); err != nil {
				return err
			}
		}
		result = commission
		return nil
	})
	if err == nil {
		return result, true, nil
	}
	if errors.Is(err, ErrLedgerWriteConflict) {
		// 并发重试或重复结算，入账已存在
		existing, getErr := w.commissionRepo.GetByOrderAndEarner(credit.OrderID, credit.EarnerUserID)
		if getErr != nil {
			return nil, false, getErr
		}
		logger.Debugw("ledger_credit_exists",
			"order_id", credit.OrderID,
			"earner_user_id", credit.EarnerUserID,
		)
		return existing, false, nil
	}
	return nil, false, err
}

func (w *LedgerWriter) applyWalletCredit(repo repository.WalletRepository, commission *models.Commission, now time.Time) error {
	account, err := repo.EnsureAccountForUpdate(commission.EarnerUserID, now)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWalletUpdateFailed, err)
	}
	amount := commission.Amount.Decimal
	before := account.Balance.Decimal.Round(2)
	after := before.Add(amount).Round(2)
	account.Balance = models.NewMoneyFromDecimal(after)
	account.TotalEarnings = models.NewMoneyFromDecimal(account.TotalEarnings.Decimal.Add(amount))
	account.UpdatedAt = now
	if err := repo.UpdateAccount(account); err != nil {
		return fmt.Errorf("%w: %v", ErrWalletUpdateFailed, err)
	}

	orderID := commission.OrderID
	commissionID := commission.ID
	txn := &models.WalletTransaction{
		UserID:        commission.EarnerUserID,
		OrderID:       &orderID,
		CommissionID:  &commissionID,
		Type:          constants.WalletTxnTypeCommission,
		Direction:     constants.WalletTxnDirectionIn,
		Amount:        commission.Amount,
		BalanceBefore: models.NewMoneyFromDecimal(before),
		BalanceAfter:  models.NewMoneyFromDecimal(after),
		Reference:     BuildCommissionReference(commission.OrderID, commission.EarnerUserID),
		Remark:        fmt.Sprintf("level %d referral commission", commission.Level),
		CreatedAt:     now,
	}
	if err := repo.CreateTransaction(txn); err != nil {
		if isUniqueViolation(err) {
			return ErrLedgerWriteConflict
		}
		return fmt.Errorf("%w: %v", ErrWalletUpdateFailed, err)
	}
	return nil
}
