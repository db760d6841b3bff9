package repository

import (
	"testing"
	"time"

	"github.com/dujiao-next/settlement/internal/constants"
	"github.com/dujiao-next/settlement/internal/models"

	"github.com/shopspring/decimal"
)

func newWalletTxn(userID uint, txnType, reference string, amount int64) *models.WalletTransaction {
	return &models.WalletTransaction{
		UserID:        userID,
		Type:          txnType,
		Direction:     constants.WalletTxnDirectionIn,
		Amount:        models.NewMoneyFromDecimal(decimal.NewFromInt(amount)),
		BalanceBefore: models.ZeroMoney(),
		BalanceAfter:  models.NewMoneyFromDecimal(decimal.NewFromInt(amount)),
		Reference:     reference,
	}
}

func TestWalletTransactionReferenceIsUnique(t *testing.T) {
	db := setupRepositoryTest(t)
	repo := NewWalletRepository(db)

	if err := repo.CreateTransaction(newWalletTxn(1, constants.WalletTxnTypeCommission, "commission:10:1", 5)); err != nil {
		t.Fatalf("create txn failed: %v", err)
	}
	if err := repo.CreateTransaction(newWalletTxn(1, constants.WalletTxnTypeCommission, "commission:10:1", 5)); err == nil {
		t.Fatalf("expected duplicate reference rejected")
	}

	var count int64
	if err := db.Model(&models.WalletTransaction{}).Where("reference = ?", "commission:10:1").Count(&count).Error; err != nil {
		t.Fatalf("count by reference failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected exactly one txn for reference, got %d", count)
	}
}

func TestWalletListTransactionsFiltersAndPages(t *testing.T) {
	db := setupRepositoryTest(t)
	repo := NewWalletRepository(db)

	rows := []*models.WalletTransaction{
		newWalletTxn(1, constants.WalletTxnTypeCommission, "c:1", 1),
		newWalletTxn(1, constants.WalletTxnTypeCommission, "c:2", 2),
		newWalletTxn(1, constants.WalletTxnTypePayout, "p:1", 3),
		newWalletTxn(2, constants.WalletTxnTypeCommission, "c:3", 4),
	}
	for _, row := range rows {
		if err := repo.CreateTransaction(row); err != nil {
			t.Fatalf("create txn failed: %v", err)
		}
	}

	items, total, err := repo.ListTransactions(WalletTransactionListFilter{UserID: 1, Type: constants.WalletTxnTypeCommission, Page: 1, PageSize: 1})
	if err != nil {
		t.Fatalf("list txns failed: %v", err)
	}
	if total != 2 || len(items) != 1 {
		t.Fatalf("expected total=2 len=1, got total=%d len=%d", total, len(items))
	}
	if items[0].Reference != "c:2" {
		t.Fatalf("expected newest first, got %s", items[0].Reference)
	}

}

func TestWalletEnsureAccountForUpdateIsIdempotent(t *testing.T) {
	db := setupRepositoryTest(t)
	repo := NewWalletRepository(db)
	now := time.Now()

	first, err := repo.EnsureAccountForUpdate(7, now)
	if err != nil || first == nil {
		t.Fatalf("ensure account failed: %v", err)
	}
	first.Balance = models.NewMoneyFromDecimal(decimal.NewFromInt(12))
	if err := repo.UpdateAccount(first); err != nil {
		t.Fatalf("update account failed: %v", err)
	}

	second, err := repo.EnsureAccountForUpdate(7, now)
	if err != nil {
		t.Fatalf("second ensure failed: %v", err)
	}
	if second.ID != first.ID || second.Balance.String() != "12.00" {
		t.Fatalf("ensure must not reset existing account, got id=%d balance=%s", second.ID, second.Balance.String())
	}
	var count int64
	db.Model(&models.WalletAccount{}).Count(&count)
	if count != 1 {
		t.Fatalf("expected single account, got %d", count)
	}
}
