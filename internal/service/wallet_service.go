package service

import (
	"github.com/dujiao-next/settlement/internal/models"
	"github.com/dujiao-next/settlement/internal/repository"
)

// WalletService 钱包与佣金查询服务（入账只走 LedgerWriter）
type WalletService struct {
	walletRepo     repository.WalletRepository
	commissionRepo repository.CommissionRepository
}

// NewWalletService 创建钱包查询服务
func NewWalletService(walletRepo repository.WalletRepository, commissionRepo repository.CommissionRepository) *WalletService {
	return &WalletService{
		walletRepo:     walletRepo,
		commissionRepo: commissionRepo,
	}
}

// GetWallet 获取用户钱包，未入账过的用户返回零余额
func (s *WalletService) GetWallet(userID uint) (*models.WalletAccount, error) {
	if userID == 0 {
		return nil, ErrUserNotFound
	}
	account, err := s.walletRepo.GetAccountByUserID(userID)
	if err != nil {
		return nil, err
	}
	if account != nil {
		return account, nil
	}
	return &models.WalletAccount{
		UserID:         userID,
		Balance:        models.ZeroMoney(),
		TotalEarnings:  models.ZeroMoney(),
		TotalWithdrawn: models.ZeroMoney(),
	}, nil
}

// ListCommissions 查询用户收到的佣金
func (s *WalletService) ListCommissions(filter repository.CommissionListFilter) ([]models.Commission, int64, error) {
	if filter.EarnerUserID == 0 {
		return nil, 0, ErrUserNotFound
	}
	return s.commissionRepo.List(filter)
}

// ListTransactions 查询钱包流水
func (s *WalletService) ListTransactions(filter repository.WalletTransactionListFilter) ([]models.WalletTransaction, int64, error) {
	if filter.UserID == 0 {
		return nil, 0, ErrUserNotFound
	}
	return s.walletRepo.ListTransactions(filter)
}

// ListOrderCommissions 查询订单产生的全部佣金（管理端）
func (s *WalletService) ListOrderCommissions(orderID uint) ([]models.Commission, error) {
	return s.commissionRepo.ListByOrder(orderID)
}
