package service

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/dujiao-next/settlement/internal/config"
	"github.com/dujiao-next/settlement/internal/constants"
	"github.com/dujiao-next/settlement/internal/models"
	"github.com/dujiao-next/settlement/internal/queue"
	"github.com/dujiao-next/settlement/internal/repository"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const testSigningSecret = "settlement-test-secret"

type settlementTestEnv struct {
	db              *gorm.DB
	cfg             *config.Config
	orderSvc        *OrderService
	paymentSvc      *PaymentService
	settlementSvc   *SettlementService
	settingSvc      *CommissionSettingService
	rankSvc         *RankService
	walletSvc       *WalletService
	notificationSvc *NotificationService
	ledger          *LedgerWriter
	taskRepo        repository.SettlementTaskRepository
}

func setupSettlementTest(t *testing.T) *settlementTestEnv {
	t.Helper()
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"), time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db failed: %v", err)
	}
	// 内存库共享缓存下串行化写入
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(models.AllModels()...); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	models.DB = db

	cfg := &config.Config{
		Payment: config.PaymentConfig{SigningSecret: testSigningSecret, VerifyTimeoutSeconds: 2},
		Settlement: config.SettlementConfig{
			RollingWindowDays:  30,
			OutboxStaleSeconds: 60,
			OutboxBatchSize:    100,
			MaxAttempts:        10,
		},
		Order: config.OrderConfig{CancelReleasesStock: true},
	}
	queueClient, err := queue.NewClient(&config.QueueConfig{Enabled: false})
	if err != nil {
		t.Fatalf("new queue client failed: %v", err)
	}

	userRepo := repository.NewUserRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	productRepo := repository.NewProductRepository(db)
	settingRepo := repository.NewCommissionSettingRepository(db)
	commissionRepo := repository.NewCommissionRepository(db)
	walletRepo := repository.NewWalletRepository(db)
	rankRepo := repository.NewRankRepository(db)
	taskRepo := repository.NewSettlementTaskRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	settingSvc := NewCommissionSettingService(settingRepo)
	if _, err := settingSvc.EnsureDefaults(); err != nil {
		t.Fatalf("seed commission settings failed: %v", err)
	}
	rankSvc := NewRankService(rankRepo, userRepo, orderRepo, cfg.Settlement)
	notificationSvc := NewNotificationService(notificationRepo, queueClient)
	ledger := NewLedgerWriter(commissionRepo, walletRepo)
	settlementSvc := NewSettlementService(
		orderRepo,
		userRepo,
		taskRepo,
		commissionRepo,
		settingSvc,
		NewReferralWalker(userRepo),
		ledger,
		rankSvc,
		notificationSvc,
		queueClient,
		cfg.Settlement,
	)
	settlementSvc.SetSyncDispatch(true)

	return &settlementTestEnv{
		db:              db,
		cfg:             cfg,
		orderSvc:        NewOrderService(orderRepo, productRepo, userRepo, cfg.Order),
		paymentSvc:      NewPaymentService(orderRepo, NewHMACSignatureVerifier(testSigningSecret), settlementSvc, cfg.Payment),
		settlementSvc:   settlementSvc,
		settingSvc:      settingSvc,
		rankSvc:         rankSvc,
		walletSvc:       NewWalletService(walletRepo, commissionRepo),
		notificationSvc: notificationSvc,
		ledger:          ledger,
		taskRepo:        taskRepo,
	}
}

func createSettlementUser(t *testing.T, db *gorm.DB, name string, referrer *models.User) *models.User {
	t.Helper()
	user := &models.User{
		Email:        fmt.Sprintf("%s@example.com", strings.ToLower(name)),
		PasswordHash: "hash",
		DisplayName:  name,
		Role:         constants.UserRoleCustomer,
		Status:       constants.UserStatusActive,
	}
	if referrer != nil {
		referrerID := referrer.ID
		user.ReferrerID = &referrerID
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("create user %s failed: %v", name, err)
	}
	return user
}

func createSettlementProduct(t *testing.T, db *gorm.DB, sku string, price string, stock int, active bool) *models.Product {
	t.Helper()
	product := &models.Product{
		SKU:      sku,
		Name:     sku,
		Price:    models.NewMoneyFromDecimal(decimal.RequireFromString(price)),
		Discount: models.ZeroMoney(),
		Stock:    stock,
		IsActive: active,
	}
	if err := db.Create(product).Error; err != nil {
		t.Fatalf("create product failed: %v", err)
	}
	return product
}

// createPaidOrderRow 直接写入已支付订单，用于构造业绩
func createPaidOrderRow(t *testing.T, db *gorm.DB, userID uint, total string, paidAt time.Time) *models.Order {
	t.Helper()
	order := &models.Order{
		OrderNo:          fmt.Sprintf("T%d", time.Now().UnixNano()),
		UserID:           userID,
		Status:           constants.OrderStatusPaid,
		TotalAmount:      models.NewMoneyFromDecimal(decimal.RequireFromString(total)),
		ExternalOrderRef: fmt.Sprintf("ref-%d", time.Now().UnixNano()),
		PaidAt:           &paidAt,
	}
	if err := db.Create(order).Error; err != nil {
		t.Fatalf("create paid order failed: %v", err)
	}
	return order
}

// placeAndConfirm 走完整的下单与支付确认流程
func (env *settlementTestEnv) placeAndConfirm(t *testing.T, purchaser *models.User, product *models.Product, quantity int) *models.Order {
	t.Helper()
	order, err := env.orderSvc.PlaceOrder(PlaceOrderInput{
		UserID: purchaser.ID,
		Items:  []CreateOrderItem{{ProductID: product.ID, Quantity: quantity}},
	})
	if err != nil {
		t.Fatalf("place order failed: %v", err)
	}
	paymentRef := "pay-" + order.OrderNo
	confirmed, err := env.paymentSvc.ConfirmPayment(t.Context(), ConfirmPaymentInput{
		UserID:     purchaser.ID,
		OrderRef:   order.ExternalOrderRef,
		PaymentRef: paymentRef,
		Signature:  SignPaymentAssertion(testSigningSecret, order.ExternalOrderRef, paymentRef),
	})
	if err != nil {
		t.Fatalf("confirm payment failed: %v", err)
	}
	return confirmed
}

func commissionFor(t *testing.T, db *gorm.DB, orderID, earnerID uint) *models.Commission {
	t.Helper()
	var rows []models.Commission
	if err := db.Where("order_id = ? AND earner_user_id = ?", orderID, earnerID).Find(&rows).Error; err != nil {
		t.Fatalf("query commission failed: %v", err)
	}
	if len(rows) > 1 {
		t.Fatalf("expected at most one commission for order %d earner %d, got %d", orderID, earnerID, len(rows))
	}
	if len(rows) == 0 {
		return nil
	}
	return &rows[0]
}

func walletBalance(t *testing.T, env *settlementTestEnv, userID uint) decimal.Decimal {
	t.Helper()
	account, err := env.walletSvc.GetWallet(userID)
	if err != nil {
		t.Fatalf("get wallet failed: %v", err)
	}
	return account.Balance.Decimal
}

func countRows(t *testing.T, db *gorm.DB, model interface{}, query string, args ...interface{}) int64 {
	t.Helper()
	var count int64
	if err := db.Model(model).Where(query, args...).Count(&count).Error; err != nil {
		t.Fatalf("count rows failed: %v", err)
	}
	return count
}
