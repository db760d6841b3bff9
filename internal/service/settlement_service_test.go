package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dujiao-next/settlement/internal/constants"
	"github.com/dujiao-next/settlement/internal/models"
	"github.com/dujiao-next/settlement/internal/repository"

	"github.com/shopspring/decimal"
)

type referralChain struct {
	a, b, c, d *models.User
}

// buildReferralChain A←B←C←D，D 为下单用户
func buildReferralChain(t *testing.T, env *settlementTestEnv) referralChain {
	t.Helper()
	a := createSettlementUser(t, env.db, "alice", nil)
	b := createSettlementUser(t, env.db, "bob", a)
	c := createSettlementUser(t, env.db, "carol", b)
	d := createSettlementUser(t, env.db, "dave", c)
	return referralChain{a: a, b: b, c: c, d: d}
}

func assertCommission(t *testing.T, env *settlementTestEnv, orderID uint, earner *models.User, level int, amount string) {
	t.Helper()
	commission := commissionFor(t, env.db, orderID, earner.ID)
	if commission == nil {
		t.Fatalf("expected commission for %s", earner.DisplayName)
	}
	if commission.Level != level || !commission.Amount.Decimal.Equal(decimal.RequireFromString(amount)) {
		t.Fatalf("unexpected commission for %s: level=%d amount=%s", earner.DisplayName, commission.Level, commission.Amount.String())
	}
	if commission.Type != constants.CommissionTypeReferral || commission.Status != constants.CommissionStatusApproved {
		t.Fatalf("unexpected commission type/status: %s/%s", commission.Type, commission.Status)
	}
}

func TestSettlementDistributesAlongChain(t *testing.T) {
	env := setupSettlementTest(t)
	// 第 4 层配置存在，但 A 没有上级，不应产生第 4 层佣金
	if _, err := env.settingSvc.Upsert([]CommissionSettingInput{{Level: 4, Percentage: "2", IsActive: true}}); err != nil {
		t.Fatalf("upsert level 4 failed: %v", err)
	}
	chain := buildReferralChain(t, env)
	product := createSettlementProduct(t, env.db, "sku-chain", "1000", 5, true)

	order := env.placeAndConfirm(t, chain.d, product, 1)

	assertCommission(t, env, order.ID, chain.c, 1, "100")
	assertCommission(t, env, order.ID, chain.b, 2, "50")
	assertCommission(t, env, order.ID, chain.a, 3, "30")
	if got := countRows(t, env.db, &models.Commission{}, "order_id = ?", order.ID); got != 3 {
		t.Fatalf("expected 3 commissions, got %d", got)
	}
	if got := countRows(t, env.db, &models.Commission{}, "order_id = ? AND level = ?", order.ID, 4); got != 0 {
		t.Fatalf("expected no level-4 commission, got %d", got)
	}

	for user, want := range map[*models.User]string{chain.c: "100", chain.b: "50", chain.a: "30"} {
		if got := walletBalance(t, env, user.ID); !got.Equal(decimal.RequireFromString(want)) {
			t.Fatalf("unexpected balance for %s: %s", user.DisplayName, got.String())
		}
		account, err := env.walletSvc.GetWallet(user.ID)
		if err != nil {
			t.Fatalf("get wallet failed: %v", err)
		}
		if !account.TotalEarnings.Decimal.Equal(account.Balance.Decimal) {
			t.Fatalf("expected total earnings to match balance for %s", user.DisplayName)
		}
		ref := BuildCommissionReference(order.ID, user.ID)
		if got := countRows(t, env.db, &models.WalletTransaction{}, "reference = ?", ref); got != 1 {
			t.Fatalf("expected one wallet transaction %s, got %d", ref, got)
		}
	}

	tasks, err := env.settlementSvc.ListTasks(order.ID)
	if err != nil {
		t.Fatalf("list tasks failed: %v", err)
	}
	if len(tasks) != len(SettlementStages) {
		t.Fatalf("expected %d tasks, got %d", len(SettlementStages), len(tasks))
	}
	for _, task := range tasks {
		if task.Status != constants.SettlementTaskStatusDone {
			t.Fatalf("expected stage %s done, got %s (%s)", task.Stage, task.Status, task.LastError)
		}
	}

	if got := countRows(t, env.db, &models.Notification{}, "order_id = ? AND kind = ?", order.ID, constants.NotificationKindCommissionAlert); got != 3 {
		t.Fatalf("expected 3 commission alerts, got %d", got)
	}
	if got := countRows(t, env.db, &models.Notification{}, "order_id = ? AND kind = ? AND user_id = ?", order.ID, constants.NotificationKindOrderConfirmation, chain.d.ID); got != 1 {
		t.Fatalf("expected one order confirmation, got %d", got)
	}
}

func TestSettlementRerunIsIdempotent(t *testing.T) {
	env := setupSettlementTest(t)
	chain := buildReferralChain(t, env)
	product := createSettlementProduct(t, env.db, "sku-idem", "1000", 5, true)
	order := env.placeAndConfirm(t, chain.d, product, 1)

	result, err := env.settlementSvc.RunCommissionStage(order.ID)
	if err != nil {
		t.Fatalf("rerun commission stage failed: %v", err)
	}
	if len(result.Credited) != 0 || result.Existing != 3 {
		t.Fatalf("expected rerun to be a no-op, got credited=%d existing=%d", len(result.Credited), result.Existing)
	}

	if _, err := env.settlementSvc.Replay(order.ID); err != nil {
		t.Fatalf("replay failed: %v", err)
	}
	if _, err := env.settlementSvc.Replay(order.ID); err != nil {
		t.Fatalf("second replay failed: %v", err)
	}

	for _, user := range []*models.User{chain.a, chain.b, chain.c} {
		if got := countRows(t, env.db, &models.Commission{}, "order_id = ? AND earner_user_id = ?", order.ID, user.ID); got != 1 {
			t.Fatalf("expected one commission for %s, got %d", user.DisplayName, got)
		}
		if got := countRows(t, env.db, &models.WalletTransaction{}, "user_id = ?", user.ID); got != 1 {
			t.Fatalf("expected one wallet credit for %s, got %d", user.DisplayName, got)
		}
	}
	if got := walletBalance(t, env, chain.c.ID); !got.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("expected balance unchanged after replay, got %s", got.String())
	}
	if got := countRows(t, env.db, &models.Notification{}, "order_id = ?", order.ID); got != 4 {
		t.Fatalf("expected notifications deduplicated, got %d", got)
	}
}

func TestSettlementAppliesEarnerRankMultiplier(t *testing.T) {
	env := setupSettlementTest(t)
	chain := buildReferralChain(t, env)
	rank := &models.Rank{
		Name:                 "Elite",
		SortOrder:            9,
		MinReferrals:         1000,
		CommissionMultiplier: decimal.RequireFromString("1.5"),
	}
	if err := env.db.Create(rank).Error; err != nil {
		t.Fatalf("create rank failed: %v", err)
	}
	if err := env.db.Model(&models.User{}).Where("id = ?", chain.c.ID).Update("current_rank_id", rank.ID).Error; err != nil {
		t.Fatalf("assign rank failed: %v", err)
	}
	product := createSettlementProduct(t, env.db, "sku-multiplier", "1000", 5, true)

	order := env.placeAndConfirm(t, chain.d, product, 1)

	assertCommission(t, env, order.ID, chain.c, 1, "150")
	assertCommission(t, env, order.ID, chain.b, 2, "50")
	commission := commissionFor(t, env.db, order.ID, chain.c.ID)
	if !commission.Multiplier.Equal(decimal.RequireFromString("1.5")) {
		t.Fatalf("expected recorded multiplier 1.5, got %s", commission.Multiplier.String())
	}
}

func TestSettlementRanksAfterCommission(t *testing.T) {
	env := setupSettlementTest(t)
	chain := buildReferralChain(t, env)
	gold := &models.Rank{
		Name:                 "Gold",
		SortOrder:            1,
		MinReferrals:         1,
		MinTeamVolume:        models.NewMoneyFromDecimal(decimal.NewFromInt(1000)),
		CommissionMultiplier: decimal.RequireFromString("1.5"),
	}
	if err := env.db.Create(gold).Error; err != nil {
		t.Fatalf("create rank failed: %v", err)
	}
	order := createPaidOrderRow(t, env.db, chain.d.ID, "1000", time.Now())
	if err := env.settlementSvc.EnsureTasksTx(env.db, order.ID); err != nil {
		t.Fatalf("ensure tasks failed: %v", err)
	}

	// 等级评估先于佣金投递：必须等待，不能用本单业绩提前晋级
	err := env.settlementSvc.RunStage(context.Background(), order.ID, constants.SettlementStageRankEvaluate)
	if !errors.Is(err, ErrSettlementStageWaiting) {
		t.Fatalf("expected rank stage to wait for commission, got %v", err)
	}
	var carol models.User
	if err := env.db.First(&carol, chain.c.ID).Error; err != nil {
		t.Fatalf("reload carol failed: %v", err)
	}
	if carol.CurrentRankID != nil {
		t.Fatalf("expected no promotion before commission, got %v", carol.CurrentRankID)
	}
	task, err := env.taskRepo.Get(order.ID, constants.SettlementStageRankEvaluate)
	if err != nil || task == nil {
		t.Fatalf("get rank task failed: %v", err)
	}
	if task.Status != constants.SettlementTaskStatusPending || task.Attempts != 0 {
		t.Fatalf("expected waiting rank task untouched, got %+v", task)
	}

	if err := env.settlementSvc.RunStage(context.Background(), order.ID, constants.SettlementStageCommission); err != nil {
		t.Fatalf("commission stage failed: %v", err)
	}
	assertCommission(t, env, order.ID, chain.c, 1, "100")
	if commission := commissionFor(t, env.db, order.ID, chain.c.ID); !commission.Multiplier.Equal(decimal.NewFromInt(1)) {
		t.Fatalf("expected pre-promotion multiplier 1, got %s", commission.Multiplier.String())
	}

	// 佣金完成后接续执行等级评估与通知
	if err := env.db.First(&carol, chain.c.ID).Error; err != nil {
		t.Fatalf("reload carol failed: %v", err)
	}
	if carol.CurrentRankID == nil || *carol.CurrentRankID != gold.ID {
		t.Fatalf("expected carol promoted after commission, got %v", carol.CurrentRankID)
	}
	tasks, err := env.settlementSvc.ListTasks(order.ID)
	if err != nil {
		t.Fatalf("list tasks failed: %v", err)
	}
	for _, item := range tasks {
		if item.Status != constants.SettlementTaskStatusDone {
			t.Fatalf("expected stage %s done, got %s (%s)", item.Stage, item.Status, item.LastError)
		}
	}
}

func TestSettlementFollowUpStagesRunAfterCommissionExhausted(t *testing.T) {
	env := setupSettlementTest(t)
	env.settlementSvc.cfg.MaxAttempts = 1
	chain := buildReferralChain(t, env)
	env.settlementSvc.ledger = &flakyLedger{inner: env.ledger, failFor: chain.a.ID}
	product := createSettlementProduct(t, env.db, "sku-exhausted", "1000", 5, true)

	order := env.placeAndConfirm(t, chain.d, product, 1)

	task, err := env.taskRepo.Get(order.ID, constants.SettlementStageCommission)
	if err != nil || task == nil {
		t.Fatalf("get commission task failed: %v", err)
	}
	if task.Status != constants.SettlementTaskStatusFailed {
		t.Fatalf("expected failed commission task, got %s", task.Status)
	}
	notify, err := env.taskRepo.Get(order.ID, constants.SettlementStageNotify)
	if err != nil || notify == nil {
		t.Fatalf("get notify task failed: %v", err)
	}
	if notify.Status != constants.SettlementTaskStatusDone {
		t.Fatalf("expected notify done after commission exhausted, got %s", notify.Status)
	}
	if got := countRows(t, env.db, &models.Notification{}, "order_id = ? AND kind = ?", order.ID, constants.NotificationKindCommissionAlert); got != 2 {
		t.Fatalf("expected alerts for credited earners only, got %d", got)
	}
}

func TestSettlementAbortsOnReferralCycle(t *testing.T) {
	env := setupSettlementTest(t)
	a := createSettlementUser(t, env.db, "alice", nil)
	b := createSettlementUser(t, env.db, "bob", a)
	if err := env.db.Model(&models.User{}).Where("id = ?", a.ID).Update("referrer_id", b.ID).Error; err != nil {
		t.Fatalf("create cycle failed: %v", err)
	}
	product := createSettlementProduct(t, env.db, "sku-cycle", "1000", 5, true)

	order := env.placeAndConfirm(t, b, product, 1)
	if order.Status != constants.OrderStatusPaid {
		t.Fatalf("expected payment to stay confirmed, got %s", order.Status)
	}

	if got := countRows(t, env.db, &models.Commission{}, "order_id = ?", order.ID); got != 0 {
		t.Fatalf("expected zero commissions, got %d", got)
	}
	if got := walletBalance(t, env, a.ID); !got.IsZero() {
		t.Fatalf("expected no wallet credit, got %s", got.String())
	}
	task, err := env.taskRepo.Get(order.ID, constants.SettlementStageCommission)
	if err != nil || task == nil {
		t.Fatalf("get commission task failed: %v", err)
	}
	if task.Status != constants.SettlementTaskStatusAborted {
		t.Fatalf("expected aborted commission task, got %s", task.Status)
	}

	_, err = env.settlementSvc.RunCommissionStage(order.ID)
	if !errors.Is(err, ErrReferralCycleDetected) {
		t.Fatalf("expected cycle error, got %v", err)
	}
}

type flakyLedger struct {
	inner   CommissionLedger
	failFor uint
}

func (l *flakyLedger) Credit(credit CommissionCredit) (*models.Commission, bool, error) {
	if credit.EarnerUserID == l.failFor {
		return nil, false, errors.New("wallet storage unavailable")
	}
	return l.inner.Credit(credit)
}

func TestSettlementPartialFailureKeepsEarlierCredits(t *testing.T) {
	env := setupSettlementTest(t)
	chain := buildReferralChain(t, env)
	ledger := &flakyLedger{inner: env.ledger, failFor: chain.a.ID}
	env.settlementSvc.ledger = ledger
	product := createSettlementProduct(t, env.db, "sku-partial", "1000", 5, true)

	order := env.placeAndConfirm(t, chain.d, product, 1)

	assertCommission(t, env, order.ID, chain.c, 1, "100")
	assertCommission(t, env, order.ID, chain.b, 2, "50")
	if commissionFor(t, env.db, order.ID, chain.a.ID) != nil {
		t.Fatalf("expected no commission for failing earner")
	}
	task, err := env.taskRepo.Get(order.ID, constants.SettlementStageCommission)
	if err != nil || task == nil {
		t.Fatalf("get commission task failed: %v", err)
	}
	if task.Status != constants.SettlementTaskStatusFailed || task.Attempts != 1 || task.LastError == "" {
		t.Fatalf("unexpected failed task: %+v", task)
	}

	ledger.failFor = 0
	if err := env.settlementSvc.RunStage(context.Background(), order.ID, constants.SettlementStageCommission); err != nil {
		t.Fatalf("retry commission stage failed: %v", err)
	}
	assertCommission(t, env, order.ID, chain.a, 3, "30")
	if got := walletBalance(t, env, chain.c.ID); !got.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("expected level-1 credit applied once, got %s", got.String())
	}
	task, _ = env.taskRepo.Get(order.ID, constants.SettlementStageCommission)
	if task.Status != constants.SettlementTaskStatusDone || task.Attempts != 2 {
		t.Fatalf("expected done after retry, got %+v", task)
	}
}

// flakyNotificationRepo 指定类型的通知登记失败
type flakyNotificationRepo struct {
	inner    repository.NotificationRepository
	failKind string
}

func (r *flakyNotificationRepo) CreateIfAbsent(notification *models.Notification) (bool, error) {
	if notification.Kind == r.failKind {
		return false, errors.New("notification storage unavailable")
	}
	return r.inner.CreateIfAbsent(notification)
}

func (r *flakyNotificationRepo) ListByUser(userID uint, limit int) ([]models.Notification, error) {
	return r.inner.ListByUser(userID, limit)
}

func TestSettlementRetriesFailedCommissionAlerts(t *testing.T) {
	env := setupSettlementTest(t)
	chain := buildReferralChain(t, env)
	notifications := &flakyNotificationRepo{
		inner:    repository.NewNotificationRepository(env.db),
		failKind: constants.NotificationKindCommissionAlert,
	}
	env.settlementSvc.notifier = NewNotificationService(notifications, nil)
	product := createSettlementProduct(t, env.db, "sku-alert-retry", "1000", 5, true)

	order := env.placeAndConfirm(t, chain.d, product, 1)

	assertCommission(t, env, order.ID, chain.c, 1, "100")
	task, err := env.taskRepo.Get(order.ID, constants.SettlementStageNotify)
	if err != nil || task == nil {
		t.Fatalf("get notify task failed: %v", err)
	}
	if task.Status != constants.SettlementTaskStatusFailed || task.LastError == "" {
		t.Fatalf("expected notify task failed after alert error, got %+v", task)
	}
	if got := countRows(t, env.db, &models.Notification{}, "order_id = ? AND kind = ?", order.ID, constants.NotificationKindCommissionAlert); got != 0 {
		t.Fatalf("expected no alerts yet, got %d", got)
	}

	notifications.failKind = ""
	if err := env.settlementSvc.RunStage(context.Background(), order.ID, constants.SettlementStageNotify); err != nil {
		t.Fatalf("retry notify stage failed: %v", err)
	}
	for _, user := range []*models.User{chain.a, chain.b, chain.c} {
		if got := countRows(t, env.db, &models.Notification{}, "order_id = ? AND kind = ? AND user_id = ?", order.ID, constants.NotificationKindCommissionAlert, user.ID); got != 1 {
			t.Fatalf("expected one alert for %s, got %d", user.DisplayName, got)
		}
	}
	if got := countRows(t, env.db, &models.Notification{}, "order_id = ? AND kind = ?", order.ID, constants.NotificationKindOrderConfirmation); got != 1 {
		t.Fatalf("expected order confirmation recorded once, got %d", got)
	}
}

func TestSettlementZeroAmountCommissionIsAuditedWithoutCredit(t *testing.T) {
	env := setupSettlementTest(t)
	if _, err := env.settingSvc.Upsert([]CommissionSettingInput{{Level: 2, Percentage: "0", IsActive: true}}); err != nil {
		t.Fatalf("upsert level 2 failed: %v", err)
	}
	chain := buildReferralChain(t, env)
	product := createSettlementProduct(t, env.db, "sku-zero", "1000", 5, true)

	order := env.placeAndConfirm(t, chain.d, product, 1)

	assertCommission(t, env, order.ID, chain.b, 2, "0")
	if got := countRows(t, env.db, &models.WalletAccount{}, "user_id = ?", chain.b.ID); got != 0 {
		t.Fatalf("expected no wallet for zero commission, got %d", got)
	}
	if got := countRows(t, env.db, &models.Notification{}, "user_id = ? AND kind = ?", chain.b.ID, constants.NotificationKindCommissionAlert); got != 0 {
		t.Fatalf("expected no alert for zero commission, got %d", got)
	}
	assertCommission(t, env, order.ID, chain.a, 3, "30")
}

func TestSettlementSkipsInactiveLevelWithoutStopping(t *testing.T) {
	env := setupSettlementTest(t)
	if _, err := env.settingSvc.Upsert([]CommissionSettingInput{{Level: 2, Percentage: "5", IsActive: false}}); err != nil {
		t.Fatalf("disable level 2 failed: %v", err)
	}
	chain := buildReferralChain(t, env)
	product := createSettlementProduct(t, env.db, "sku-inactive-level", "1000", 5, true)

	order := env.placeAndConfirm(t, chain.d, product, 1)

	assertCommission(t, env, order.ID, chain.c, 1, "100")
	if commissionFor(t, env.db, order.ID, chain.b.ID) != nil {
		t.Fatalf("expected no commission for inactive level")
	}
	assertCommission(t, env, order.ID, chain.a, 3, "30")
}

func TestSettlementWithoutReferrerCompletesStages(t *testing.T) {
	env := setupSettlementTest(t)
	buyer := createSettlementUser(t, env.db, "solo", nil)
	product := createSettlementProduct(t, env.db, "sku-solo", "1000", 5, true)

	order := env.placeAndConfirm(t, buyer, product, 1)

	if got := countRows(t, env.db, &models.Commission{}, "order_id = ?", order.ID); got != 0 {
		t.Fatalf("expected no commissions, got %d", got)
	}
	tasks, err := env.settlementSvc.ListTasks(order.ID)
	if err != nil {
		t.Fatalf("list tasks failed: %v", err)
	}
	for _, task := range tasks {
		if task.Status != constants.SettlementTaskStatusDone {
			t.Fatalf("expected stage %s done, got %s", task.Stage, task.Status)
		}
	}
}

func TestSweepStaleRedispatchesFailedTasks(t *testing.T) {
	env := setupSettlementTest(t)
	chain := buildReferralChain(t, env)
	order := createPaidOrderRow(t, env.db, chain.d.ID, "200", time.Now())
	task, err := env.taskRepo.Ensure(order.ID, constants.SettlementStageCommission)
	if err != nil {
		t.Fatalf("ensure task failed: %v", err)
	}
	stale := time.Now().Add(-time.Hour)
	if err := env.db.Model(&models.SettlementTask{}).Where("id = ?", task.ID).
		Updates(map[string]interface{}{"status": constants.SettlementTaskStatusFailed, "updated_at": stale}).Error; err != nil {
		t.Fatalf("mark stale failed: %v", err)
	}

	count, err := env.settlementSvc.SweepStale(context.Background())
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one redispatched task, got %d", count)
	}
	assertCommission(t, env, order.ID, chain.c, 1, "20")

	count, err = env.settlementSvc.SweepStale(context.Background())
	if err != nil {
		t.Fatalf("second sweep failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected nothing left to sweep, got %d", count)
	}
}

func TestSettlementRejectsUnpaidOrder(t *testing.T) {
	env := setupSettlementTest(t)
	buyer := createSettlementUser(t, env.db, "buyer", nil)
	product := createSettlementProduct(t, env.db, "sku-unpaid", "10", 5, true)
	order, err := env.orderSvc.PlaceOrder(PlaceOrderInput{
		UserID: buyer.ID,
		Items:  []CreateOrderItem{{ProductID: product.ID, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("place order failed: %v", err)
	}
	if _, err := env.settlementSvc.Replay(order.ID); !errors.Is(err, ErrInvalidOrderState) {
		t.Fatalf("expected invalid order state, got %v", err)
	}
	if err := env.settlementSvc.RunStage(context.Background(), order.ID, "bogus"); !errors.Is(err, ErrSettlementStageUnknown) {
		t.Fatalf("expected unknown stage error, got %v", err)
	}
}

func TestWalletQueries(t *testing.T) {
	env := setupSettlementTest(t)
	chain := buildReferralChain(t, env)
	product := createSettlementProduct(t, env.db, "sku-wallet", "1000", 5, true)
	env.placeAndConfirm(t, chain.d, product, 1)

	empty, err := env.walletSvc.GetWallet(chain.d.ID)
	if err != nil {
		t.Fatalf("get wallet failed: %v", err)
	}
	if !empty.Balance.Decimal.IsZero() || empty.ID != 0 {
		t.Fatalf("expected zero baseline wallet, got %+v", empty)
	}

	commissions, total, err := env.walletSvc.ListCommissions(repository.CommissionListFilter{EarnerUserID: chain.c.ID, Page: 1, PageSize: 20})
	if err != nil {
		t.Fatalf("list commissions failed: %v", err)
	}
	if total != 1 || len(commissions) != 1 || commissions[0].FromUserID != chain.d.ID {
		t.Fatalf("unexpected commissions: %+v", commissions)
	}
	txns, total, err := env.walletSvc.ListTransactions(repository.WalletTransactionListFilter{UserID: chain.c.ID, Page: 1, PageSize: 20})
	if err != nil {
		t.Fatalf("list transactions failed: %v", err)
	}
	if total != 1 || txns[0].Type != constants.WalletTxnTypeCommission || !txns[0].BalanceAfter.Decimal.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("unexpected transactions: %+v", txns)
	}
}
