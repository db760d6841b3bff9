package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/dujiao-next/settlement/internal/models"
	"github.com/dujiao-next/settlement/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func seedRanks(t *testing.T, env *settlementTestEnv) map[string]models.Rank {
	t.Helper()
	if _, err := env.rankSvc.EnsureDefaultRanks(); err != nil {
		t.Fatalf("seed ranks failed: %v", err)
	}
	ranks, err := env.rankSvc.List()
	if err != nil {
		t.Fatalf("list ranks failed: %v", err)
	}
	result := make(map[string]models.Rank, len(ranks))
	for _, rank := range ranks {
		result[rank.Name] = rank
	}
	return result
}

func createReferrals(t *testing.T, env *settlementTestEnv, upline *models.User, count int) []*models.User {
	t.Helper()
	users := make([]*models.User, 0, count)
	for i := 0; i < count; i++ {
		users = append(users, createSettlementUser(t, env.db, fmt.Sprintf("%s-ref-%d", upline.DisplayName, i), upline))
	}
	return users
}

func TestEnsureDefaultRanksIsIdempotent(t *testing.T) {
	env := setupSettlementTest(t)
	created, err := env.rankSvc.EnsureDefaultRanks()
	if err != nil {
		t.Fatalf("seed ranks failed: %v", err)
	}
	if created != len(defaultRanks) {
		t.Fatalf("expected %d ranks created, got %d", len(defaultRanks), created)
	}
	created, err = env.rankSvc.EnsureDefaultRanks()
	if err != nil || created != 0 {
		t.Fatalf("expected second seed to be a no-op, got %d %v", created, err)
	}
	ranks, err := env.rankSvc.List()
	if err != nil {
		t.Fatalf("list ranks failed: %v", err)
	}
	for i := 1; i < len(ranks); i++ {
		if ranks[i].SortOrder <= ranks[i-1].SortOrder {
			t.Fatalf("expected ranks ordered ascending")
		}
		if ranks[i].CommissionMultiplier.LessThan(decimal.NewFromInt(1)) {
			t.Fatalf("expected multiplier >= 1 for %s", ranks[i].Name)
		}
	}
}

func TestRankEvaluatePromotesToHighestEligibleRank(t *testing.T) {
	env := setupSettlementTest(t)
	ranks := seedRanks(t, env)
	leader := createSettlementUser(t, env.db, "leader", nil)
	referrals := createReferrals(t, env, leader, 10)
	now := time.Now()
	createPaidOrderRow(t, env.db, leader.ID, "2000", now.Add(-time.Hour))
	createPaidOrderRow(t, env.db, referrals[0].ID, "3000", now.Add(-2*time.Hour))
	createPaidOrderRow(t, env.db, referrals[1].ID, "2000", now.AddDate(0, 0, -10))
	// 窗口外的订单不计入业绩
	createPaidOrderRow(t, env.db, referrals[2].ID, "9000", now.AddDate(0, 0, -45))

	result, err := env.rankSvc.Evaluate(leader.ID)
	if err != nil {
		t.Fatalf("evaluate failed: %v", err)
	}
	if !result.Promoted || result.Rank == nil || result.Rank.Name != "Gold" {
		t.Fatalf("expected promotion to Gold, got %+v", result)
	}
	if result.Metrics.Referrals != 10 ||
		!result.Metrics.SalesVolume.Decimal.Equal(decimal.NewFromInt(2000)) ||
		!result.Metrics.TeamVolume.Decimal.Equal(decimal.NewFromInt(5000)) {
		t.Fatalf("unexpected metrics: %+v", result.Metrics)
	}

	var reloaded models.User
	if err := env.db.First(&reloaded, leader.ID).Error; err != nil {
		t.Fatalf("reload user failed: %v", err)
	}
	gold := ranks["Gold"]
	if reloaded.CurrentRankID == nil || *reloaded.CurrentRankID != gold.ID {
		t.Fatalf("expected current rank Gold, got %v", reloaded.CurrentRankID)
	}
	if got := countRows(t, env.db, &models.RankAchievement{}, "user_id = ?", leader.ID); got != 1 {
		t.Fatalf("expected one achievement row, got %d", got)
	}
}

func TestRankNeverDemotes(t *testing.T) {
	env := setupSettlementTest(t)
	seedRanks(t, env)
	leader := createSettlementUser(t, env.db, "leader", nil)
	referrals := createReferrals(t, env, leader, 10)
	now := time.Now()
	createPaidOrderRow(t, env.db, leader.ID, "2000", now)
	createPaidOrderRow(t, env.db, referrals[0].ID, "5000", now)

	first, err := env.rankSvc.Evaluate(leader.ID)
	if err != nil || !first.Promoted || first.Rank.Name != "Gold" {
		t.Fatalf("expected Gold promotion, got %+v %v", first, err)
	}

	// 40 天后窗口清空，业绩跌回 Bronze 水平
	env.rankSvc.now = func() time.Time { return now.AddDate(0, 0, 40) }
	second, err := env.rankSvc.Evaluate(leader.ID)
	if err != nil {
		t.Fatalf("re-evaluate failed: %v", err)
	}
	if second.Promoted {
		t.Fatalf("expected no promotion after window emptied")
	}
	if !second.Metrics.SalesVolume.Decimal.IsZero() || !second.Metrics.TeamVolume.Decimal.IsZero() {
		t.Fatalf("expected empty rolling window, got %+v", second.Metrics)
	}
	if second.Rank == nil || second.Rank.Name != "Gold" {
		t.Fatalf("expected rank to stay Gold, got %+v", second.Rank)
	}
	var reloaded models.User
	if err := env.db.First(&reloaded, leader.ID).Error; err != nil {
		t.Fatalf("reload user failed: %v", err)
	}
	if reloaded.CurrentRankID == nil || *reloaded.CurrentRankID != first.Rank.ID {
		t.Fatalf("expected current rank unchanged, got %v", reloaded.CurrentRankID)
	}
	if got := countRows(t, env.db, &models.RankAchievement{}, "user_id = ?", leader.ID); got != 1 {
		t.Fatalf("expected achievements untouched, got %d", got)
	}
}

func TestRankProgressReportsNextRank(t *testing.T) {
	env := setupSettlementTest(t)
	ranks := seedRanks(t, env)
	user := createSettlementUser(t, env.db, "climber", nil)
	createReferrals(t, env, user, 2)
	createPaidOrderRow(t, env.db, user.ID, "120", time.Now())

	if _, err := env.rankSvc.Evaluate(user.ID); err != nil {
		t.Fatalf("evaluate failed: %v", err)
	}
	progress, err := env.rankSvc.GetProgress(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("get progress failed: %v", err)
	}
	if progress.CurrentRank == nil || progress.CurrentRank.ID != ranks["Bronze"].ID {
		t.Fatalf("expected Bronze current rank, got %+v", progress.CurrentRank)
	}
	if progress.NextRank == nil || progress.NextRank.ID != ranks["Silver"].ID {
		t.Fatalf("expected Silver next rank, got %+v", progress.NextRank)
	}
	if progress.Remaining == nil || progress.Remaining.Referrals != 1 ||
		!progress.Remaining.SalesVolume.Decimal.Equal(decimal.NewFromInt(380)) ||
		!progress.Remaining.TeamVolume.Decimal.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("unexpected remaining: %+v", progress.Remaining)
	}
	if progress.WindowDays != 30 {
		t.Fatalf("expected 30-day window, got %d", progress.WindowDays)
	}
}

func TestSettlementEvaluatesPurchaserAndDirectReferrer(t *testing.T) {
	env := setupSettlementTest(t)
	ranks := seedRanks(t, env)
	chain := buildReferralChain(t, env)
	product := createSettlementProduct(t, env.db, "sku-rank", "100", 5, true)

	env.placeAndConfirm(t, chain.d, product, 1)

	// C 有一个直推（D），满足 Bronze；B 不在评估范围内
	var carol, bob models.User
	if err := env.db.First(&carol, chain.c.ID).Error; err != nil {
		t.Fatalf("reload carol failed: %v", err)
	}
	if carol.CurrentRankID == nil || *carol.CurrentRankID != ranks["Bronze"].ID {
		t.Fatalf("expected carol promoted to Bronze, got %v", carol.CurrentRankID)
	}
	if err := env.db.First(&bob, chain.b.ID).Error; err != nil {
		t.Fatalf("reload bob failed: %v", err)
	}
	if bob.CurrentRankID != nil {
		t.Fatalf("expected bob not evaluated, got %v", bob.CurrentRankID)
	}
}

// staleReadUserRepo 首次读取后由另一次评估把用户写到 bumpTo，返回的仍是旧快照
type staleReadUserRepo struct {
	*repository.GormUserRepository
	db     *gorm.DB
	bumpTo uint
	bumped bool
}

func (r *staleReadUserRepo) GetByID(id uint) (*models.User, error) {
	user, err := r.GormUserRepository.GetByID(id)
	if err != nil || user == nil || r.bumped {
		return user, err
	}
	r.bumped = true
	if err := r.db.Model(&models.User{}).Where("id = ?", id).Update("current_rank_id", r.bumpTo).Error; err != nil {
		return nil, err
	}
	return user, nil
}

func TestRankEvaluateRetriesAfterLowerConcurrentPromotion(t *testing.T) {
	env := setupSettlementTest(t)
	ranks := seedRanks(t, env)
	leader := createSettlementUser(t, env.db, "leader", nil)
	referrals := createReferrals(t, env, leader, 10)
	now := time.Now()
	createPaidOrderRow(t, env.db, leader.ID, "2000", now)
	createPaidOrderRow(t, env.db, referrals[0].ID, "5000", now)

	silver, gold := ranks["Silver"], ranks["Gold"]
	userRepo := &staleReadUserRepo{
		GormUserRepository: repository.NewUserRepository(env.db),
		db:                 env.db,
		bumpTo:             silver.ID,
	}
	svc := NewRankService(repository.NewRankRepository(env.db), userRepo, repository.NewOrderRepository(env.db), env.cfg.Settlement)

	result, err := svc.Evaluate(leader.ID)
	if err != nil {
		t.Fatalf("evaluate failed: %v", err)
	}
	if !result.Promoted || result.Rank == nil || result.Rank.ID != gold.ID {
		t.Fatalf("expected Gold despite concurrent Silver write, got %+v", result)
	}
	if result.PreviousRankID == nil || *result.PreviousRankID != silver.ID {
		t.Fatalf("expected previous rank Silver, got %v", result.PreviousRankID)
	}
	var reloaded models.User
	if err := env.db.First(&reloaded, leader.ID).Error; err != nil {
		t.Fatalf("reload user failed: %v", err)
	}
	if reloaded.CurrentRankID == nil || *reloaded.CurrentRankID != gold.ID {
		t.Fatalf("expected current rank Gold, got %v", reloaded.CurrentRankID)
	}
	if got := countRows(t, env.db, &models.RankAchievement{}, "user_id = ? AND rank_id = ?", leader.ID, gold.ID); got != 1 {
		t.Fatalf("expected one Gold achievement, got %d", got)
	}
}

func TestRankEvaluateYieldsToHigherConcurrentPromotion(t *testing.T) {
	env := setupSettlementTest(t)
	ranks := seedRanks(t, env)
	leader := createSettlementUser(t, env.db, "leader", nil)
	createReferrals(t, env, leader, 3)
	createPaidOrderRow(t, env.db, leader.ID, "600", time.Now())

	platinum := ranks["Platinum"]
	userRepo := &staleReadUserRepo{
		GormUserRepository: repository.NewUserRepository(env.db),
		db:                 env.db,
		bumpTo:             platinum.ID,
	}
	svc := NewRankService(repository.NewRankRepository(env.db), userRepo, repository.NewOrderRepository(env.db), env.cfg.Settlement)

	result, err := svc.Evaluate(leader.ID)
	if err != nil {
		t.Fatalf("evaluate failed: %v", err)
	}
	if result.Promoted || result.Rank == nil || result.Rank.ID != platinum.ID {
		t.Fatalf("expected higher concurrent rank kept, got %+v", result)
	}
	var reloaded models.User
	if err := env.db.First(&reloaded, leader.ID).Error; err != nil {
		t.Fatalf("reload user failed: %v", err)
	}
	if reloaded.CurrentRankID == nil || *reloaded.CurrentRankID != platinum.ID {
		t.Fatalf("expected Platinum untouched, got %v", reloaded.CurrentRankID)
	}
}
