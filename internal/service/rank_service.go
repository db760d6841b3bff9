package service

import (
	"context"
	"errors"
	"time"

	"github.com/dujiao-next/settlement/internal/cache"
	"github.com/dujiao-next/settlement/internal/config"
	"github.com/dujiao-next/settlement/internal/constants"
	"github.com/dujiao-next/settlement/internal/logger"
	"github.com/dujiao-next/settlement/internal/models"
	"github.com/dujiao-next/settlement/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	defaultRollingWindowDays = 30

	// 晋级写入冲突后的最多重试次数
	maxPromotionAttempts = 3
)

var errRankPromotionRaced = errors.New("rank promotion raced")

// RankService 等级目录与晋级评估
type RankService struct {
	rankRepo   repository.RankRepository
	userRepo   repository.UserRepository
	orderRepo  repository.OrderRepository
	windowDays int
	cacheTTL   time.Duration
	now        func() time.Time
}

// RankMetrics 滚动窗口业绩指标
type RankMetrics struct {
	Referrals   int64        `json:"referrals"`
	SalesVolume models.Money `json:"sales_volume"`
	TeamVolume  models.Money `json:"team_volume"`
}

// RankRemaining 距下一等级的差额
type RankRemaining struct {
	Referrals   int64        `json:"referrals"`
	SalesVolume models.Money `json:"sales_volume"`
	TeamVolume  models.Money `json:"team_volume"`
}

// RankProgress 用户等级进度
type RankProgress struct {
	UserID      uint           `json:"user_id"`
	CurrentRank *models.Rank   `json:"current_rank"`
	NextRank    *models.Rank   `json:"next_rank"`
	Metrics     RankMetrics    `json:"metrics"`
	Remaining   *RankRemaining `json:"remaining,omitempty"`
	// Achievements 晋级历史，按达成时间升序
	Achievements []models.RankAchievement `json:"achievements"`
	WindowDays   int                      `json:"window_days"`
	EvaluatedAt  time.Time                `json:"evaluated_at"`
}

// RankEvaluation 单次评估结果
type RankEvaluation struct {
	UserID         uint         `json:"user_id"`
	Promoted       bool         `json:"promoted"`
	PreviousRankID *uint        `json:"previous_rank_id,omitempty"`
	Rank           *models.Rank `json:"rank"`
	Metrics        RankMetrics  `json:"metrics"`
}

// NewRankService 创建等级服务
func NewRankService(
	rankRepo repository.RankRepository,
	userRepo repository.UserRepository,
	orderRepo repository.OrderRepository,
	cfg config.SettlementConfig,
) *RankService {
	windowDays := cfg.RollingWindowDays
	if windowDays <= 0 {
		windowDays = defaultRollingWindowDays
	}
	return &RankService{
		rankRepo:   rankRepo,
		userRepo:   userRepo,
		orderRepo:  orderRepo,
		windowDays: windowDays,
		cacheTTL:   time.Duration(cfg.RankProgressCacheSeconds) * time.Second,
		now:        time.Now,
	}
}

type defaultRank struct {
	name       string
	order      int
	referrals  int
	sales      string
	team       string
	multiplier string
	benefits   []string
}

var defaultRanks = []defaultRank{
	{name: "Bronze", order: 1, referrals: 1, sales: "0", team: "0", multiplier: "1.00", benefits: []string{"referral_commission"}},
	{name: "Silver", order: 2, referrals: 3, sales: "500", team: "1000", multiplier: "1.10", benefits: []string{"referral_commission", "priority_support"}},
	{name: "Gold", order: 3, referrals: 10, sales: "2000", team: "5000", multiplier: "1.25", benefits: []string{"referral_commission", "priority_support", "early_access"}},
	{name: "Platinum", order: 4, referrals: 25, sales: "5000", team: "20000", multiplier: "1.50", benefits: []string{"referral_commission", "priority_support", "early_access", "account_manager"}},
}

// EnsureDefaultRanks 初始化默认等级目录（按名称补齐）
func (s *RankService) EnsureDefaultRanks() (int, error) {
	created := 0
	for _, item := range defaultRanks {
		existing, err := s.rankRepo.GetByName(item.name)
		if err != nil {
			return created, err
		}
		if existing != nil {
			continue
		}
		rank := &models.Rank{
			Name:                 item.name,
			SortOrder:            item.order,
			MinReferrals:         item.referrals,
			MinSalesVolume:       models.NewMoneyFromDecimal(decimal.RequireFromString(item.sales)),
			MinTeamVolume:        models.NewMoneyFromDecimal(decimal.RequireFromString(item.team)),
			CommissionMultiplier: decimal.RequireFromString(item.multiplier),
			Benefits:             models.StringArray(item.benefits),
		}
		if err := s.rankRepo.Create(rank); err != nil {
			return created, err
		}
		created++
	}
	if created > 0 {
		logger.Infow("ranks_seeded", "created", created)
	}
	return created, nil
}

// List 获取等级目录（升序）
func (s *RankService) List() ([]models.Rank, error) {
	return s.rankRepo.ListOrdered()
}

// ComputeMetrics 计算直推人数与滚动窗口内的个人、团队业绩
func (s *RankService) ComputeMetrics(userID uint) (RankMetrics, error) {
	referrals, err := s.userRepo.CountDirectReferrals(userID)
	if err != nil {
		return RankMetrics{}, err
	}
	since := s.now().AddDate(0, 0, -s.windowDays)
	sales, err := s.orderRepo.SumSettledVolume([]uint{userID}, constants.SettledOrderStatuses, since)
	if err != nil {
		return RankMetrics{}, err
	}
	referralIDs, err := s.userRepo.ListDirectReferralIDs(userID)
	if err != nil {
		return RankMetrics{}, err
	}
	team, err := s.orderRepo.SumSettledVolume(referralIDs, constants.SettledOrderStatuses, since)
	if err != nil {
		return RankMetrics{}, err
	}
	return RankMetrics{
		Referrals:   referrals,
		SalesVolume: models.NewMoneyFromDecimal(sales),
		TeamVolume:  models.NewMoneyFromDecimal(team),
	}, nil
}

// Evaluate 重新计算指标并在满足更高等级时晋级，从不降级
func (s *RankService) Evaluate(userID uint) (*RankEvaluation, error) {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	ranks, err := s.rankRepo.ListOrdered()
	if err != nil {
		return nil, err
	}
	metrics, err := s.ComputeMetrics(userID)
	if err != nil {
		return nil, err
	}

	current := findRank(ranks, user.CurrentRankID)
	result := &RankEvaluation{
		UserID:         userID,
		PreviousRankID: user.CurrentRankID,
		Rank:           current,
		Metrics:        metrics,
	}
	target := highestEligibleRank(ranks, metrics)
	if target == nil || (current != nil && target.SortOrder <= current.SortOrder) {
		return result, nil
	}

	// 条件写入失败说明等级已被并发修改：重新读取，目标仍更高时以新的当前等级重试
	for attempt := 1; ; attempt++ {
		err = s.promote(userID, target, user.CurrentRankID, metrics)
		if err == nil {
			break
		}
		if !errors.Is(err, errRankPromotionRaced) {
			return nil, err
		}
		user, err = s.userRepo.GetByID(userID)
		if err != nil {
			return nil, err
		}
		if user == nil {
			return nil, ErrUserNotFound
		}
		current = findRank(ranks, user.CurrentRankID)
		result.PreviousRankID = user.CurrentRankID
		result.Rank = current
		if current != nil && target.SortOrder <= current.SortOrder {
			logger.Infow("rank_promotion_skipped_concurrent", "user_id", userID, "rank_id", target.ID, "current_rank_id", current.ID)
			return result, nil
		}
		if attempt >= maxPromotionAttempts {
			logger.Warnw("rank_promotion_retry_exhausted", "user_id", userID, "rank_id", target.ID, "attempts", attempt)
			return nil, errRankPromotionRaced
		}
	}

	_ = cache.DelRankProgress(context.Background(), userID)
	logger.Infow("rank_promoted",
		"user_id", userID,
		"rank_id", target.ID,
		"rank", target.Name,
		"referrals", metrics.Referrals,
		"sales_volume", metrics.SalesVolume.String(),
		"team_volume", metrics.TeamVolume.String(),
	)
	result.Promoted = true
	result.Rank = target
	return result, nil
}

// promote 在事务内按 fromRankID 条件晋级并登记达成记录
func (s *RankService) promote(userID uint, target *models.Rank, fromRankID *uint, metrics RankMetrics) error {
	return models.DB.Transaction(func(tx *gorm.DB) error {
		affected, err := s.userRepo.WithTx(tx).PromoteRank(userID, target.ID, fromRankID)
		if err != nil {
			return err
		}
		if affected == 0 {
			return errRankPromotionRaced
		}
		_, err = s.rankRepo.WithTx(tx).CreateAchievementIfAbsent(&models.RankAchievement{
			UserID:      userID,
			RankID:      target.ID,
			Referrals:   int(metrics.Referrals),
			SalesVolume: metrics.SalesVolume,
			TeamVolume:  metrics.TeamVolume,
			AchievedAt:  s.now(),
		})
		return err
	})
}

// GetProgress 获取当前等级、下一等级与滚动指标（短期缓存）
func (s *RankService) GetProgress(ctx context.Context, userID uint) (*RankProgress, error) {
	if s.cacheTTL > 0 {
		var cached RankProgress
		hit, err := cache.GetRankProgress(ctx, userID, &cached)
		if err != nil {
			logger.Debugw("rank_progress_cache_get_failed", "user_id", userID, "error", err)
		} else if hit {
			return &cached, nil
		}
	}

	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	ranks, err := s.rankRepo.ListOrdered()
	if err != nil {
		return nil, err
	}
	metrics, err := s.ComputeMetrics(userID)
	if err != nil {
		return nil, err
	}

	current := findRank(ranks, user.CurrentRankID)
	progress := &RankProgress{
		UserID:      userID,
		CurrentRank: current,
		Metrics:     metrics,
		WindowDays:  s.windowDays,
		EvaluatedAt: s.now(),
	}
	achievements, err := s.rankRepo.ListAchievementsByUser(userID)
	if err != nil {
		return nil, err
	}
	progress.Achievements = achievements
	progress.NextRank = nextRank(ranks, current)
	if progress.NextRank != nil {
		progress.Remaining = remainingFor(progress.NextRank, metrics)
	}

	if s.cacheTTL > 0 {
		if err := cache.SetRankProgress(ctx, userID, progress, s.cacheTTL); err != nil {
			logger.Debugw("rank_progress_cache_set_failed", "user_id", userID, "error", err)
		}
	}
	return progress, nil
}

func findRank(ranks []models.Rank, rankID *uint) *models.Rank {
	if rankID == nil {
		return nil
	}
	for i := range ranks {
		if ranks[i].ID == *rankID {
			return &ranks[i]
		}
	}
	return nil
}

func rankEligible(rank models.Rank, metrics RankMetrics) bool {
	return metrics.Referrals >= int64(rank.MinReferrals) &&
		metrics.SalesVolume.Decimal.GreaterThanOrEqual(rank.MinSalesVolume.Decimal) &&
		metrics.TeamVolume.Decimal.GreaterThanOrEqual(rank.MinTeamVolume.Decimal)
}

func highestEligibleRank(ranks []models.Rank, metrics RankMetrics) *models.Rank {
	var best *models.Rank
	for i := range ranks {
		if !rankEligible(ranks[i], metrics) {
			continue
		}
		if best == nil || ranks[i].SortOrder > best.SortOrder {
			best = &ranks[i]
		}
	}
	return best
}

func nextRank(ranks []models.Rank, current *models.Rank) *models.Rank {
	var next *models.Rank
	for i := range ranks {
		if current != nil && ranks[i].SortOrder <= current.SortOrder {
			continue
		}
		if next == nil || ranks[i].SortOrder < next.SortOrder {
			next = &ranks[i]
		}
	}
	return next
}

func remainingFor(rank *models.Rank, metrics RankMetrics) *RankRemaining {
	referrals := int64(rank.MinReferrals) - metrics.Referrals
	if referrals < 0 {
		referrals = 0
	}
	return &RankRemaining{
		Referrals:   referrals,
		SalesVolume: models.NewMoneyFromDecimal(decimal.Max(decimal.Zero, rank.MinSalesVolume.Decimal.Sub(metrics.SalesVolume.Decimal))),
		TeamVolume:  models.NewMoneyFromDecimal(decimal.Max(decimal.Zero, rank.MinTeamVolume.Decimal.Sub(metrics.TeamVolume.Decimal))),
	}
}
