package service

import (
	"fmt"

	"github.com/dujiao-next/settlement/internal/models"
	"github.com/dujiao-next/settlement/internal/repository"

	"github.com/shopspring/decimal"
)

// ReferralHop 推荐链上的一个收益人
type ReferralHop struct {
	Earner     *models.User
	Level      int
	Percentage decimal.Decimal
}

// ReferralWalker 沿 referrer_id 向上遍历推荐链
type ReferralWalker struct {
	userRepo repository.UserRepository
}

// NewReferralWalker 创建推荐链遍历器
func NewReferralWalker(userRepo repository.UserRepository) *ReferralWalker {
	return &ReferralWalker{userRepo: userRepo}
}

// Walk 每层上移一跳，遇到无上级、超出最高启用层级或重复访问时结束；重复访问返回 ErrReferralCycleDetected
func (w *ReferralWalker) Walk(purchaser *models.User, settings []models.CommissionSetting) ([]ReferralHop, error) {
	if purchaser == nil {
		return nil, ErrUserNotFound
	}
	percentages := make(map[int]decimal.Decimal, len(settings))
	maxLevel := 0
	for _, setting := range settings {
		if !setting.IsActive || setting.Level < 1 {
			continue
		}
		percentages[setting.Level] = setting.Percentage.Decimal
		if setting.Level > maxLevel {
			maxLevel = setting.Level
		}
	}

	hops := make([]ReferralHop, 0, maxLevel)
	visited := map[uint]struct{}{purchaser.ID: {}}
	current := purchaser
	for level := 1; level <= maxLevel; level++ {
		if current.ReferrerID == nil || *current.ReferrerID == 0 {
			break
		}
		nextID := *current.ReferrerID
		if _, seen := visited[nextID]; seen {
			return nil, fmt.Errorf("%w: user %d revisited at level %d from purchaser %d", ErrReferralCycleDetected, nextID, level, purchaser.ID)
		}
		visited[nextID] = struct{}{}

		earner, err := w.userRepo.GetByID(nextID)
		if err != nil {
			return nil, err
		}
		if earner == nil {
			break
		}
		// 未启用的中间层级只跳过分佣，不中断遍历
		if percentage, ok := percentages[level]; ok {
			hops = append(hops, ReferralHop{Earner: earner, Level: level, Percentage: percentage})
		}
		current = earner
	}
	return hops, nil
}
