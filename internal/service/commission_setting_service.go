package service

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dujiao-next/settlement/internal/constants"
	"github.com/dujiao-next/settlement/internal/logger"
	"github.com/dujiao-next/settlement/internal/models"
	"github.com/dujiao-next/settlement/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CommissionSettingService 佣金层级配置服务
type CommissionSettingService struct {
	repo repository.CommissionSettingRepository
}

// CommissionSettingInput 层级配置写入参数
type CommissionSettingInput struct {
	Level      int    `json:"level"`
	Percentage string `json:"percentage"`
	IsActive   bool   `json:"is_active"`
}

// NewCommissionSettingService 创建佣金层级配置服务
func NewCommissionSettingService(repo repository.CommissionSettingRepository) *CommissionSettingService {
	return &CommissionSettingService{repo: repo}
}

// EnsureDefaults 启动时补齐默认层级（10/5/3），已存在的层级保持不变
func (s *CommissionSettingService) EnsureDefaults() (int, error) {
	created := 0
	for idx, raw := range constants.DefaultCommissionPercentages {
		level := idx + 1
		existing, err := s.repo.GetByLevel(level)
		if err != nil {
			return created, err
		}
		if existing != nil {
			continue
		}
		percentage, err := models.NewMoneyFromString(raw)
		if err != nil {
			return created, err
		}
		if err := s.repo.Upsert(&models.CommissionSetting{
			Level:      level,
			Percentage: percentage,
			IsActive:   true,
		}); err != nil {
			return created, err
		}
		created++
	}
	if created > 0 {
		logger.Infow("commission_settings_seeded", "created", created)
	}
	return created, nil
}

// List 获取全部层级配置
func (s *CommissionSettingService) List() ([]models.CommissionSetting, error) {
	return s.repo.List()
}

// ListActive 获取启用的层级配置（按层级升序）
func (s *CommissionSettingService) ListActive() ([]models.CommissionSetting, error) {
	settings, err := s.repo.ListActive()
	if err != nil {
		return nil, err
	}
	sort.SliceStable(settings, func(i, j int) bool {
		return settings[i].Level < settings[j].Level
	})
	return settings, nil
}

// Upsert 批量写入层级配置
func (s *CommissionSettingService) Upsert(inputs []CommissionSettingInput) ([]models.CommissionSetting, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("%w: empty settings", ErrCommissionSettingInvalid)
	}
	seen := make(map[int]struct{}, len(inputs))
	rows := make([]models.CommissionSetting, 0, len(inputs))
	for _, input := range inputs {
		row, err := normalizeCommissionSetting(input)
		if err != nil {
			return nil, err
		}
		if _, ok := seen[row.Level]; ok {
			return nil, fmt.Errorf("%w: duplicate level %d", ErrCommissionSettingInvalid, row.Level)
		}
		seen[row.Level] = struct{}{}
		rows = append(rows, row)
	}

	if err := models.DB.Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		for i := range rows {
			if err := repo.Upsert(&rows[i]); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return s.repo.List()
}

func normalizeCommissionSetting(input CommissionSettingInput) (models.CommissionSetting, error) {
	if input.Level < 1 {
		return models.CommissionSetting{}, fmt.Errorf("%w: level must be >= 1", ErrCommissionSettingInvalid)
	}
	percentage, err := decimal.NewFromString(strings.TrimSpace(input.Percentage))
	if err != nil {
		return models.CommissionSetting{}, fmt.Errorf("%w: level %d percentage", ErrCommissionSettingInvalid, input.Level)
	}
	if percentage.LessThan(decimal.Zero) || percentage.GreaterThan(decimal.NewFromInt(100)) {
		return models.CommissionSetting{}, fmt.Errorf("%w: level %d percentage out of range", ErrCommissionSettingInvalid, input.Level)
	}
	return models.CommissionSetting{
		Level:      input.Level,
		Percentage: models.NewMoneyFromDecimal(percentage),
		IsActive:   input.IsActive,
		UpdatedAt:  time.Now(),
	}, nil
}
