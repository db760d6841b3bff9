package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Rank 会员等级（静态参考数据）
type Rank struct {
	ID                   uint            `gorm:"primarykey" json:"id"`                                               // 主键
	Name                 string          `gorm:"type:varchar(64);uniqueIndex;not null" json:"name"`                  // 等级名称
	SortOrder            int             `gorm:"not null;uniqueIndex" json:"order"`                                  // 等级序（升序）
	MinReferrals         int             `gorm:"not null;default:0" json:"min_referrals"`                            // 最低直推人数
	MinSalesVolume       Money           `gorm:"type:decimal(20,2);not null;default:0" json:"min_sales_volume"`      // 最低个人业绩（滚动窗口）
	MinTeamVolume        Money           `gorm:"type:decimal(20,2);not null;default:0" json:"min_team_volume"`       // 最低团队业绩（滚动窗口）
	CommissionMultiplier decimal.Decimal `gorm:"type:decimal(10,3);not null;default:1" json:"commission_multiplier"` // 佣金倍率（>=1）
	Benefits             StringArray     `gorm:"type:json" json:"benefits"`                                          // 等级权益
	CreatedAt            time.Time       `json:"created_at"`                                                         // 创建时间
	UpdatedAt            time.Time       `json:"updated_at"`                                                         // 更新时间
}

// TableName 指定表名
func (Rank) TableName() string {
	return "ranks"
}

// RankAchievement 晋级记录（只增不删）
type RankAchievement struct {
	ID          uint      `gorm:"primarykey" json:"id"`                                               // 主键
	UserID      uint      `gorm:"not null;index:idx_rank_achievement_user_rank,unique" json:"user_id"` // 用户ID
	RankID      uint      `gorm:"not null;index:idx_rank_achievement_user_rank,unique" json:"rank_id"` // 等级ID
	Referrals   int       `gorm:"not null;default:0" json:"referrals"`                                // 晋级时直推人数
	SalesVolume Money     `gorm:"type:decimal(20,2);not null;default:0" json:"sales_volume"`          // 晋级时个人业绩
	TeamVolume  Money     `gorm:"type:decimal(20,2);not null;default:0" json:"team_volume"`           // 晋级时团队业绩
	AchievedAt  time.Time `gorm:"index" json:"achieved_at"`                                           // 晋级时间

	Rank Rank `gorm:"foreignKey:RankID" json:"rank,omitempty"` // 等级
}

// TableName 指定表名
func (RankAchievement) TableName() string {
	return "rank_achievements"
}
