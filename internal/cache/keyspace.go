package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/dujiao-next/settlement/internal/models"
)

// keyspace 按用户 ID 分片的一类缓存
type keyspace struct {
	name string
	ttl  time.Duration
}

func (k keyspace) key(userID uint) string {
	return fmt.Sprintf("%s:%d", k.name, userID)
}

var (
	userAuthKeys     = keyspace{name: "auth:user", ttl: 10 * time.Minute}
	rankProgressKeys = keyspace{name: "rank:progress"}
)

// UserAuthState 鉴权中间件使用的账号状态快照
type UserAuthState struct {
	UserID    uint   `json:"user_id"`
	Status    string `json:"status"`
	UpdatedAt int64  `json:"updated_at"`
}

// BuildUserAuthState 由用户记录生成快照
func BuildUserAuthState(user *models.User) *UserAuthState {
	if user == nil {
		return nil
	}
	return &UserAuthState{UserID: user.ID, Status: user.Status, UpdatedAt: time.Now().Unix()}
}

// GetUserAuthState 读取账号状态快照
func GetUserAuthState(ctx context.Context, userID uint) (*UserAuthState, bool, error) {
	if userID == 0 {
		return nil, false, nil
	}
	state := &UserAuthState{}
	hit, err := getJSON(ctx, userAuthKeys.key(userID), state)
	if err != nil || !hit {
		return nil, hit, err
	}
	return state, true, nil
}

// SetUserAuthState 写入账号状态快照
func SetUserAuthState(ctx context.Context, state *UserAuthState) error {
	if state == nil || state.UserID == 0 {
		return nil
	}
	return setJSON(ctx, userAuthKeys.key(state.UserID), state, userAuthKeys.ttl)
}

// GetRankProgress 读取等级进度
func GetRankProgress(ctx context.Context, userID uint, dest interface{}) (bool, error) {
	if userID == 0 {
		return false, nil
	}
	return getJSON(ctx, rankProgressKeys.key(userID), dest)
}

// SetRankProgress 写入等级进度，ttl 由配置决定
func SetRankProgress(ctx context.Context, userID uint, value interface{}, ttl time.Duration) error {
	if userID == 0 || ttl <= 0 {
		return nil
	}
	return setJSON(ctx, rankProgressKeys.key(userID), value, ttl)
}

// DelRankProgress 业绩入账或晋级后失效
func DelRankProgress(ctx context.Context, userID uint) error {
	if userID == 0 {
		return nil
	}
	return del(ctx, rankProgressKeys.key(userID))
}
