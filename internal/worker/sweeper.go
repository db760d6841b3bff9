package worker

import (
	"context"
	"errors"
	"time"

	"github.com/dujiao-next/settlement/internal/logger"
)

const defaultSweepInterval = time.Minute

// StaleSweeper 补偿扫描的执行方
type StaleSweeper interface {
	SweepStale(ctx context.Context) (int, error)
}

// SweeperService 定时重放滞留或失败的结算任务
type SweeperService struct {
	name     string
	sweeper  StaleSweeper
	interval time.Duration
}

// NewSweeperService 创建补偿扫描服务
func NewSweeperService(sweeper StaleSweeper, intervalSeconds int) (*SweeperService, error) {
	if sweeper == nil {
		return nil, errors.New("sweeper is nil")
	}
	interval := time.Duration(intervalSeconds) * time.Second
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	return &SweeperService{
		name:     "settlement_sweeper",
		sweeper:  sweeper,
		interval: interval,
	}, nil
}

// Name 服务名称
func (s *SweeperService) Name() string {
	if s == nil || s.name == "" {
		return "settlement_sweeper"
	}
	return s.name
}

// Start 启动扫描循环，直到 ctx 结束
func (s *SweeperService) Start(ctx context.Context) error {
	if s == nil || s.sweeper == nil {
		return errors.New("sweeper not initialized")
	}
	s.runOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

// Stop 停止服务（由 Start 的 ctx 控制退出）
func (s *SweeperService) Stop(_ context.Context) error {
	return nil
}

func (s *SweeperService) runOnce(ctx context.Context) int {
	count, err := s.sweeper.SweepStale(ctx)
	if err != nil {
		logger.Warnw("worker_settlement_sweep_failed", "error", err)
		return 0
	}
	if count > 0 {
		logger.Infow("worker_settlement_sweep_dispatched", "count", count)
	}
	return count
}
