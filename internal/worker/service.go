package worker

import (
	"context"
	"errors"
	"time"

	"github.com/dujiao-next/settlement/internal/config"
	"github.com/dujiao-next/settlement/internal/logger"
	"github.com/dujiao-next/settlement/internal/metrics"
	"github.com/dujiao-next/settlement/internal/queue"

	"github.com/hibiken/asynq"
)

const (
	workerServiceName  = "worker"
	workerShutdownWait = 10 * time.Second
	retryDelayBase     = 2 * time.Second
	retryDelayCeiling  = 5 * time.Minute
)

var (
	errQueueDisabled   = errors.New("queue disabled")
	errConsumerMissing = errors.New("consumer is nil")
	errWorkerNotReady  = errors.New("worker not initialized")
)

// Service 基于 asynq 的结算任务消费服务
type Service struct {
	server *asynq.Server
	mux    *asynq.ServeMux
}

// NewService 创建消费服务，队列未启用时返回错误
func NewService(cfg *config.QueueConfig, consumer *Consumer) (*Service, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, errQueueDisabled
	}
	if consumer == nil {
		return nil, errConsumerMissing
	}
	opt, serverCfg := queue.BuildServerConfig(cfg)
	serverCfg.Logger = logger.SW("component", workerServiceName)
	serverCfg.ShutdownTimeout = workerShutdownWait
	serverCfg.RetryDelayFunc = settlementRetryDelay
	serverCfg.ErrorHandler = asynq.ErrorHandlerFunc(reportTaskFailure)

	mux := asynq.NewServeMux()
	consumer.Register(mux)
	return &Service{
		server: asynq.NewServer(opt, serverCfg),
		mux:    mux,
	}, nil
}

// Name 服务名称
func (s *Service) Name() string {
	return workerServiceName
}

// Start 阻塞运行直到 Stop
func (s *Service) Start(_ context.Context) error {
	if s == nil || s.server == nil || s.mux == nil {
		return errWorkerNotReady
	}
	return s.server.Run(s.mux)
}

// Stop 等待在途任务完成后退出
func (s *Service) Stop(_ context.Context) error {
	if s == nil || s.server == nil {
		return nil
	}
	s.server.Shutdown()
	return nil
}

// settlementRetryDelay 指数退避，上限 5 分钟
func settlementRetryDelay(retried int, _ error, _ *asynq.Task) time.Duration {
	if retried < 0 {
		retried = 0
	}
	delay := retryDelayBase
	for i := 0; i < retried; i++ {
		delay *= 2
		if delay >= retryDelayCeiling {
			return retryDelayCeiling
		}
	}
	return delay
}

func reportTaskFailure(ctx context.Context, task *asynq.Task, err error) {
	if task == nil {
		return
	}
	retried, _ := asynq.GetRetryCount(ctx)
	maxRetry, _ := asynq.GetMaxRetry(ctx)
	fields := []interface{}{"task_type", task.Type(), "retried", retried, "max_retry", maxRetry, "error", err}
	exhausted := errors.Is(err, asynq.SkipRetry) || retried >= maxRetry
	metrics.TaskFailed(task.Type(), exhausted)
	if exhausted {
		logger.Errorw("worker_task_exhausted", fields...)
		return
	}
	logger.Warnw("worker_task_failed", fields...)
}
