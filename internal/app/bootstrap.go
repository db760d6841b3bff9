package app

import (
	"errors"

	"github.com/dujiao-next/settlement/internal/config"
	"github.com/dujiao-next/settlement/internal/provider"
	"github.com/dujiao-next/settlement/internal/router"
	"github.com/dujiao-next/settlement/internal/worker"
)

// BuildRunner 按启动模式组装服务
func BuildRunner(cfg *config.Config, opts Options) (*Runner, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	opts = opts.withDefaults()

	container := provider.NewContainer(cfg)
	if !opts.SkipSeed {
		// 佣金层级 10/5/3 与默认等级只补缺，不覆盖已有配置
		if err := container.SeedDefaults(); err != nil {
			_ = container.Close()
			return nil, err
		}
	}
	runner, err := buildServices(cfg, opts.Mode, container)
	if err != nil {
		_ = container.Close()
		return nil, err
	}
	runner.OnShutdown(container.Close)
	return runner, nil
}

func buildServices(cfg *config.Config, mode Mode, container *provider.Container) (*Runner, error) {
	var services []Service

	if mode.servesHTTP() {
		engine := router.SetupRouter(cfg, container)
		services = append(services, NewHTTPService(cfg.Server, engine))
	}

	// 队列消费仅在启用队列时运行
	if mode.consumesQueue() && cfg.Queue.Enabled {
		consumer := worker.NewConsumer(container)
		workerService, err := worker.NewService(&cfg.Queue, consumer)
		if err != nil {
			return nil, err
		}
		services = append(services, workerService)
	}

	// 未启用队列时阶段在进程内执行，API 进程同样需要补偿扫描
	if mode.consumesQueue() || !cfg.Queue.Enabled {
		sweeperService, err := worker.NewSweeperService(container.SettlementService, cfg.Settlement.OutboxSweepIntervalSeconds)
		if err != nil {
			return nil, err
		}
		services = append(services, sweeperService)
	}

	if len(services) == 0 {
		return nil, errors.New("no services initialized (check mode and config)")
	}
	return NewRunner(services...), nil
}

// Run 应用启动入口
func Run(opts Options) error {
	opts = opts.withDefaults()
	if opts.Config == nil {
		return errors.New("config is nil")
	}

	runner, err := BuildRunner(opts.Config, opts)
	if err != nil {
		return err
	}

	opts.Logger.Infow("app_start",
		"mode", string(opts.Mode),
		"services", len(runner.Services()),
		"queue_enabled", opts.Config.Queue.Enabled,
	)
	return RunWithOptions(runner, opts)
}
