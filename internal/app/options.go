package app

import (
	"os"
	"strings"
	"time"

	"github.com/dujiao-next/settlement/internal/config"
	"github.com/dujiao-next/settlement/internal/logger"

	"go.uber.org/zap"
)

// Mode 进程角色
type Mode string

const (
	ModeAll    Mode = "all"
	ModeAPI    Mode = "api"
	ModeWorker Mode = "worker"
)

const defaultShutdownTimeout = 10 * time.Second

// ParseMode 解析启动模式，未知值回落为 all 并返回 false
func ParseMode(raw string) (Mode, bool) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(raw))); m {
	case ModeAll, ModeAPI, ModeWorker:
		return m, true
	default:
		return ModeAll, false
	}
}

// servesHTTP 是否对外提供接口
func (m Mode) servesHTTP() bool {
	return m == ModeAll || m == ModeAPI
}

// consumesQueue 是否消费结算任务
func (m Mode) consumesQueue() bool {
	return m == ModeAll || m == ModeWorker
}

// Options 启动选项
type Options struct {
	Config          *config.Config
	Logger          *zap.SugaredLogger
	Signals         []os.Signal
	ShutdownTimeout time.Duration
	Mode            Mode
	SkipSeed        bool // 不写入默认佣金层级与等级
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = logger.S()
	}
	if o.ShutdownTimeout <= 0 {
		o.ShutdownTimeout = defaultShutdownTimeout
	}
	o.Mode, _ = ParseMode(string(o.Mode))
	return o
}
