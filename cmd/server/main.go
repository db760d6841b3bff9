package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/dujiao-next/settlement/internal/app"
	"github.com/dujiao-next/settlement/internal/config"
	"github.com/dujiao-next/settlement/internal/logger"
	"github.com/dujiao-next/settlement/internal/models"

	"github.com/gin-gonic/gin"
)

const (
	ansiReset = "\033[0m"
	ansiBold  = "\033[1m"
	ansiDim   = "\033[2m"
	ansiCyan  = "\033[36m"
)

func main() {
	// 解析命令行参数
	var rawMode string
	var skipSeed bool
	flag.StringVar(&rawMode, "mode", string(app.ModeAll), "启动模式: all (默认), api, worker")
	flag.BoolVar(&skipSeed, "skip-seed", false, "跳过默认佣金层级与等级初始化")
	flag.Parse()

	mode, known := app.ParseMode(rawMode)
	printStartupBanner(mode)

	// 加载配置
	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	stdLog := logger.StdLogger()
	if !known {
		stdLog.Printf("警告: 未知启动模式 %q，按 all 运行", rawMode)
	}

	secrets := map[string]string{
		"jwt.secret":             cfg.JWT.SecretKey,
		"user_jwt.secret":        cfg.UserJWT.SecretKey,
		"payment.signing_secret": cfg.Payment.SigningSecret,
	}
	for key, secret := range secrets {
		if !isWeakSecret(secret) {
			continue
		}
		if cfg.Server.Mode == "release" {
			stdLog.Fatalf("%s 过弱或仍为默认值，请在生产环境中配置强随机密钥", key)
		}
		stdLog.Printf("警告: %s 过弱或仍为默认值，建议在生产环境中更换", key)
	}

	// 初始化数据库
	if err := models.InitDB(cfg.Database.Driver, cfg.Database.DSN, models.DBPoolConfig{
		MaxOpenConns:           cfg.Database.Pool.MaxOpenConns,
		MaxIdleConns:           cfg.Database.Pool.MaxIdleConns,
		ConnMaxLifetimeSeconds: cfg.Database.Pool.ConnMaxLifetimeSeconds,
		ConnMaxIdleTimeSeconds: cfg.Database.Pool.ConnMaxIdleTimeSeconds,
	}); err != nil {
		stdLog.Fatalf("数据库初始化失败: %v", err)
	}

	// 自动迁移数据库表
	if err := models.AutoMigrate(); err != nil {
		stdLog.Fatalf("数据库迁移失败: %v", err)
	}

	// 没有超级管理员时按配置创建
	if _, err := models.EnsureBootstrapAdmin(cfg.Bootstrap.AdminUsername, cfg.Bootstrap.AdminPassword); err != nil {
		stdLog.Printf("警告: 初始化默认管理员失败: %v", err)
	}

	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := app.Run(app.Options{
		Config:   cfg,
		Logger:   logger.S(),
		Signals:  []os.Signal{syscall.SIGINT, syscall.SIGTERM},
		Mode:     mode,
		SkipSeed: skipSeed,
	}); err != nil {
		stdLog.Fatalf("服务运行失败: %v", err)
	}
}

func printStartupBanner(mode app.Mode) {
	fmt.Println(ansiCyan + ansiBold + "Dujiao-Next Settlement" + ansiReset)
	fmt.Println(ansiDim + "order settlement & multi-level commission engine, mode=" + string(mode) + ansiReset)
	fmt.Println(ansiDim + "--------------------------------------------------------------" + ansiReset)
}

func isWeakSecret(secret string) bool {
	if len(secret) < 32 {
		return true
	}
	normalized := strings.ToLower(secret)
	if strings.Contains(normalized, "change-me") ||
		strings.Contains(normalized, "change-in-production") ||
		strings.Contains(normalized, "your-secret-key") {
		return true
	}
	return false
}
