package main

import (
	"fmt"

	"github.com/dujiao-next/settlement/internal/config"
	"github.com/dujiao-next/settlement/internal/constants"
	"github.com/dujiao-next/settlement/internal/logger"
	"github.com/dujiao-next/settlement/internal/models"
	"github.com/dujiao-next/settlement/internal/provider"
	"github.com/dujiao-next/settlement/internal/service"

	"github.com/shopspring/decimal"
)

const demoPassword = "Demo@123456"

type demoUser struct {
	Email       string
	DisplayName string
	Referrer    string
}

func main() {
	// 连接数据库
	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	stdLog := logger.StdLogger()
	if err := models.InitDB(cfg.Database.Driver, cfg.Database.DSN, models.DBPoolConfig{
		MaxOpenConns:           cfg.Database.Pool.MaxOpenConns,
		MaxIdleConns:           cfg.Database.Pool.MaxIdleConns,
		ConnMaxLifetimeSeconds: cfg.Database.Pool.ConnMaxLifetimeSeconds,
		ConnMaxIdleTimeSeconds: cfg.Database.Pool.ConnMaxIdleTimeSeconds,
	}); err != nil {
		stdLog.Fatalf("Failed to connect database: %v", err)
	}

	// 自动迁移
	if err := models.AutoMigrate(); err != nil {
		stdLog.Fatalf("Failed to migrate database: %v", err)
	}

	// 佣金层级、默认等级与内置角色
	container := provider.NewContainer(cfg)
	if err := container.SeedDefaults(); err != nil {
		stdLog.Fatalf("Failed to seed defaults: %v", err)
	}

	// 添加商品
	products := []models.Product{
		{SKU: "DEMO-EARPHONE", Name: "Wireless Earphones", Price: money("99.99"), Discount: money("0"), Stock: 200, IsActive: true},
		{SKU: "DEMO-WATCH", Name: "Smart Watch", Price: money("199.99"), Discount: money("10"), Stock: 80, IsActive: true},
		{SKU: "DEMO-KEYBOARD", Name: "Mechanical Keyboard", Price: money("129.00"), Discount: money("0"), Stock: 3, IsActive: true},
		{SKU: "DEMO-SOLD-OUT", Name: "Limited Edition Mug", Price: money("25.00"), Discount: money("0"), Stock: 0, IsActive: true},
		{SKU: "DEMO-OFFLINE", Name: "Discontinued Charger", Price: money("19.90"), Discount: money("0"), Stock: 50, IsActive: false},
	}
	for _, prod := range products {
		var existing models.Product
		if err := models.DB.Where("sku = ?", prod.SKU).First(&existing).Error; err != nil {
			if err := models.DB.Create(&prod).Error; err != nil {
				stdLog.Printf("Failed to create product %s: %v", prod.SKU, err)
			} else {
				stdLog.Printf("Created product: %s", prod.SKU)
			}
			continue
		}
		existing.Name = prod.Name
		existing.Price = prod.Price
		existing.Discount = prod.Discount
		existing.Stock = prod.Stock
		existing.IsActive = prod.IsActive
		if err := models.DB.Save(&existing).Error; err != nil {
			stdLog.Printf("Failed to update product %s: %v", prod.SKU, err)
		} else {
			stdLog.Printf("Updated product: %s", prod.SKU)
		}
	}

	// 推荐链：alice <- bob <- carol <- dave <- erin
	users := []demoUser{
		{Email: "alice@example.com", DisplayName: "Alice"},
		{Email: "bob@example.com", DisplayName: "Bob", Referrer: "alice@example.com"},
		{Email: "carol@example.com", DisplayName: "Carol", Referrer: "bob@example.com"},
		{Email: "dave@example.com", DisplayName: "Dave", Referrer: "carol@example.com"},
		{Email: "erin@example.com", DisplayName: "Erin", Referrer: "dave@example.com"},
	}
	hash, err := service.HashPassword(demoPassword)
	if err != nil {
		stdLog.Fatalf("Failed to hash demo password: %v", err)
	}
	userIDs := map[string]uint{}
	for _, item := range users {
		var existing models.User
		if err := models.DB.Where("email = ?", item.Email).First(&existing).Error; err == nil {
			userIDs[item.Email] = existing.ID
			stdLog.Printf("User already exists: %s", item.Email)
			continue
		}
		user := models.User{
			Email:        item.Email,
			DisplayName:  item.DisplayName,
			PasswordHash: hash,
			Role:         constants.UserRoleCustomer,
			Status:       constants.UserStatusActive,
		}
		if item.Referrer != "" {
			referrerID, ok := userIDs[item.Referrer]
			if !ok {
				stdLog.Printf("Skip user %s: referrer %s missing", item.Email, item.Referrer)
				continue
			}
			user.ReferrerID = &referrerID
		}
		if err := models.DB.Create(&user).Error; err != nil {
			stdLog.Printf("Failed to create user %s: %v", item.Email, err)
			continue
		}
		userIDs[item.Email] = user.ID
		stdLog.Printf("Created user: %s", item.Email)
	}

	fmt.Println("\n✅ Demo data created successfully!")
	fmt.Println("Summary:")
	fmt.Println("- Commission levels 10% / 5% / 3%")
	fmt.Printf("- %d Products (含售罄与下架演示商品)\n", len(products))
	fmt.Printf("- %d Users in one referral chain, password %s\n", len(users), demoPassword)
}

func money(raw string) models.Money {
	return models.NewMoneyFromDecimal(decimal.RequireFromString(raw))
}
