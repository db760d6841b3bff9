package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dujiao-next/settlement/internal/logger"
	"github.com/dujiao-next/settlement/internal/models"
	"github.com/dujiao-next/settlement/internal/repository"

	"github.com/shopspring/decimal"
)

var errProductSKUTaken = errors.New("sku already exists")

// ProductService 商品目录服务
type ProductService struct {
	repo repository.ProductRepository
}

// NewProductService 创建商品服务
func NewProductService(repo repository.ProductRepository) *ProductService {
	return &ProductService{repo: repo}
}

// CreateProductInput 创建商品输入
type CreateProductInput struct {
	SKU      string `json:"sku"`
	Name     string `json:"name"`
	Price    string `json:"price"`
	Discount string `json:"discount"` // 百分比 0-100，可为空
	Stock    int    `json:"stock"`
	IsActive bool   `json:"is_active"`
}

// ListPublic 获取前台商品列表（仅上架）
func (s *ProductService) ListPublic(search string, inStockOnly bool, page, pageSize int) ([]models.Product, int64, error) {
	return s.repo.List(repository.ProductListFilter{
		Page:        page,
		PageSize:    pageSize,
		Search:      search,
		OnlyActive:  true,
		InStockOnly: inStockOnly,
	})
}

// GetPublic 获取前台商品详情，下架商品视为不存在
func (s *ProductService) GetPublic(id uint) (*models.Product, error) {
	product, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if product == nil || !product.IsActive {
		return nil, ErrProductNotFound
	}
	return product, nil
}

// ListAdmin 获取后台商品列表
func (s *ProductService) ListAdmin(search string, page, pageSize int) ([]models.Product, int64, error) {
	return s.repo.List(repository.ProductListFilter{
		Page:     page,
		PageSize: pageSize,
		Search:   search,
	})
}

// Create 创建商品
func (s *ProductService) Create(input CreateProductInput) (*models.Product, error) {
	sku := strings.ToUpper(strings.TrimSpace(input.SKU))
	name := strings.TrimSpace(input.Name)
	if sku == "" || name == "" {
		return nil, fmt.Errorf("%w: sku and name required", ErrValidation)
	}
	if input.Stock < 0 {
		return nil, fmt.Errorf("%w: stock must be >= 0", ErrValidation)
	}
	price, err := decimal.NewFromString(strings.TrimSpace(input.Price))
	if err != nil || price.IsNegative() {
		return nil, fmt.Errorf("%w: invalid price", ErrValidation)
	}
	discount := decimal.Zero
	if raw := strings.TrimSpace(input.Discount); raw != "" {
		discount, err = decimal.NewFromString(raw)
		if err != nil || discount.IsNegative() || discount.GreaterThan(decimal.NewFromInt(100)) {
			return nil, fmt.Errorf("%w: discount out of range", ErrValidation)
		}
	}

	existing, err := s.repo.GetBySKU(sku)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, errProductSKUTaken)
	}

	product := &models.Product{
		SKU:      sku,
		Name:     name,
		Price:    models.NewMoneyFromDecimal(price),
		Discount: models.NewMoneyFromDecimal(discount),
		Stock:    input.Stock,
		IsActive: input.IsActive,
	}
	if err := s.repo.Create(product); err != nil {
		return nil, err
	}
	logger.Infow("product_created",
		"product_id", product.ID,
		"sku", product.SKU,
		"stock", product.Stock,
	)
	return product, nil
}
