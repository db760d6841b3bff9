package admin

import (
	"strings"

	handlershared "github.com/dujiao-next/settlement/internal/http/handlers/shared"
	"github.com/dujiao-next/settlement/internal/http/response"
	"github.com/dujiao-next/settlement/internal/service"

	"github.com/gin-gonic/gin"
)

// GetProducts 后台商品列表（含下架）
func (h *Handler) GetProducts(c *gin.Context) {
	page, pageSize := handlershared.QueryPagination(c)
	products, total, err := h.ProductService.ListAdmin(strings.TrimSpace(c.Query("search")), page, pageSize)
	if err != nil {
		respondServiceError(c, err, "product fetch failed")
		return
	}
	response.SuccessWithPage(c, products, response.BuildPagination(page, pageSize, total))
}

// CreateProduct 创建商品
func (h *Handler) CreateProduct(c *gin.Context) {
	var req service.CreateProductInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "invalid request", err)
		return
	}
	product, err := h.ProductService.Create(req)
	if err != nil {
		respondServiceError(c, err, "product create failed")
		return
	}
	adminID, _ := getAdminID(c)
	requestLog(c).Infow("admin_product_created",
		"admin_id", adminID,
		"product_id", product.ID,
		"sku", product.SKU,
	)
	response.Success(c, product)
}
