package public

import (
	"strings"

	handlershared "github.com/dujiao-next/settlement/internal/http/handlers/shared"
	"github.com/dujiao-next/settlement/internal/http/response"

	"github.com/gin-gonic/gin"
)

// ListProducts 商品列表（仅上架）
func (h *Handler) ListProducts(c *gin.Context) {
	page, pageSize := handlershared.QueryPagination(c)
	search := strings.TrimSpace(c.Query("search"))
	inStock := strings.EqualFold(strings.TrimSpace(c.Query("in_stock")), "true")

	products, total, err := h.ProductService.ListPublic(search, inStock, page, pageSize)
	if err != nil {
		respondServiceError(c, err, "product fetch failed")
		return
	}
	response.SuccessWithPage(c, products, response.BuildPagination(page, pageSize, total))
}

// GetProduct 商品详情
func (h *Handler) GetProduct(c *gin.Context) {
	productID, ok := handlershared.ParamUint(c, "id")
	if !ok {
		return
	}
	product, err := h.ProductService.GetPublic(productID)
	if err != nil {
		respondServiceError(c, err, "product fetch failed")
		return
	}
	response.Success(c, product)
}
