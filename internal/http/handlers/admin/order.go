package admin

import (
	handlershared "github.com/dujiao-next/settlement/internal/http/handlers/shared"
	"github.com/dujiao-next/settlement/internal/http/response"

	"github.com/gin-gonic/gin"
)

// ShipOrder 订单发货
func (h *Handler) ShipOrder(c *gin.Context) {
	orderID, ok := handlershared.ParamUint(c, "id")
	if !ok {
		return
	}
	order, err := h.OrderService.ShipOrder(orderID)
	if err != nil {
		respondServiceError(c, err, "order update failed")
		return
	}
	response.Success(c, order)
}

// DeliverOrder 订单签收
func (h *Handler) DeliverOrder(c *gin.Context) {
	orderID, ok := handlershared.ParamUint(c, "id")
	if !ok {
		return
	}
	order, err := h.OrderService.DeliverOrder(orderID)
	if err != nil {
		respondServiceError(c, err, "order update failed")
		return
	}
	response.Success(c, order)
}

// GetOrderCommissions 查询订单产生的佣金
func (h *Handler) GetOrderCommissions(c *gin.Context) {
	orderID, ok := handlershared.ParamUint(c, "id")
	if !ok {
		return
	}
	commissions, err := h.WalletService.ListOrderCommissions(orderID)
	if err != nil {
		respondServiceError(c, err, "commission fetch failed")
		return
	}
	response.Success(c, commissions)
}
