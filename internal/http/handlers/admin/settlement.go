package admin

import (
	handlershared "github.com/dujiao-next/settlement/internal/http/handlers/shared"
	"github.com/dujiao-next/settlement/internal/http/response"

	"github.com/gin-gonic/gin"
)

// GetSettlementTasks 查询订单结算任务
func (h *Handler) GetSettlementTasks(c *gin.Context) {
	orderID, ok := handlershared.ParamUint(c, "order_id")
	if !ok {
		return
	}
	tasks, err := h.SettlementService.ListTasks(orderID)
	if err != nil {
		respondServiceError(c, err, "settlement tasks fetch failed")
		return
	}
	response.Success(c, tasks)
}

// ReplaySettlement 重放订单结算，已入账的收益人不会重复入账
func (h *Handler) ReplaySettlement(c *gin.Context) {
	orderID, ok := handlershared.ParamUint(c, "order_id")
	if !ok {
		return
	}
	tasks, err := h.SettlementService.Replay(orderID)
	if err != nil {
		respondServiceError(c, err, "settlement replay failed")
		return
	}

	adminID, _ := c.Get("admin_id")
	requestLog(c).Infow("admin_settlement_replayed",
		"admin_id", adminID,
		"order_id", orderID,
	)
	response.Success(c, tasks)
}
