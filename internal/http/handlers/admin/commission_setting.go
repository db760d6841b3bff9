package admin

import (
	"github.com/dujiao-next/settlement/internal/http/response"
	"github.com/dujiao-next/settlement/internal/service"

	"github.com/gin-gonic/gin"
)

// UpdateCommissionSettingsRequest 佣金层级批量更新请求
type UpdateCommissionSettingsRequest struct {
	Levels []service.CommissionSettingInput `json:"levels" binding:"required"`
}

// GetCommissionSettings 获取佣金层级配置
func (h *Handler) GetCommissionSettings(c *gin.Context) {
	settings, err := h.CommissionSettingService.List()
	if err != nil {
		respondServiceError(c, err, "commission settings fetch failed")
		return
	}
	response.Success(c, settings)
}

// UpdateCommissionSettings 批量更新佣金层级，只影响之后结算的订单
func (h *Handler) UpdateCommissionSettings(c *gin.Context) {
	var req UpdateCommissionSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "invalid request", err)
		return
	}

	settings, err := h.CommissionSettingService.Upsert(req.Levels)
	if err != nil {
		respondServiceError(c, err, "commission settings save failed")
		return
	}

	adminID, _ := c.Get("admin_id")
	requestLog(c).Infow("admin_commission_settings_updated",
		"admin_id", adminID,
		"levels", len(req.Levels),
	)
	response.Success(c, settings)
}
