package admin

import (
	handlershared "github.com/dujiao-next/settlement/internal/http/handlers/shared"
	"github.com/dujiao-next/settlement/internal/http/response"

	"github.com/gin-gonic/gin"
)

// GetRanks 获取等级阶梯
func (h *Handler) GetRanks(c *gin.Context) {
	ranks, err := h.RankService.List()
	if err != nil {
		respondServiceError(c, err, "rank fetch failed")
		return
	}
	response.Success(c, ranks)
}

// GetUserRankProgress 查询用户等级进度
func (h *Handler) GetUserRankProgress(c *gin.Context) {
	userID, ok := handlershared.ParamUint(c, "id")
	if !ok {
		return
	}
	progress, err := h.RankService.GetProgress(c.Request.Context(), userID)
	if err != nil {
		respondServiceError(c, err, "rank progress fetch failed")
		return
	}
	response.Success(c, progress)
}

// EvaluateUserRank 手动触发用户等级评估（只升不降）
func (h *Handler) EvaluateUserRank(c *gin.Context) {
	userID, ok := handlershared.ParamUint(c, "id")
	if !ok {
		return
	}
	result, err := h.RankService.Evaluate(userID)
	if err != nil {
		respondServiceError(c, err, "rank evaluate failed")
		return
	}
	response.Success(c, result)
}
