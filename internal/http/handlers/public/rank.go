package public

import (
	"github.com/dujiao-next/settlement/internal/http/response"

	"github.com/gin-gonic/gin"
)

// ListRanks 等级阶梯
func (h *Handler) ListRanks(c *gin.Context) {
	ranks, err := h.RankService.List()
	if err != nil {
		respondServiceError(c, err, "rank fetch failed")
		return
	}
	response.Success(c, ranks)
}

// GetMyRankProgress 当前等级与晋升进度
func (h *Handler) GetMyRankProgress(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	progress, err := h.RankService.GetProgress(c.Request.Context(), uid)
	if err != nil {
		respondServiceError(c, err, "rank progress fetch failed")
		return
	}
	response.Success(c, progress)
}
