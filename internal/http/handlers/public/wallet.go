package public

import (
	"strconv"
	"strings"

	handlershared "github.com/dujiao-next/settlement/internal/http/handlers/shared"
	"github.com/dujiao-next/settlement/internal/http/response"
	"github.com/dujiao-next/settlement/internal/repository"

	"github.com/gin-gonic/gin"
)

// GetMyWallet 获取当前用户钱包信息
func (h *Handler) GetMyWallet(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	account, err := h.WalletService.GetWallet(uid)
	if err != nil {
		respondServiceError(c, err, "wallet fetch failed")
		return
	}
	response.Success(c, account)
}

// GetMyWalletTransactions 获取当前用户钱包流水
func (h *Handler) GetMyWalletTransactions(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	page, pageSize := handlershared.QueryPagination(c)

	transactions, total, err := h.WalletService.ListTransactions(repository.WalletTransactionListFilter{
		Page:     page,
		PageSize: pageSize,
		UserID:   uid,
		Type:     strings.TrimSpace(c.Query("type")),
	})
	if err != nil {
		respondServiceError(c, err, "wallet transactions fetch failed")
		return
	}
	response.SuccessWithPage(c, transactions, response.BuildPagination(page, pageSize, total))
}

// GetMyCommissions 获取当前用户收到的佣金
func (h *Handler) GetMyCommissions(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	page, pageSize := handlershared.QueryPagination(c)
	level, _ := strconv.Atoi(c.DefaultQuery("level", "0"))

	commissions, total, err := h.WalletService.ListCommissions(repository.CommissionListFilter{
		Page:         page,
		PageSize:     pageSize,
		EarnerUserID: uid,
		Level:        level,
	})
	if err != nil {
		respondServiceError(c, err, "commission fetch failed")
		return
	}
	response.SuccessWithPage(c, commissions, response.BuildPagination(page, pageSize, total))
}

// GetMyNotifications 获取当前用户的通知请求
func (h *Handler) GetMyNotifications(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	items, err := h.NotificationService.ListByUser(uid, limit)
	if err != nil {
		respondServiceError(c, err, "notification fetch failed")
		return
	}
	response.Success(c, items)
}
