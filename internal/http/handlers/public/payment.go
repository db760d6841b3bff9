package public

import (
	"github.com/dujiao-next/settlement/internal/http/response"
	"github.com/dujiao-next/settlement/internal/service"

	"github.com/gin-gonic/gin"
)

// ConfirmPaymentRequest 支付确认请求（网关回传的签名断言）
type ConfirmPaymentRequest struct {
	OrderRef   string `json:"order_ref" binding:"required"`
	PaymentRef string `json:"payment_ref" binding:"required"`
	Signature  string `json:"signature" binding:"required"`
}

// ConfirmPayment 校验支付签名并确认订单
func (h *Handler) ConfirmPayment(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}

	var req ConfirmPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "invalid request", err)
		return
	}

	order, err := h.PaymentService.ConfirmPayment(c.Request.Context(), service.ConfirmPaymentInput{
		UserID:     uid,
		OrderRef:   req.OrderRef,
		PaymentRef: req.PaymentRef,
		Signature:  req.Signature,
	})
	if err != nil {
		respondServiceError(c, err, "payment confirm failed")
		return
	}
	response.Success(c, order)
}
