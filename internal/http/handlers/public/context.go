package public

import (
	"github.com/dujiao-next/settlement/internal/provider"

	handlershared "github.com/dujiao-next/settlement/internal/http/handlers/shared"

	"github.com/gin-gonic/gin"
)

// Handler 用户侧处理器：商品、下单、支付确认与收益
type Handler struct {
	*provider.Container
}

func New(c *provider.Container) *Handler {
	return &Handler{Container: c}
}

func getUserID(c *gin.Context) (uint, bool) {
	return handlershared.GetContextUint(c, "user_id")
}

func respondError(c *gin.Context, code int, msg string, err error) {
	handlershared.RespondError(c, code, msg, err)
}

func respondServiceError(c *gin.Context, err error, fallbackMsg string) {
	handlershared.RespondMappedError(c, err, fallbackMsg)
}
