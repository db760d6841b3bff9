package shared

import (
	"errors"

	"github.com/dujiao-next/settlement/internal/http/response"
	"github.com/dujiao-next/settlement/internal/logger"
	"github.com/dujiao-next/settlement/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RequestLog 带请求 ID 的日志实例
func RequestLog(c *gin.Context) *zap.SugaredLogger {
	if id := response.RequestID(c); id != "" {
		return logger.SW(response.RequestIDKey, id)
	}
	return logger.S()
}

// RespondError 输出错误响应，err 非空时记录原始错误
func RespondError(c *gin.Context, code int, msg string, err error) {
	appErr := response.WrapError(code, msg, err)
	if err != nil {
		RequestLog(c).Errorw("handler_error", "code", code, "message", msg, "error", err)
	}
	response.Fail(c, appErr)
}

// MappedError 业务错误到接口错误响应的映射关系。
type MappedError struct {
	Target error
	Code   int
	Msg    string
}

// ServiceErrorRules 结算服务错误映射，按顺序匹配。
var ServiceErrorRules = []MappedError{
	{Target: service.ErrValidation, Code: response.CodeBadRequest, Msg: "invalid request"},
	{Target: service.ErrCommissionSettingInvalid, Code: response.CodeBadRequest, Msg: "commission setting invalid"},
	{Target: service.ErrSettlementStageUnknown, Code: response.CodeBadRequest, Msg: "settlement stage unknown"},
	{Target: service.ErrInvalidSignature, Code: response.CodeBadRequest, Msg: "payment signature invalid"},
	{Target: service.ErrInvalidCredentials, Code: response.CodeUnauthorized, Msg: "invalid credentials"},
	{Target: service.ErrUserDisabled, Code: response.CodeForbidden, Msg: "user disabled"},
	{Target: service.ErrProductNotFound, Code: response.CodeNotFound, Msg: "product not found"},
	{Target: service.ErrOrderNotFound, Code: response.CodeNotFound, Msg: "order not found"},
	{Target: service.ErrUserNotFound, Code: response.CodeNotFound, Msg: "user not found"},
	{Target: service.ErrRankNotFound, Code: response.CodeNotFound, Msg: "rank not found"},
	{Target: service.ErrAdminNotFound, Code: response.CodeNotFound, Msg: "admin not found"},
	{Target: service.ErrSettlementTaskNotFound, Code: response.CodeNotFound, Msg: "settlement task not found"},
	{Target: service.ErrProductUnavailable, Code: response.CodeConflict, Msg: "product unavailable"},
	{Target: service.ErrOutOfStock, Code: response.CodeConflict, Msg: "out of stock"},
	{Target: service.ErrInvalidOrderState, Code: response.CodeConflict, Msg: "order state does not allow this operation"},
	{Target: service.ErrPaymentNotVerified, Code: response.CodeUnavailable, Msg: "payment verification unavailable"},
}

// MapServiceError 将业务错误映射为接口错误；错误链中已有 AppError 时直接使用。
func MapServiceError(err error, fallbackMsg string) *response.AppError {
	if appErr, ok := response.AsAppError(err); ok {
		return appErr
	}
	for _, rule := range ServiceErrorRules {
		if errors.Is(err, rule.Target) {
			return response.WrapError(rule.Code, rule.Msg, err)
		}
	}
	return response.WrapError(response.CodeInternal, fallbackMsg, err)
}

// RespondMappedError 按映射规则返回错误，仅对内部错误记录原始错误。
func RespondMappedError(c *gin.Context, err error, fallbackMsg string) {
	appErr := MapServiceError(err, fallbackMsg)
	if appErr.IsInternal() {
		RequestLog(c).Errorw("handler_error", "code", appErr.Code, "message", appErr.Message, "error", err)
	}
	response.Fail(c, appErr)
}
