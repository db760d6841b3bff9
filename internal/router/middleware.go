package router

import (
	"errors"
	"strings"
	"time"

	"github.com/dujiao-next/settlement/internal/authz"
	"github.com/dujiao-next/settlement/internal/config"
	"github.com/dujiao-next/settlement/internal/constants"
	"github.com/dujiao-next/settlement/internal/http/response"
	"github.com/dujiao-next/settlement/internal/logger"
	"github.com/dujiao-next/settlement/internal/service"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const requestIDHeader = "X-Request-ID"
const adminIsSuperContextKey = "admin_is_super"

const (
	msgUnauthorized     = "unauthorized"
	msgForbidden        = "forbidden"
	msgJWTSecretMissing = "jwt secret not configured"
	msgAuthHeaderMiss   = "authorization header missing"
	msgAuthHeaderBad    = "authorization header invalid"
	msgTokenInvalid     = "token invalid"
	msgUserDisabled     = "user disabled"
)

var defaultCORSHeaders = []string{
	"Content-Type",
	"Content-Length",
	"Accept-Encoding",
	"Authorization",
	"Cache-Control",
	"X-Requested-With",
	requestIDHeader,
}

// buildCORSConfig 配置中的 "*" 在允许凭据时改为回显来源，无效来源被忽略
func buildCORSConfig(cfg config.CORSConfig) cors.Config {
	out := cors.Config{
		AllowMethods:     cfg.AllowedMethods,
		AllowHeaders:     cfg.AllowedHeaders,
		ExposeHeaders:    []string{requestIDHeader, "Retry-After"},
		AllowCredentials: cfg.AllowCredentials,
		MaxAge:           time.Duration(cfg.MaxAge) * time.Second,
	}
	if len(out.AllowMethods) == 0 {
		out.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	}
	if len(out.AllowHeaders) == 0 {
		out.AllowHeaders = defaultCORSHeaders
	}

	wildcard := len(cfg.AllowedOrigins) == 0
	for _, origin := range cfg.AllowedOrigins {
		origin = strings.TrimSpace(origin)
		switch {
		case origin == "*":
			wildcard = true
		case strings.HasPrefix(origin, "http://") || strings.HasPrefix(origin, "https://"):
			out.AllowOrigins = append(out.AllowOrigins, origin)
		default:
			logger.Warnw("cors_origin_ignored", "origin", origin)
		}
	}
	if wildcard {
		out.AllowOrigins = nil
		if cfg.AllowCredentials {
			out.AllowOriginFunc = func(string) bool { return true }
		} else {
			out.AllowAllOrigins = true
		}
	} else if len(out.AllowOrigins) == 0 {
		out.AllowOriginFunc = func(string) bool { return false }
	}
	return out
}

// CORSMiddleware 跨域中间件
func CORSMiddleware(cfg config.CORSConfig) gin.HandlerFunc {
	return cors.New(buildCORSConfig(cfg))
}

// RequestIDMiddleware 请求 ID 中间件
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set(response.RequestIDKey, requestID)
		c.Writer.Header().Set(requestIDHeader, requestID)
		c.Next()
	}
}

// LoggerMiddleware 结构化请求日志中间件
func LoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.L()
	}
	sugar := logger.Sugar()
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log := sugar.With(
			response.RequestIDKey, response.RequestID(c),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
		)
		if len(c.Errors) > 0 {
			log.Errorw("request", "errors", c.Errors.String())
			return
		}
		log.Infow("request")
	}
}

func abortUnauthorized(c *gin.Context, msg string) {
	response.Unauthorized(c, msg)
	c.Abort()
}

func abortForbidden(c *gin.Context, msg string) {
	response.Forbidden(c, msg)
	c.Abort()
}

// bearerToken 解析 Authorization 头，失败时直接写入响应
func bearerToken(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		abortUnauthorized(c, msgAuthHeaderMiss)
		return "", false
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if !(len(parts) == 2 && parts[0] == "Bearer") || strings.TrimSpace(parts[1]) == "" {
		abortUnauthorized(c, msgAuthHeaderBad)
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}

// tokenFailure 将令牌解析错误转换为提示
func tokenFailure(err error) string {
	if errors.Is(err, service.ErrJWTSecretMissing) {
		return msgJWTSecretMissing
	}
	return msgTokenInvalid
}

// JWTAuthMiddleware 管理员 JWT 鉴权，管理员须仍然存在
func JWTAuthMiddleware(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if authService == nil {
			abortUnauthorized(c, msgJWTSecretMissing)
			return
		}
		tokenString, ok := bearerToken(c)
		if !ok {
			return
		}
		claims, err := authService.ParseJWT(tokenString)
		if err != nil {
			abortUnauthorized(c, tokenFailure(err))
			return
		}
		admin, err := authService.GetAdmin(claims.AdminID)
		if err != nil {
			abortUnauthorized(c, msgTokenInvalid)
			return
		}

		c.Set("admin_id", admin.ID)
		c.Set("username", admin.Username)
		c.Set(adminIsSuperContextKey, admin.IsSuper)
		c.Next()
	}
}

// AdminRBACMiddleware 管理端 RBAC 鉴权中间件，超级管理员直接放行
func AdminRBACMiddleware(authzService *authz.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if authzService == nil {
			logger.Errorw("admin_rbac_service_unavailable")
			abortUnauthorized(c, msgUnauthorized)
			return
		}

		if isSuper, ok := c.Get(adminIsSuperContextKey); ok {
			if superValue, typeOK := isSuper.(bool); typeOK && superValue {
				c.Next()
				return
			}
		}

		adminIDRaw, exists := c.Get("admin_id")
		if !exists {
			abortUnauthorized(c, msgUnauthorized)
			return
		}
		adminID, _ := adminIDRaw.(uint)
		if adminID == 0 {
			abortUnauthorized(c, msgUnauthorized)
			return
		}

		resource := c.FullPath()
		if strings.TrimSpace(resource) == "" {
			resource = c.Request.URL.Path
		}

		allowed, err := authzService.EnforceAdmin(adminID, resource, c.Request.Method)
		if err != nil {
			logger.Errorw("admin_rbac_enforce_failed",
				"admin_id", adminID,
				"method", c.Request.Method,
				"path", c.Request.URL.Path,
				"error", err,
			)
			abortUnauthorized(c, msgUnauthorized)
			return
		}
		if !allowed {
			logger.Warnw("admin_rbac_permission_denied",
				"admin_id", adminID,
				"method", c.Request.Method,
				"path", c.Request.URL.Path,
				"resource", authz.NormalizeObject(resource),
			)
			abortForbidden(c, msgForbidden)
			return
		}

		c.Next()
	}
}

// UserJWTAuthMiddleware 用户 JWT 鉴权，账号状态优先读取缓存
func UserJWTAuthMiddleware(userAuth *service.UserAuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if userAuth == nil {
			abortUnauthorized(c, msgJWTSecretMissing)
			return
		}
		tokenString, ok := bearerToken(c)
		if !ok {
			return
		}
		claims, err := userAuth.ParseUserJWT(tokenString)
		if err != nil {
			abortUnauthorized(c, tokenFailure(err))
			return
		}
		state, err := userAuth.ResolveUserAuthState(c.Request.Context(), claims.UserID)
		if err != nil || state == nil {
			abortUnauthorized(c, msgTokenInvalid)
			return
		}
		if !isActiveUserStatus(state.Status) {
			abortUnauthorized(c, msgUserDisabled)
			return
		}

		c.Set("user_id", claims.UserID)
		c.Set("user_email", claims.Email)
		c.Next()
	}
}

func isActiveUserStatus(status string) bool {
	return strings.ToLower(strings.TrimSpace(status)) == constants.UserStatusActive
}
