package admin

import (
	"errors"
	"strings"

	"github.com/dujiao-next/settlement/internal/authz"
	handlershared "github.com/dujiao-next/settlement/internal/http/handlers/shared"
	"github.com/dujiao-next/settlement/internal/http/response"
	"github.com/dujiao-next/settlement/internal/logger"

	"github.com/gin-gonic/gin"
)

type authzSetAdminRolesPayload struct {
	Roles []string `json:"roles"`
}

type authzGrantPolicyPayload struct {
	Object string `json:"object" binding:"required"`
	Method string `json:"method" binding:"required"`
}

// GetAuthzMe 获取当前管理员角色与生效权限
func (h *Handler) GetAuthzMe(c *gin.Context) {
	adminID, ok := getAdminID(c)
	if !ok {
		return
	}
	roles, err := h.AuthzService.GetAdminRoles(adminID)
	if err != nil {
		respondError(c, response.CodeInternal, "authz fetch failed", err)
		return
	}
	permissions, err := h.AuthzService.AdminPermissions(adminID)
	if err != nil {
		respondError(c, response.CodeInternal, "authz fetch failed", err)
		return
	}

	isSuper := false
	if value, exists := c.Get("admin_is_super"); exists {
		if flag, typeOK := value.(bool); typeOK {
			isSuper = flag
		}
	}
	response.Success(c, gin.H{
		"admin_id":    adminID,
		"is_super":    isSuper,
		"roles":       roles,
		"permissions": permissions,
	})
}

// ListAuthzRoles 获取角色及其策略
func (h *Handler) ListAuthzRoles(c *gin.Context) {
	roles, err := h.AuthzService.ListRoles()
	if err != nil {
		respondError(c, response.CodeInternal, "authz fetch failed", err)
		return
	}
	items := make([]gin.H, 0, len(roles))
	for _, role := range roles {
		policies, err := h.AuthzService.GetRolePolicies(role)
		if err != nil {
			respondError(c, response.CodeInternal, "authz fetch failed", err)
			return
		}
		items = append(items, gin.H{"role": role, "policies": policies})
	}
	response.Success(c, items)
}

// SetAuthzAdminRoles 设置管理员角色
func (h *Handler) SetAuthzAdminRoles(c *gin.Context) {
	targetID, ok := handlershared.ParamUint(c, "id")
	if !ok {
		return
	}
	target, err := h.AuthService.GetAdmin(targetID)
	if err != nil {
		respondServiceError(c, err, "admin fetch failed")
		return
	}

	var req authzSetAdminRolesPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "invalid request", err)
		return
	}
	if err := h.AuthzService.SetAdminRoles(target.ID, req.Roles); err != nil {
		if errors.Is(err, authz.ErrUnknownRole) {
			respondError(c, response.CodeBadRequest, err.Error(), nil)
			return
		}
		respondError(c, response.CodeBadRequest, "invalid roles", err)
		return
	}

	operatorID, _ := c.Get("admin_id")
	logger.Infow("admin_authz_admin_roles_updated",
		"operator_admin_id", operatorID,
		"target_admin_id", target.ID,
		"roles", req.Roles,
	)
	response.Success(c, nil)
}

// GrantAuthzRolePolicy 为角色追加一条接口权限，角色不存在时自动注册
func (h *Handler) GrantAuthzRolePolicy(c *gin.Context) {
	var req authzGrantPolicyPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "invalid request", err)
		return
	}
	object := authz.NormalizeObject(req.Object)
	if !strings.HasPrefix(object, "/admin/") {
		respondError(c, response.CodeBadRequest, "object must be an admin route", nil)
		return
	}
	role := c.Param("role")
	if err := h.AuthzService.GrantRolePolicy(role, object, req.Method); err != nil {
		respondError(c, response.CodeBadRequest, "grant policy failed", err)
		return
	}
	policies, err := h.AuthzService.GetRolePolicies(role)
	if err != nil {
		respondError(c, response.CodeInternal, "authz fetch failed", err)
		return
	}

	operatorID, _ := getAdminID(c)
	logger.Infow("admin_authz_role_policy_granted",
		"operator_admin_id", operatorID,
		"role", role,
		"object", object,
		"method", req.Method,
	)
	response.Success(c, gin.H{"role": role, "policies": policies})
}
