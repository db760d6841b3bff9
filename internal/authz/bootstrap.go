package authz

import "fmt"

// 预置角色名称
const (
	RoleAuditor            = "settlement_auditor"
	RoleSettlementOperator = "settlement_operator"
	RoleCommissionManager  = "commission_manager"
	RoleFulfillment        = "fulfillment"
	RoleCatalogManager     = "catalog_manager"
)

// RoleSeed 预置角色定义
type RoleSeed struct {
	Role     string
	Inherits []string
	Policies []Policy
}

// BuiltinRoleSeeds 结算管理端预置角色
func BuiltinRoleSeeds() []RoleSeed {
	return []RoleSeed{
		{
			Role: RoleAuditor,
			Policies: []Policy{
				{Object: "/admin/*", Action: "GET"},
			},
		},
		{
			Role:     RoleSettlementOperator,
			Inherits: []string{RoleAuditor},
			Policies: []Policy{
				{Object: "/admin/settlements/:order_id/replay", Action: "POST"},
				{Object: "/admin/users/:id/rank/evaluate", Action: "POST"},
			},
		},
		{
			Role:     RoleCommissionManager,
			Inherits: []string{RoleAuditor},
			Policies: []Policy{
				{Object: "/admin/commission-settings", Action: "PUT"},
			},
		},
		{
			Role:     RoleFulfillment,
			Inherits: []string{RoleAuditor},
			Policies: []Policy{
				{Object: "/admin/orders/:id/ship", Action: "POST"},
				{Object: "/admin/orders/:id/deliver", Action: "POST"},
			},
		},
		{
			Role:     RoleCatalogManager,
			Inherits: []string{RoleAuditor},
			Policies: []Policy{
				{Object: "/admin/products", Action: "POST"},
			},
		},
	}
}

// BootstrapBuiltinRoles 初始化预置角色与默认策略（幂等）
func (s *Service) BootstrapBuiltinRoles() error {
	if err := s.ready(); err != nil {
		return err
	}
	for _, seed := range BuiltinRoleSeeds() {
		role, err := s.EnsureRole(seed.Role)
		if err != nil {
			return err
		}
		for _, parent := range seed.Inherits {
			parentRole, err := s.EnsureRole(parent)
			if err != nil {
				return err
			}
			if _, err := s.enforcer.AddNamedGroupingPolicy("g", role, parentRole); err != nil {
				return fmt.Errorf("link role inheritance failed: %w", err)
			}
		}
		for _, policy := range seed.Policies {
			action := NormalizeAction(policy.Action)
			if action == "" {
				return fmt.Errorf("builtin policy action is required")
			}
			if _, err := s.enforcer.AddPolicy(role, NormalizeObject(policy.Object), action); err != nil {
				return fmt.Errorf("add builtin policy failed: %w", err)
			}
		}
	}
	return nil
}
