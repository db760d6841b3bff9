package authz

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func setupAuthzServiceTest(t *testing.T) *Service {
	t.Helper()
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"), time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	svc, err := NewService(db)
	if err != nil {
		t.Fatalf("new authz service failed: %v", err)
	}
	return svc
}

func TestEnforceAdminWithRolePolicy(t *testing.T) {
	svc := setupAuthzServiceTest(t)
	if err := svc.GrantRolePolicy("ops", "/admin/settlements/:order_id/replay", "POST"); err != nil {
		t.Fatalf("grant role policy failed: %v", err)
	}
	if err := svc.SetAdminRoles(1, []string{"ops"}); err != nil {
		t.Fatalf("set admin roles failed: %v", err)
	}

	allow, err := svc.EnforceAdmin(1, "/api/v1/admin/settlements/42/replay", "post")
	if err != nil {
		t.Fatalf("enforce allow failed: %v", err)
	}
	if !allow {
		t.Fatalf("expected allow=true")
	}

	allow, err = svc.EnforceAdmin(1, "/api/v1/admin/commission-settings", "PUT")
	if err != nil {
		t.Fatalf("enforce deny failed: %v", err)
	}
	if allow {
		t.Fatalf("expected allow=false")
	}
}

func TestSetAdminRolesReplacesPrevious(t *testing.T) {
	svc := setupAuthzServiceTest(t)
	if err := svc.GrantRolePolicy("fulfillment", "/admin/orders/:id/ship", "POST"); err != nil {
		t.Fatalf("grant fulfillment failed: %v", err)
	}
	if err := svc.GrantRolePolicy("commission", "/admin/commission-settings", "PUT"); err != nil {
		t.Fatalf("grant commission failed: %v", err)
	}
	if err := svc.SetAdminRoles(2, []string{"fulfillment"}); err != nil {
		t.Fatalf("set roles failed: %v", err)
	}
	if err := svc.SetAdminRoles(2, []string{"commission"}); err != nil {
		t.Fatalf("replace roles failed: %v", err)
	}

	roles, err := svc.GetAdminRoles(2)
	if err != nil {
		t.Fatalf("get roles failed: %v", err)
	}
	if len(roles) != 1 || roles[0] != "role:commission" {
		t.Fatalf("roles want [role:commission], got=%v", roles)
	}

	allow, err := svc.EnforceAdmin(2, "/admin/orders/7/ship", "POST")
	if err != nil {
		t.Fatalf("enforce old role failed: %v", err)
	}
	if allow {
		t.Fatalf("expected old role permission removed")
	}

	allow, err = svc.EnforceAdmin(2, "/admin/commission-settings", "PUT")
	if err != nil {
		t.Fatalf("enforce new role failed: %v", err)
	}
	if !allow {
		t.Fatalf("expected new role permission granted")
	}
}

func TestNormalizeObject(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{in: "/api/v1/admin/orders/:id", want: "/admin/orders/:id"},
		{in: "/admin/orders/:id", want: "/admin/orders/:id"},
		{in: "admin/orders", want: "/admin/orders"},
		{in: "/api/v1", want: "/"},
		{in: "", want: "/"},
	}
	for _, item := range cases {
		got := NormalizeObject(item.in)
		if got != item.want {
			t.Fatalf("normalize object failed, in=%q want=%q got=%q", item.in, item.want, got)
		}
	}
}

func TestNormalizeRoleRejectsEmpty(t *testing.T) {
	if _, err := NormalizeRole("  "); err == nil {
		t.Fatalf("expected empty role rejected")
	}
	got, err := NormalizeRole("settlement operator")
	if err != nil {
		t.Fatalf("normalize role failed: %v", err)
	}
	if got != "role:settlement_operator" {
		t.Fatalf("unexpected role: %s", got)
	}
}

func TestBootstrapBuiltinRoles(t *testing.T) {
	svc := setupAuthzServiceTest(t)
	if err := svc.BootstrapBuiltinRoles(); err != nil {
		t.Fatalf("bootstrap builtin roles failed: %v", err)
	}
	// 重复执行保持幂等
	if err := svc.BootstrapBuiltinRoles(); err != nil {
		t.Fatalf("bootstrap builtin roles again failed: %v", err)
	}

	roles, err := svc.ListRoles()
	if err != nil {
		t.Fatalf("list roles failed: %v", err)
	}
	wantRoles := map[string]bool{
		"role:" + RoleAuditor:            true,
		"role:" + RoleSettlementOperator: true,
		"role:" + RoleCommissionManager:  true,
		"role:" + RoleFulfillment:        true,
		"role:" + RoleCatalogManager:     true,
	}
	for _, role := range roles {
		delete(wantRoles, role)
	}
	if len(wantRoles) != 0 {
		t.Fatalf("builtin roles missing: %v", wantRoles)
	}

	if err := svc.SetAdminRoles(3, []string{RoleSettlementOperator}); err != nil {
		t.Fatalf("set admin roles failed: %v", err)
	}

	allow, err := svc.EnforceAdmin(3, "/admin/settlements/9/tasks", "GET")
	if err != nil {
		t.Fatalf("enforce inherited read failed: %v", err)
	}
	if !allow {
		t.Fatalf("expected inherited read permission")
	}

	allow, err = svc.EnforceAdmin(3, "/admin/settlements/9/replay", "POST")
	if err != nil {
		t.Fatalf("enforce replay failed: %v", err)
	}
	if !allow {
		t.Fatalf("expected replay permission")
	}

	allow, err = svc.EnforceAdmin(3, "/admin/commission-settings", "PUT")
	if err != nil {
		t.Fatalf("enforce settings write failed: %v", err)
	}
	if allow {
		t.Fatalf("expected operator denied settings write")
	}
}

func TestSetAdminRolesRejectsUnknownRole(t *testing.T) {
	svc := setupAuthzServiceTest(t)
	if err := svc.GrantRolePolicy("ops", "/admin/settlements/:order_id/replay", "POST"); err != nil {
		t.Fatalf("grant role policy failed: %v", err)
	}
	if err := svc.SetAdminRoles(5, []string{"ops"}); err != nil {
		t.Fatalf("set admin roles failed: %v", err)
	}

	err := svc.SetAdminRoles(5, []string{"ops", "ghost"})
	if !errors.Is(err, ErrUnknownRole) {
		t.Fatalf("expected unknown role error, got %v", err)
	}
	// 校验失败时不改动已有角色
	roles, err := svc.GetAdminRoles(5)
	if err != nil {
		t.Fatalf("get roles failed: %v", err)
	}
	if len(roles) != 1 || roles[0] != "role:ops" {
		t.Fatalf("roles should stay [role:ops], got %v", roles)
	}
}

func TestAdminPermissionsIncludeInherited(t *testing.T) {
	svc := setupAuthzServiceTest(t)
	if err := svc.BootstrapBuiltinRoles(); err != nil {
		t.Fatalf("bootstrap builtin roles failed: %v", err)
	}
	if err := svc.SetAdminRoles(6, []string{RoleFulfillment}); err != nil {
		t.Fatalf("set admin roles failed: %v", err)
	}

	policies, err := svc.AdminPermissions(6)
	if err != nil {
		t.Fatalf("admin permissions failed: %v", err)
	}
	got := make(map[string]bool, len(policies))
	for _, policy := range policies {
		got[policy.Action+" "+policy.Object] = true
	}
	for _, want := range []string{"GET /admin/*", "POST /admin/orders/:id/ship", "POST /admin/orders/:id/deliver"} {
		if !got[want] {
			t.Fatalf("missing permission %s in %v", want, policies)
		}
	}
	if got["PUT /admin/commission-settings"] {
		t.Fatalf("fulfillment must not inherit commission settings write")
	}
}

func TestUninitializedServiceReportsUnavailable(t *testing.T) {
	var svc *Service
	if _, err := svc.EnforceAdmin(1, "/admin/ranks", "GET"); err == nil {
		t.Fatalf("expected error from nil service")
	}
	if _, err := (&Service{}).ListRoles(); err == nil {
		t.Fatalf("expected error from empty service")
	}
}
