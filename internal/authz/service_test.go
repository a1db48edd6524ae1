package authz

import (
	"fmt"
	"strings"
	"testing"

	"github.com/mealdash-next/internal/constants"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func setupAuthzServiceTest(t *testing.T) *Service {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	svc, err := NewService(db)
	if err != nil {
		t.Fatalf("new authz service failed: %v", err)
	}
	if err := svc.BootstrapBuiltinRoles(); err != nil {
		t.Fatalf("bootstrap builtin roles failed: %v", err)
	}
	return svc
}

func mustEnforce(t *testing.T, svc *Service, adminID uint, obj, act string) bool {
	t.Helper()
	allow, err := svc.EnforceAdmin(adminID, obj, act)
	if err != nil {
		t.Fatalf("enforce %s %s failed: %v", act, obj, err)
	}
	return allow
}

func TestBuiltinRoleMatrix(t *testing.T) {
	svc := setupAuthzServiceTest(t)
	admins := map[string]uint{
		constants.RoleManager:    1,
		constants.RoleKitchen:    2,
		constants.RoleDispatcher: 3,
		constants.RoleFinance:    4,
	}
	for role, id := range admins {
		if err := svc.AssignBuiltinRole(id, role); err != nil {
			t.Fatalf("assign %s failed: %v", role, err)
		}
	}

	cases := []struct {
		role  string
		obj   string
		act   string
		allow bool
	}{
		{constants.RoleManager, "/api/v1/admin/settings/capacity", "PUT", true},
		{constants.RoleManager, "/api/v1/admin/admins", "POST", true},
		{constants.RoleKitchen, "/api/v1/admin/orders/12", "GET", true},
		{constants.RoleKitchen, "/api/v1/admin/orders/12/status", "patch", true},
		{constants.RoleKitchen, "/api/v1/admin/kitchen/state", "PUT", true},
		{constants.RoleKitchen, "/api/v1/admin/print-jobs/9/retry", "POST", true},
		{constants.RoleKitchen, "/api/v1/admin/orders/12/assign", "POST", false},
		{constants.RoleKitchen, "/api/v1/admin/reports/commissions", "GET", false},
		{constants.RoleDispatcher, "/api/v1/admin/orders/12/assign", "POST", true},
		{constants.RoleDispatcher, "/api/v1/admin/couriers", "POST", true},
		{constants.RoleDispatcher, "/api/v1/admin/assignments/5/status", "PATCH", true},
		{constants.RoleDispatcher, "/api/v1/admin/kitchen/state", "PUT", false},
		{constants.RoleFinance, "/api/v1/admin/reports/commissions/export", "GET", true},
		{constants.RoleFinance, "/api/v1/admin/orders/12/confirm-cod", "POST", true},
		{constants.RoleFinance, "/api/v1/admin/attributions/+2348031234567", "GET", true},
		{constants.RoleFinance, "/api/v1/admin/orders/12/status", "PATCH", false},
		{constants.RoleFinance, "/api/v1/admin/settings/capacity", "PUT", false},
	}
	for _, tc := range cases {
		if got := mustEnforce(t, svc, admins[tc.role], tc.obj, tc.act); got != tc.allow {
			t.Fatalf("%s %s %s: expected allow=%v, got %v", tc.role, tc.act, tc.obj, tc.allow, got)
		}
	}
}

func TestAssignBuiltinRoleOverrides(t *testing.T) {
	svc := setupAuthzServiceTest(t)
	if err := svc.AssignBuiltinRole(7, constants.RoleKitchen); err != nil {
		t.Fatalf("assign kitchen failed: %v", err)
	}
	if err := svc.AssignBuiltinRole(7, " Finance "); err != nil {
		t.Fatalf("assign finance failed: %v", err)
	}
	roles, err := svc.GetAdminRoles(7)
	if err != nil {
		t.Fatalf("get roles failed: %v", err)
	}
	if len(roles) != 1 || roles[0] != "role:finance" {
		t.Fatalf("expected only finance role, got %v", roles)
	}
	if mustEnforce(t, svc, 7, "/admin/kitchen/state", "PUT") {
		t.Fatalf("expected previous kitchen permission removed")
	}
	if err := svc.AssignBuiltinRole(7, "viewer"); err == nil {
		t.Fatalf("expected base role not assignable")
	}
	if err := svc.AssignBuiltinRole(7, "pirate"); err == nil {
		t.Fatalf("expected unknown role rejected")
	}
}

func TestBootstrapIsIdempotent(t *testing.T) {
	svc := setupAuthzServiceTest(t)
	if err := svc.BootstrapBuiltinRoles(); err != nil {
		t.Fatalf("second bootstrap failed: %v", err)
	}
	roles, err := svc.ListRoles()
	if err != nil {
		t.Fatalf("list roles failed: %v", err)
	}
	want := []string{"role:dispatcher", "role:finance", "role:kitchen", "role:manager", "role:viewer"}
	if strings.Join(roles, ",") != strings.Join(want, ",") {
		t.Fatalf("expected roles %v, got %v", want, roles)
	}
}

func TestNormalizeObject(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{in: "/api/v1/admin/orders/:id", want: "/admin/orders/:id"},
		{in: "admin/orders", want: "/admin/orders"},
		{in: "/api/v1", want: "/"},
		{in: "", want: "/"},
	}
	for _, item := range cases {
		if got := NormalizeObject(item.in); got != item.want {
			t.Fatalf("normalize object failed, in=%q want=%q got=%q", item.in, item.want, got)
		}
	}
}
