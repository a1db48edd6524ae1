package authz

import (
	"fmt"

	"github.com/mealdash-next/internal/constants"
)

const viewerRole = "viewer"

// RoleSeed 预置角色定义
type RoleSeed struct {
	Role     string
	Inherits []string
	Policies []Policy
}

// BuiltinRoleSeeds 系统预置角色矩阵：店长全权，调度、后厨、财务按职责授权
func BuiltinRoleSeeds() []RoleSeed {
	return []RoleSeed{
		{
			Role: viewerRole,
			Policies: []Policy{
				{Object: "/admin/me", Action: "GET"},
				{Object: "/admin/orders", Action: "GET"},
				{Object: "/admin/orders/:id", Action: "GET"},
				{Object: "/admin/kitchen/state", Action: "GET"},
			},
		},
		{
			Role:     constants.RoleManager,
			Inherits: []string{viewerRole},
			Policies: []Policy{
				{Object: "/admin/*", Action: "*"},
			},
		},
		{
			Role:     constants.RoleKitchen,
			Inherits: []string{viewerRole},
			Policies: []Policy{
				{Object: "/admin/orders/:id/status", Action: "PATCH"},
				{Object: "/admin/kitchen/state", Action: "PUT"},
				{Object: "/admin/print-jobs", Action: "GET"},
				{Object: "/admin/print-jobs/:id/retry", Action: "POST"},
			},
		},
		{
			Role:     constants.RoleDispatcher,
			Inherits: []string{viewerRole},
			Policies: []Policy{
				{Object: "/admin/orders/:id/assign", Action: "POST"},
				{Object: "/admin/orders/:id/assignments", Action: "GET"},
				{Object: "/admin/couriers", Action: "*"},
				{Object: "/admin/couriers/:id/location", Action: "PUT"},
				{Object: "/admin/couriers/:id/status", Action: "PUT"},
				{Object: "/admin/assignments/:id/status", Action: "PATCH"},
			},
		},
		{
			Role:     constants.RoleFinance,
			Inherits: []string{viewerRole},
			Policies: []Policy{
				{Object: "/admin/orders/:id/payments", Action: "GET"},
				{Object: "/admin/orders/:id/confirm-cod", Action: "POST"},
				{Object: "/admin/promo-codes", Action: "*"},
				{Object: "/admin/referrers", Action: "*"},
				{Object: "/admin/reports/*", Action: "GET"},
				{Object: "/admin/attributions/:phone", Action: "GET"},
			},
		},
	}
}

// BootstrapBuiltinRoles 幂等写入预置角色、继承关系与策略
func (s *Service) BootstrapBuiltinRoles() error {
	if s == nil || s.enforcer == nil {
		return ErrUnavailable
	}
	for _, seed := range BuiltinRoleSeeds() {
		role, err := s.EnsureRole(seed.Role)
		if err != nil {
			return fmt.Errorf("create builtin role %s failed: %w", seed.Role, err)
		}
		for _, parent := range seed.Inherits {
			parentRole, err := NormalizeRole(parent)
			if err != nil {
				return err
			}
			if _, err := s.enforcer.AddNamedGroupingPolicy("g", role, parentRole); err != nil {
				return fmt.Errorf("link role inheritance failed: %w", err)
			}
		}
		for _, policy := range seed.Policies {
			if err := s.GrantRolePolicy(role, policy.Object, policy.Action); err != nil {
				return fmt.Errorf("add builtin policy failed: %w", err)
			}
		}
	}
	return nil
}
