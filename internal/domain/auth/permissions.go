package auth

import "context"

const (
	RoleAdmin          = "admin"
	RolePayrollOfficer = "payroll_officer"
	RoleViewer         = "viewer"
)

const (
	PermPayrollRead     = "payroll.read"
	PermPayrollWrite    = "payroll.write"
	PermPayrollPay      = "payroll.pay"
	PermPayrollSettings = "payroll.settings"
	PermAuditRead       = "audit.read"
)

var DefaultPermissions = []string{
	PermPayrollRead,
	PermPayrollWrite,
	PermPayrollPay,
	PermPayrollSettings,
	PermAuditRead,
}

var RolePermissions = map[string][]string{
	RoleViewer: {
		PermPayrollRead,
	},
	RolePayrollOfficer: {
		PermPayrollRead,
		PermPayrollWrite,
		PermPayrollPay,
	},
	RoleAdmin: {
		PermPayrollRead,
		PermPayrollWrite,
		PermPayrollPay,
		PermPayrollSettings,
		PermAuditRead,
	},
}

// StaticPermissions resolves permissions from RolePermissions.
type StaticPermissions struct {
	grants map[string]map[string]struct{}
}

func NewStaticPermissions() *StaticPermissions {
	grants := make(map[string]map[string]struct{}, len(RolePermissions))
	for role, perms := range RolePermissions {
		set := make(map[string]struct{}, len(perms))
		for _, perm := range perms {
			set[perm] = struct{}{}
		}
		grants[role] = set
	}
	return &StaticPermissions{grants: grants}
}

func (p *StaticPermissions) HasPermission(_ context.Context, role, permission string) (bool, error) {
	_, ok := p.grants[role][permission]
	return ok, nil
}
