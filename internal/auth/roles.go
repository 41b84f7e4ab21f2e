package auth

import "github.com/betpoints/platform/internal/policy"

// Admin role constants.
const (
	RoleViewer     = "viewer"
	RoleAdmin      = "admin"
	RoleSuperAdmin = "superadmin"
)

// RoleUnlimited on a player token lifts wagering limits, for house and
// test accounts.
const RoleUnlimited = policy.RoleUnlimited

// AllAdminRoles returns all valid admin roles.
func AllAdminRoles() []string {
	return []string{RoleViewer, RoleAdmin, RoleSuperAdmin}
}

// WriteRoles returns roles that can trigger settlement or change match state.
func WriteRoles() []string {
	return []string{RoleAdmin, RoleSuperAdmin}
}
