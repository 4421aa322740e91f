package model

// Role is the closed set of administrative roles. The role is embedded in
// issued tokens and drives per-route authorization.
type Role string

const (
	RoleEditor     Role = "editor"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super_admin"
)

// AllRoles lists every valid role, lowest privilege first.
var AllRoles = []Role{RoleEditor, RoleAdmin, RoleSuperAdmin}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleEditor, RoleAdmin, RoleSuperAdmin:
		return true
	}
	return false
}

// In reports whether r is contained in allowed.
func (r Role) In(allowed ...Role) bool {
	for _, a := range allowed {
		if r == a {
			return true
		}
	}
	return false
}
