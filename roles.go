package auth

// UserRole is a closed role enum. It is a defined type so handing an
// arbitrary string to an authorization check is a compile error; use
// ParseRole at trust boundaries.
type UserRole string

const (
	// RoleUser is the default role assigned at registration
	RoleUser UserRole = "USER"
	// RoleAdmin can manage users and checkpoints
	RoleAdmin UserRole = "ADMIN"
	// RoleSuperAdmin can additionally change other users' roles
	RoleSuperAdmin UserRole = "SUPER_ADMIN"
)

// IsValid checks if the role is one of the predefined valid roles
func IsValidRole(r UserRole) bool {
	switch r {
	case RoleUser, RoleAdmin, RoleSuperAdmin:
		return true
	default:
		return false
	}
}

// IsAdminRole reports whether the role satisfies "admin access required"
// checks. Both ADMIN and SUPER_ADMIN qualify.
func IsAdminRole(r UserRole) bool {
	switch r {
	case RoleAdmin, RoleSuperAdmin:
		return true
	default:
		return false
	}
}

// RoleIsAtLeast checks if a role meets the minimum required level
func RoleIsAtLeast(r, minRole UserRole) bool {
	roleHierarchy := map[UserRole]int{
		RoleUser:       0,
		RoleAdmin:      1,
		RoleSuperAdmin: 2,
	}

	currentLevel, exists := roleHierarchy[r]
	if !exists {
		return false
	}

	minLevel, exists := roleHierarchy[minRole]
	if !exists {
		return false
	}

	return currentLevel >= minLevel
}

// GetAllRoles returns all predefined roles in hierarchical order
func GetAllRoles() []UserRole {
	return []UserRole{
		RoleUser,
		RoleAdmin,
		RoleSuperAdmin,
	}
}

// ParseRole safely parses a string into a UserRole type
func ParseRole(roleStr string) (UserRole, bool) {
	role := UserRole(roleStr)
	return role, IsValidRole(role)
}
