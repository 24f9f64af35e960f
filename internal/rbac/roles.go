package rbac

// Role names. Keep these stable; they are embedded in issued tokens.
const (
	RoleMember   = "member"
	RoleListener = "listener"
	RoleAdmin    = "admin"
	RoleSupport  = "support" // hidden role
)

func IsAdmin(role string) bool { return role == RoleAdmin }

func IsHiddenRole(role string) bool { return role == RoleSupport }

// Known reports whether role may appear in a token.
func Known(role string) bool {
	switch role {
	case RoleMember, RoleListener, RoleAdmin, RoleSupport:
		return true
	default:
		return false
	}
}
