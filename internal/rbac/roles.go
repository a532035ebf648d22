package rbac

// Role names. Keep these stable; they are part of auth/RBAC contracts.
const (
	// RoleClient initiates and cancels emergency calls.
	RoleClient = "client"
	// RoleResponder answers calls for the tier(s) it belongs to.
	RoleResponder = "responder"
	// RoleSupervisor may force-escalate a call and read its history.
	RoleSupervisor = "supervisor"
	// RoleSuperAdmin bypasses all role checks.
	RoleSuperAdmin = "super_admin"
)

func IsSuperAdmin(role string) bool { return role == RoleSuperAdmin }
