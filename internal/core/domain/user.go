package domain

type UserID string

// Role is the platform role carried by a decoded identity token.
type Role string

const (
	RoleClient  Role = "client"
	RoleDriver  Role = "driver"
	RoleSupport Role = "support_agent"
	RoleAdmin   Role = "admin"
)

// Valid reports whether the role is one of the platform roles.
func (r Role) Valid() bool {
	switch r {
	case RoleClient, RoleDriver, RoleSupport, RoleAdmin:
		return true
	}
	return false
}

// Identity is a decoded bearer token: who is acting and with what role.
type Identity struct {
	UserID UserID
	Role   Role
}

// IsStaff reports whether the identity may act on bookings it does not own.
func (i Identity) IsStaff() bool {
	return i.Role == RoleAdmin || i.Role == RoleSupport
}
