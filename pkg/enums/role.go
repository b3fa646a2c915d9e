package enums

import "strings"

// Role is the actor role carried in access tokens.
type Role string

const (
	RoleOwner Role = "owner"
	RoleAdmin Role = "admin"
)

var roles = set[Role]{RoleOwner, RoleAdmin}

func (r Role) String() string { return string(r) }

func (r Role) IsValid() bool { return roles.has(r) }

// ParseRole ignores case and surrounding space.
func ParseRole(value string) (Role, error) {
	return roles.parse("role", strings.ToLower(strings.TrimSpace(value)))
}
