package types

import "github.com/m-mizutani/goerr/v2"

// Role is a capability an actor holds relative to a case
type Role string

const (
	// RoleAssignee is held by the actor currently assigned to the case
	RoleAssignee Role = "assignee"
	// RoleAdmin is held by actors listed as tenant admins
	RoleAdmin Role = "admin"
)

// Validate checks if the role is known
func (r Role) Validate() error {
	switch r {
	case RoleAssignee, RoleAdmin:
		return nil
	default:
		return goerr.New("unknown role", goerr.V("role", r))
	}
}

// String returns the string representation of the role
func (r Role) String() string {
	return string(r)
}
