package model

import (
	"fmt"
	"time"
)

// Role is a capability tag assignable to an identity. The set is closed.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleCustomer Role = "customer"
)

// Roles lists every known role in a stable order.
var Roles = []Role{RoleAdmin, RoleCustomer}

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// IsValid checks whether the role is a known value.
func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleCustomer:
		return true
	}
	return false
}

// ParseRole converts s into a Role, rejecting anything outside the enumeration.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.IsValid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

// RoleAssignment grants Role to the identity UserID.
type RoleAssignment struct {
	UserID    string    `json:"user_id"`
	Role      Role      `json:"role"`
	Email     string    `json:"email,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
