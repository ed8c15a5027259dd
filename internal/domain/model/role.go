// Package model contains domain models passed between layers.
package model

import (
	"errors"
	"fmt"
	"strings"
)

// Role is the capability class of a user or connection.
type Role string

// Known roles.
const (
	RoleAthlete  Role = "athlete"
	RoleCoach    Role = "coach"
	RoleTeammate Role = "teammate"
	RoleReferee  Role = "referee"
)

// ErrUnknownRole is returned by ParseRole for anything outside Roles.
var ErrUnknownRole = errors.New("unknown role")

// Roles lists every known role in a stable order.
func Roles() []Role {
	return []Role{RoleAthlete, RoleCoach, RoleTeammate, RoleReferee}
}

// ParseRole normalizes and validates a role name.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
	}
	return r, nil
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleAthlete, RoleCoach, RoleTeammate, RoleReferee:
		return true
	}
	return false
}

func (r Role) String() string { return string(r) }

// Actor is a resolved (identity, role) pair.
type Actor struct {
	ID   string `json:"user_id"`
	Role Role   `json:"role"`
}
