// Package policy centralizes role-based authorization.
package policy

import (
	"errors"
	"fmt"
	"slices"

	"github.com/okian/stomp/internal/domain/model"
)

var (
	// ErrUnauthorized means no resolved identity was presented.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden means the identity's role may not perform the operation.
	ErrForbidden = errors.New("forbidden")
)

// Role sets for restricted operations.
var (
	Responders          = []model.Role{model.RoleCoach, model.RoleReferee, model.RoleTeammate}
	EmergencyResolvers  = []model.Role{model.RoleCoach, model.RoleReferee}
	SimulationOperators = []model.Role{model.RoleCoach}
	ReportViewers       = []model.Role{model.RoleCoach, model.RoleReferee}
	NotificationAuthors = []model.Role{model.RoleCoach, model.RoleReferee}
	ReminderAuthors     = []model.Role{model.RoleCoach}
)

// Require returns nil when actual is one of allowed.
func Require(actual model.Role, allowed ...model.Role) error {
	if actual == "" {
		return ErrUnauthorized
	}
	if slices.Contains(allowed, actual) {
		return nil
	}
	return fmt.Errorf("%w: role %q not permitted", ErrForbidden, actual)
}

// RequireActor checks the role of a and that it carries an identity.
func RequireActor(a model.Actor, allowed ...model.Role) error {
	if a.ID == "" {
		return ErrUnauthorized
	}
	return Require(a.Role, allowed...)
}

// RequireSelf allows the operation only for the owner of a resource.
func RequireSelf(a model.Actor, ownerID string) error {
	if a.ID == "" {
		return ErrUnauthorized
	}
	if a.ID != ownerID {
		return fmt.Errorf("%w: not the owner", ErrForbidden)
	}
	return nil
}
