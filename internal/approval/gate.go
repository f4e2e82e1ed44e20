// Package approval implements the role-gated approval checkpoint for
// high-magnitude parameter changes.
//
// The gate owns no domain state: it grades a change's magnitude into a
// required role, authenticates, and only then invokes the commit action the
// caller supplied. A failed authentication mutates nothing.
package approval

import (
	"fmt"
	"log/slog"

	"github.com/calebmcnary/pharmline/internal/domain"
)

// Role is an authorization level for committing parameter changes.
type Role string

const (
	// RoleNone means the change is small enough to commit without sign-off.
	RoleNone Role = ""

	// RoleSupervisor signs off changes outside the within-tolerance band.
	RoleSupervisor Role = "supervisor"

	// RoleRecipeManager signs off changes outside the SOP tolerance band;
	// stricter than supervisor.
	RoleRecipeManager Role = "recipe_manager"
)

// DisplayName returns the role's human-facing name, used in error messages.
func (r Role) DisplayName() string {
	switch r {
	case RoleSupervisor:
		return "Supervisor"
	case RoleRecipeManager:
		return "Recipe Manager"
	}
	return "Operator"
}

// Credentials is a username/password pair presented at the gate.
type Credentials struct {
	Username string
	Password string
}

// Authorizer validates credentials for a role. The gate is deliberately
// ignorant of where credentials live so a real identity provider can be
// substituted without touching the checkpoint logic.
type Authorizer interface {
	Authorize(role Role, creds Credentials) bool
}

// Magnitude bands, in percent change of the current value.
//
// Changes at or under WithinTolerancePct commit without sign-off; at or under
// OutsideTolerancePct they need a supervisor; beyond that, a recipe manager.
const (
	WithinTolerancePct  = 2.0
	OutsideTolerancePct = 5.0
)

// Gate is the approval checkpoint.
type Gate struct {
	auth Authorizer
	log  *slog.Logger
}

// NewGate builds a gate over the given authorizer.
func NewGate(auth Authorizer, log *slog.Logger) *Gate {
	if log == nil {
		log = slog.Default()
	}
	return &Gate{auth: auth, log: log}
}

// RequiredRole grades a change's magnitude into the role that must sign it
// off.
func (g *Gate) RequiredRole(magnitudePct float64) Role {
	switch {
	case magnitudePct <= WithinTolerancePct:
		return RoleNone
	case magnitudePct <= OutsideTolerancePct:
		return RoleSupervisor
	default:
		return RoleRecipeManager
	}
}

// Commit authenticates the presented credentials for the required role and,
// only on success, invokes the commit action. RoleNone commits immediately.
//
// On authentication failure the action is never invoked and the returned
// error carries the AUTH_FAILURE code.
func (g *Gate) Commit(role Role, creds Credentials, action func() error) error {
	if role != RoleNone && !g.auth.Authorize(role, creds) {
		g.log.Warn("approval rejected", "role", role, "user", creds.Username)
		return &domain.SimError{
			Code:    domain.ErrCodeAuthFailure,
			Message: fmt.Sprintf("Invalid %s credentials", role.DisplayName()),
		}
	}
	if role != RoleNone {
		g.log.Info("approval granted", "role", role, "user", creds.Username)
	}
	return action()
}
