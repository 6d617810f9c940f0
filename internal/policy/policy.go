// Package policy decides whether an actor may perform an action on a
// discussion. Decisions are pure: no I/O, no clock, no globals.
package policy

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tbourn/lecture-discussions/internal/domain"
)

// ErrForbidden is returned for every denied decision.
var ErrForbidden = errors.New("forbidden")

// Action enumerates the operations guarded by the policy.
type Action string

const (
	ActionCreate     Action = "create"
	ActionReply      Action = "reply"
	ActionLike       Action = "like"
	ActionPin        Action = "pin"
	ActionResolve    Action = "resolve"
	ActionFlag       Action = "flag"
	ActionDelete     Action = "delete"
	ActionViewCourse Action = "view_course"
)

// FlagMode selects who may toggle the flagged state.
type FlagMode string

const (
	// FlagOpen lets any authenticated participant flag or unflag.
	FlagOpen FlagMode = "open"
	// FlagInstructor restricts flag toggling to instructors.
	FlagInstructor FlagMode = "instructor"
)

// ParseFlagMode accepts "open" or "instructor" (case-insensitive).
func ParseFlagMode(s string) (FlagMode, error) {
	switch m := FlagMode(strings.ToLower(strings.TrimSpace(s))); m {
	case FlagOpen, FlagInstructor:
		return m, nil
	}
	return "", fmt.Errorf("invalid flag policy %q (want open|instructor)", s)
}

// Policy holds the only configurable rule. The zero value restricts
// flagging to instructors.
type Policy struct {
	Flag FlagMode
}

// Authorize returns nil when actor may perform action on d, ErrForbidden
// otherwise. d may be nil for actions that do not target a discussion
// (create, view_course).
func (p Policy) Authorize(action Action, actor domain.Actor, d *domain.Discussion) error {
	if p.allowed(action, actor, d) {
		return nil
	}
	return ErrForbidden
}

func (p Policy) allowed(action Action, actor domain.Actor, d *domain.Discussion) bool {
	if !knownRole(actor.Role) || actor.UserID == "" {
		return false
	}
	switch action {
	case ActionCreate, ActionReply, ActionLike:
		return true
	case ActionPin, ActionDelete, ActionViewCourse:
		return actor.IsInstructor()
	case ActionResolve:
		if actor.IsInstructor() {
			return true
		}
		return d != nil && d.AuthorID == actor.UserID
	case ActionFlag:
		if p.Flag == FlagOpen {
			return true
		}
		return actor.IsInstructor()
	}
	return false
}

func knownRole(r domain.Role) bool {
	switch r {
	case domain.RoleStudent, domain.RoleInstructor, domain.RoleParent, domain.RoleAdmin:
		return true
	}
	return false
}
