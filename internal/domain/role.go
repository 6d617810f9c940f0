package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Role is the platform role of an authenticated user.
type Role string

const (
	RoleStudent    Role = "student"
	RoleInstructor Role = "instructor"
	RoleParent     Role = "parent"
	RoleAdmin      Role = "admin"
)

// ErrUnknownRole is returned by ParseRole for values outside the enum.
var ErrUnknownRole = errors.New("unknown role")

// Roles lists every valid role.
func Roles() []Role {
	return []Role{RoleStudent, RoleInstructor, RoleParent, RoleAdmin}
}

// ParseRole converts s (case-insensitive, surrounding spaces ignored) into a
// Role. Unknown values are rejected instead of defaulting to student.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	switch r {
	case RoleStudent, RoleInstructor, RoleParent, RoleAdmin:
		return r, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
}

// Column widths of identity and title fields, in characters.
const (
	MaxIDLen       = 64
	MaxUserNameLen = 255
	MaxTitleLen    = 255
)

// Actor is the identity on whose behalf an operation runs. It is passed
// explicitly into every service call.
type Actor struct {
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
	Role     Role   `json:"role"`
}

// IsInstructor reports whether the actor holds the instructor role.
func (a Actor) IsInstructor() bool { return a.Role == RoleInstructor }
