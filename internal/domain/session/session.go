package session

import (
	"context"
	"fmt"
	"time"

	"school_portal_core/internal/apperr"
	"school_portal_core/internal/domain/sessiontime"
)

// Role of a portal user.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleCoach   Role = "coach"
	RoleParent  Role = "parent"
	RoleStudent Role = "student"
)

// Profile is the part of the user's profile the core reads.
type Profile struct {
	Role        Role
	Timezone    string
	Locale      string
	DisplayName string
	Email       string
}

// Session is resolved by the authentication collaborator before any core
// operation runs.
type Session struct {
	UserID  string
	Profile Profile
}

// Authenticator is the external session/role collaborator.
type Authenticator interface {
	RequireRole(ctx context.Context, allowed ...Role) (Session, error)
}

// Require returns an Unauthorized error unless the session holds one of the
// allowed roles.
func (s Session) Require(allowed ...Role) error {
	if s.UserID == "" {
		return apperr.Unauthorized("no active session")
	}
	for _, r := range allowed {
		if s.Profile.Role == r {
			return nil
		}
	}
	return apperr.Unauthorized(fmt.Sprintf("role %q is not allowed", s.Profile.Role))
}

// Location is the viewer's zone, or fallback when the stored zone is not a
// valid IANA identifier.
func (s Session) Location(fallback *time.Location) *time.Location {
	return sessiontime.ZoneOrDefault(s.Profile.Timezone, fallback)
}
