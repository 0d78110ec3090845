package domain

import (
	"time"

	"github.com/google/uuid"
)

// Role is the kind of principal holding an auth session.
type Role string

const (
	RoleNone    Role = "none"
	RoleStudent Role = "student"
	RoleStaff   Role = "staff"
)

// Valid reports whether r is a role that can be persisted.
func (r Role) Valid() bool {
	return r == RoleStudent || r == RoleStaff
}

// Student is a learner profile issued by the directory service.
type Student struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Grade     int       `json:"grade"`
	ClassID   string    `json:"class_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Educator is a staff profile issued by the directory service.
type Educator struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	ClassIDs  []string  `json:"class_ids"`
	CreatedAt time.Time `json:"created_at"`
}

// AuthSession is the in-memory authentication state.
// Role != RoleNone iff Token is set, a profile is set and ExpiresAt was in
// the future at the last check.
type AuthSession struct {
	Role      Role      `json:"role"`
	Token     string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
	Student   *Student  `json:"student,omitempty"`
	Educator  *Educator `json:"educator,omitempty"`
}

// Authenticated reports whether the session holds a usable identity.
func (s AuthSession) Authenticated() bool {
	if s.Role == RoleNone || s.Role == "" || s.Token == "" {
		return false
	}
	switch s.Role {
	case RoleStudent:
		return s.Student != nil
	case RoleStaff:
		return s.Educator != nil
	}
	return false
}

// DisplayName returns the profile name, or "" when unauthenticated.
func (s AuthSession) DisplayName() string {
	switch {
	case s.Student != nil:
		return s.Student.Name
	case s.Educator != nil:
		return s.Educator.Name
	}
	return ""
}

// IsCanonicalID reports whether id is an RFC 4122 UUID (versions 1-5) in
// canonical hyphenated form, the only shape the session ledger accepts.
func IsCanonicalID(id string) bool {
	if len(id) != 36 {
		return false
	}
	u, err := uuid.Parse(id)
	if err != nil {
		return false
	}
	if u.Variant() != uuid.RFC4122 {
		return false
	}
	v := u.Version()
	return v >= 1 && v <= 5
}
