package core

import (
	"errors"
	"strings"
	"time"
)

// UserID uniquely identifies a user in the bloomfeed domain.
type UserID string

// ErrProfileNotFound is returned by storage lookups for unknown users.
var ErrProfileNotFound = errors.New("profile not found")

// Profile is the per-user record consulted when emitting activities.
// A user without a display name never appears in the feed.
type Profile struct {
	UserID       UserID    `json:"user_id"`
	DisplayName  string    `json:"display_name"`
	PushEndpoint string    `json:"push_endpoint,omitempty"`
	Updated      time.Time `json:"updated"`
}

// HasDisplayName reports whether the profile carries a usable display name.
func (p Profile) HasDisplayName() bool {
	return strings.TrimSpace(p.DisplayName) != ""
}

// NormalizeUserID trims and lowercases user identifiers.
func NormalizeUserID(id UserID) (UserID, error) {
	s := strings.TrimSpace(string(id))
	if s == "" {
		return "", errors.New("empty user id")
	}
	return UserID(strings.ToLower(s)), nil
}
