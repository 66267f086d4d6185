package core

import (
	"fmt"
	"strings"
	"time"
)

// ActivityKind discriminates the closed set of activity variants.
type ActivityKind string

const (
	KindAchievementEarned ActivityKind = "ACHIEVEMENT"
	KindPlantAdded        ActivityKind = "PLANT_ADDED"
	KindFriendAdded       ActivityKind = "FRIEND_ADDED"
)

// InvalidEventError rejects construction of an activity whose required
// fields are missing. An activity records a fact about the past, so no
// partial or repaired value is ever produced.
type InvalidEventError struct {
	Field  string
	Reason string
}

func (e *InvalidEventError) Error() string {
	return fmt.Sprintf("invalid activity: %s %s", e.Field, e.Reason)
}

// Envelope carries the fields shared by every activity variant.
type Envelope struct {
	UserID      UserID    `json:"user_id"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
}

// Activity is an immutable record of a fact about a user's action.
// The variant set is closed: only types in this package implement it,
// so consumers can switch over Kind exhaustively. Instances are plain
// values and never mutated after construction.
type Activity interface {
	// Kind returns the fixed discriminant of the concrete variant.
	Kind() ActivityKind
	// Common returns the shared envelope fields.
	Common() Envelope
	// ID returns a stable identifier derived from the underlying fact,
	// used by sinks to deduplicate retried writes.
	ID() string

	isActivity()
}

// Option adjusts envelope construction.
type Option func(*envelopeOptions)

type envelopeOptions struct {
	at    time.Time
	clock Clock
}

// At pins the activity timestamp to an explicit instant. The supplied
// value is used exactly as given; no ordering across activities is
// implied or enforced.
func At(t time.Time) Option {
	return func(o *envelopeOptions) { o.at = t }
}

// WithClock overrides the clock consulted when no explicit timestamp
// was supplied.
func WithClock(c Clock) Option {
	return func(o *envelopeOptions) {
		if c != nil {
			o.clock = c
		}
	}
}

func newEnvelope(user UserID, displayName string, opts []Option) (Envelope, error) {
	if strings.TrimSpace(string(user)) == "" {
		return Envelope{}, &InvalidEventError{Field: "user_id", Reason: "must not be empty"}
	}
	if strings.TrimSpace(displayName) == "" {
		return Envelope{}, &InvalidEventError{Field: "display_name", Reason: "must not be empty"}
	}
	o := envelopeOptions{clock: SystemClock}
	for _, opt := range opts {
		opt(&o)
	}
	created := o.at
	if created.IsZero() {
		created = o.clock.Now()
	}
	return Envelope{UserID: user, DisplayName: displayName, CreatedAt: created}, nil
}

// AchievementEarned records that a user reached a new achievement level.
type AchievementEarned struct {
	Envelope
	Achievement AchievementType `json:"achievement"`
	Level       int64           `json:"level"`
}

// NewAchievementEarned constructs an achievement activity. The
// achievement name must be non-empty and the level at least 1.
func NewAchievementEarned(user UserID, displayName string, achievement AchievementType, level int64, opts ...Option) (AchievementEarned, error) {
	if strings.TrimSpace(string(achievement)) == "" {
		return AchievementEarned{}, &InvalidEventError{Field: "achievement", Reason: "must not be empty"}
	}
	if level < 1 {
		return AchievementEarned{}, &InvalidEventError{Field: "level", Reason: "must be at least 1"}
	}
	env, err := newEnvelope(user, displayName, opts)
	if err != nil {
		return AchievementEarned{}, err
	}
	return AchievementEarned{Envelope: env, Achievement: achievement, Level: level}, nil
}

func (AchievementEarned) Kind() ActivityKind { return KindAchievementEarned }

func (a AchievementEarned) Common() Envelope { return a.Envelope }

// ID is deterministic per (achievement, level) so a retried trigger
// produces the same feed entry instead of a duplicate.
func (a AchievementEarned) ID() string {
	return fmt.Sprintf("ACHIEVEMENT_%s_LEVEL_%d", a.Achievement, a.Level)
}

func (AchievementEarned) isActivity() {}

// PlantAdded records that a user added a plant to their collection.
type PlantAdded struct {
	Envelope
	PlantID   string `json:"plant_id"`
	PlantName string `json:"plant_name"`
}

func NewPlantAdded(user UserID, displayName, plantID, plantName string, opts ...Option) (PlantAdded, error) {
	if strings.TrimSpace(plantID) == "" {
		return PlantAdded{}, &InvalidEventError{Field: "plant_id", Reason: "must not be empty"}
	}
	if strings.TrimSpace(plantName) == "" {
		return PlantAdded{}, &InvalidEventError{Field: "plant_name", Reason: "must not be empty"}
	}
	env, err := newEnvelope(user, displayName, opts)
	if err != nil {
		return PlantAdded{}, err
	}
	return PlantAdded{Envelope: env, PlantID: plantID, PlantName: plantName}, nil
}

func (PlantAdded) Kind() ActivityKind { return KindPlantAdded }

func (a PlantAdded) Common() Envelope { return a.Envelope }

func (a PlantAdded) ID() string { return "PLANT_ADDED_" + a.PlantID }

func (PlantAdded) isActivity() {}

// FriendAdded records that a user became friends with another user.
type FriendAdded struct {
	Envelope
	FriendID   UserID `json:"friend_id"`
	FriendName string `json:"friend_name"`
}

func NewFriendAdded(user UserID, displayName string, friend UserID, friendName string, opts ...Option) (FriendAdded, error) {
	if strings.TrimSpace(string(friend)) == "" {
		return FriendAdded{}, &InvalidEventError{Field: "friend_id", Reason: "must not be empty"}
	}
	if strings.TrimSpace(friendName) == "" {
		return FriendAdded{}, &InvalidEventError{Field: "friend_name", Reason: "must not be empty"}
	}
	env, err := newEnvelope(user, displayName, opts)
	if err != nil {
		return FriendAdded{}, err
	}
	return FriendAdded{Envelope: env, FriendID: friend, FriendName: friendName}, nil
}

func (FriendAdded) Kind() ActivityKind { return KindFriendAdded }

func (a FriendAdded) Common() Envelope { return a.Envelope }

func (a FriendAdded) ID() string { return "FRIEND_ADDED_" + string(a.FriendID) }

func (FriendAdded) isActivity() {}
