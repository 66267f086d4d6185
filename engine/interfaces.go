package engine

import (
	"context"

	"bloomfeed/core"
)

// Storage abstracts persistence for profiles, achievement progress,
// and the activity feed.
type Storage interface {
	// AppendActivity stores an activity. Appends are idempotent per
	// (user, activity ID): a retried write of the same fact is a no-op.
	AppendActivity(ctx context.Context, a core.Activity) error
	// ListActivities returns a user's feed, newest first. limit <= 0
	// returns everything.
	ListActivities(ctx context.Context, user core.UserID, limit int) ([]core.Activity, error)

	// GetProgress returns the current progress value for an achievement
	// type, 0 when no progress has been recorded.
	GetProgress(ctx context.Context, user core.UserID, achievement core.AchievementType) (int64, error)
	SetProgress(ctx context.Context, user core.UserID, achievement core.AchievementType, value int64) error

	// GetProfile returns core.ErrProfileNotFound for unknown users.
	GetProfile(ctx context.Context, user core.UserID) (core.Profile, error)
	SaveProfile(ctx context.Context, p core.Profile) error
}

// PlantStorage abstracts persistence for per-user plants, used by the
// health sweeper.
type PlantStorage interface {
	ListUsers(ctx context.Context) ([]core.UserID, error)
	ListPlants(ctx context.Context, user core.UserID) ([]core.Plant, error)
	SavePlant(ctx context.Context, user core.UserID, p core.Plant) error
}

// Notifier delivers push messages to users.
type Notifier interface {
	SendWaterReminder(ctx context.Context, profile core.Profile, plant core.Plant, status core.PlantHealthStatus) error
	SendFriendRequest(ctx context.Context, target core.Profile, fromName string) error
}
