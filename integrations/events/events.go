package events

import (
	"context"
	"strings"

	"bloomfeed/core"
	"bloomfeed/engine"
)

// Subject constants for the activity stream.
const (
	SubjectAchievementEarned = "activities.achievement"
	SubjectPlantAdded        = "activities.plant_added"
	SubjectFriendAdded       = "activities.friend_added"
)

// SubjectFor maps an activity kind to its stream subject.
func SubjectFor(kind core.ActivityKind) string {
	return "activities." + strings.ToLower(string(kind))
}

// Publisher is the interface for emitting activities to a stream.
type Publisher interface {
	Publish(ctx context.Context, subject string, a core.Activity) error
	Close() error
}

// Attach forwards every activity published on the bus to the stream.
// Returns an unsubscribe func covering all kinds.
func Attach(bus *engine.ActivityBus, pub Publisher) func() {
	kinds := []core.ActivityKind{core.KindAchievementEarned, core.KindPlantAdded, core.KindFriendAdded}
	cancels := make([]func(), 0, len(kinds))
	for _, kind := range kinds {
		cancels = append(cancels, bus.Subscribe(kind, func(ctx context.Context, a core.Activity) {
			_ = pub.Publish(ctx, SubjectFor(a.Kind()), a)
		}))
	}
	return func() {
		for _, cancel := range cancels {
			cancel()
		}
	}
}
