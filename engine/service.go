package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"bloomfeed/core"
)

// ErrUnknownAchievement rejects progress for achievement types outside
// the known set.
var ErrUnknownAchievement = errors.New("unknown achievement type")

// FeedService wires storage, the activity bus, and optional plant
// storage and notifier into a cohesive API.
type FeedService struct {
	storage  Storage
	plants   PlantStorage
	bus      *ActivityBus
	notifier Notifier
	clock    core.Clock
}

// ServiceOption configures optional FeedService collaborators.
type ServiceOption func(*FeedService)

// WithPlantStorage enables plant tracking and the health sweeper.
func WithPlantStorage(p PlantStorage) ServiceOption {
	return func(s *FeedService) { s.plants = p }
}

// WithNotifier enables watering reminders during sweeps.
func WithNotifier(n Notifier) ServiceOption {
	return func(s *FeedService) { s.notifier = n }
}

// WithServiceClock overrides the time source for emitted activities.
func WithServiceClock(c core.Clock) ServiceOption {
	return func(s *FeedService) {
		if c != nil {
			s.clock = c
		}
	}
}

func NewFeedService(storage Storage, bus *ActivityBus, opts ...ServiceOption) *FeedService {
	if storage == nil || bus == nil {
		panic("NewFeedService requires non-nil storage and bus")
	}
	s := &FeedService{storage: storage, bus: bus, clock: core.SystemClock}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Subscribe convenience method.
func (s *FeedService) Subscribe(kind core.ActivityKind, handler func(context.Context, core.Activity)) func() {
	return s.bus.Subscribe(kind, handler)
}

// Bus exposes the activity bus so integrations can attach to it.
func (s *FeedService) Bus() *ActivityBus {
	return s.bus
}

func (s *FeedService) Publish(ctx context.Context, a core.Activity) {
	s.bus.Publish(ctx, a)
}

// RecordProgress advances an achievement counter and emits an
// achievement activity when a new level is crossed. Progress only
// moves forward: stale or repeated values are ignored, and the
// deterministic activity ID makes retried emissions collapse into a
// single feed entry. Returns the emitted activity, or nil when the
// update produced none.
func (s *FeedService) RecordProgress(ctx context.Context, user core.UserID, achievement core.AchievementType, value int64) (core.Activity, error) {
	normalized, err := core.NormalizeUserID(user)
	if err != nil {
		return nil, err
	}
	thresholds, ok := core.Thresholds(achievement)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAchievement, achievement)
	}

	before, err := s.storage.GetProgress(ctx, normalized, achievement)
	if err != nil {
		return nil, err
	}
	if value <= before {
		return nil, nil
	}
	if err := s.storage.SetProgress(ctx, normalized, achievement, value); err != nil {
		return nil, err
	}

	beforeLevel := core.ComputeLevel(before, thresholds)
	afterLevel := core.ComputeLevel(value, thresholds)
	if afterLevel <= beforeLevel {
		return nil, nil
	}

	profile, err := s.storage.GetProfile(ctx, normalized)
	if err != nil {
		if errors.Is(err, core.ErrProfileNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if !profile.HasDisplayName() {
		return nil, nil
	}

	activity, err := core.NewAchievementEarned(normalized, profile.DisplayName, achievement, afterLevel, core.WithClock(s.clock))
	if err != nil {
		return nil, err
	}
	if err := s.storage.AppendActivity(ctx, activity); err != nil {
		return nil, err
	}
	s.bus.Publish(ctx, activity)
	return activity, nil
}

// AddPlant stores a plant, emits a plant-added activity, and drives the
// PLANTS_NUMBER progress counter. A missing plant ID is generated.
func (s *FeedService) AddPlant(ctx context.Context, user core.UserID, plant core.Plant) (core.Plant, error) {
	if s.plants == nil {
		return core.Plant{}, errors.New("plant storage not configured")
	}
	normalized, err := core.NormalizeUserID(user)
	if err != nil {
		return core.Plant{}, err
	}
	if strings.TrimSpace(plant.Name) == "" {
		return core.Plant{}, &core.InvalidEventError{Field: "plant_name", Reason: "must not be empty"}
	}
	if plant.ID == "" {
		plant.ID = uuid.NewString()
	}
	plant.HealthStatus = core.ComputeStatus(plant.LastWatered, plant.WateringFrequencyDays, plant.PreviousLastWatered, s.clock.Now())
	if plant.HealthStatus.IsHealthy() && plant.HealthySince.IsZero() {
		plant.HealthySince = s.clock.Now()
	}
	if err := s.plants.SavePlant(ctx, normalized, plant); err != nil {
		return core.Plant{}, err
	}

	profile, err := s.storage.GetProfile(ctx, normalized)
	switch {
	case err == nil && profile.HasDisplayName():
		activity, err := core.NewPlantAdded(normalized, profile.DisplayName, plant.ID, plant.Name, core.WithClock(s.clock))
		if err != nil {
			return plant, err
		}
		if err := s.storage.AppendActivity(ctx, activity); err != nil {
			return plant, err
		}
		s.bus.Publish(ctx, activity)
	case err != nil && !errors.Is(err, core.ErrProfileNotFound):
		return plant, err
	}

	all, err := s.plants.ListPlants(ctx, normalized)
	if err != nil {
		return plant, err
	}
	if _, err := s.RecordProgress(ctx, normalized, core.AchievementPlantsNumber, int64(len(all))); err != nil {
		return plant, err
	}
	return plant, nil
}

// AddFriend emits a friend-added activity for user and advances the
// FRIENDS_NUMBER counter. Both profiles must exist with display names.
func (s *FeedService) AddFriend(ctx context.Context, user, friend core.UserID) error {
	normalized, err := core.NormalizeUserID(user)
	if err != nil {
		return err
	}
	friendID, err := core.NormalizeUserID(friend)
	if err != nil {
		return err
	}
	if normalized == friendID {
		return errors.New("cannot befriend yourself")
	}
	profile, err := s.storage.GetProfile(ctx, normalized)
	if err != nil {
		return err
	}
	friendProfile, err := s.storage.GetProfile(ctx, friendID)
	if err != nil {
		return err
	}
	if !profile.HasDisplayName() || !friendProfile.HasDisplayName() {
		return errors.New("both users need a display name")
	}

	activity, err := core.NewFriendAdded(normalized, profile.DisplayName, friendID, friendProfile.DisplayName, core.WithClock(s.clock))
	if err != nil {
		return err
	}
	if err := s.storage.AppendActivity(ctx, activity); err != nil {
		return err
	}
	s.bus.Publish(ctx, activity)

	if s.notifier != nil {
		if err := s.notifier.SendFriendRequest(ctx, friendProfile, profile.DisplayName); err != nil {
			slog.Warn("friend notification failed", "user", friendID, "error", err)
		}
	}

	count, err := s.storage.GetProgress(ctx, normalized, core.AchievementFriendsNumber)
	if err != nil {
		return err
	}
	_, err = s.RecordProgress(ctx, normalized, core.AchievementFriendsNumber, count+1)
	return err
}

// Feed returns a user's activity feed, newest first.
func (s *FeedService) Feed(ctx context.Context, user core.UserID, limit int) ([]core.Activity, error) {
	normalized, err := core.NormalizeUserID(user)
	if err != nil {
		return nil, err
	}
	return s.storage.ListActivities(ctx, normalized, limit)
}

// Profile returns a user's profile.
func (s *FeedService) Profile(ctx context.Context, user core.UserID) (core.Profile, error) {
	normalized, err := core.NormalizeUserID(user)
	if err != nil {
		return core.Profile{}, err
	}
	return s.storage.GetProfile(ctx, normalized)
}

// SaveProfile upserts a user's profile.
func (s *FeedService) SaveProfile(ctx context.Context, p core.Profile) error {
	normalized, err := core.NormalizeUserID(p.UserID)
	if err != nil {
		return err
	}
	p.UserID = normalized
	p.Updated = s.clock.Now()
	return s.storage.SaveProfile(ctx, p)
}

func (s *FeedService) Close() { s.bus.Close() }
