package memory

import (
	"context"
	"sync"
	"time"

	"bloomfeed/core"
)

// Store is a concurrent in-memory implementation of engine.Storage and
// engine.PlantStorage.
type Store struct {
	users sync.Map // map[core.UserID]*userRecord
}

type userRecord struct {
	mu         sync.Mutex
	profile    core.Profile
	hasProfile bool
	progress   map[core.AchievementType]int64
	activities []core.Activity
	seen       map[string]struct{}
	plants     []core.Plant
}

func New() *Store { return &Store{} }

func (s *Store) getOrCreate(user core.UserID) *userRecord {
	if v, ok := s.users.Load(user); ok {
		return v.(*userRecord)
	}
	rec := &userRecord{
		progress: map[core.AchievementType]int64{},
		seen:     map[string]struct{}{},
	}
	actual, _ := s.users.LoadOrStore(user, rec)
	return actual.(*userRecord)
}

func (s *Store) AppendActivity(_ context.Context, a core.Activity) error {
	rec := s.getOrCreate(a.Common().UserID)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if _, dup := rec.seen[a.ID()]; dup {
		return nil
	}
	rec.seen[a.ID()] = struct{}{}
	rec.activities = append(rec.activities, a)
	return nil
}

func (s *Store) ListActivities(_ context.Context, user core.UserID, limit int) ([]core.Activity, error) {
	rec := s.getOrCreate(user)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	// newest first
	out := make([]core.Activity, 0, len(rec.activities))
	for i := len(rec.activities) - 1; i >= 0; i-- {
		out = append(out, rec.activities[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *Store) GetProgress(_ context.Context, user core.UserID, achievement core.AchievementType) (int64, error) {
	rec := s.getOrCreate(user)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.progress[achievement], nil
}

func (s *Store) SetProgress(_ context.Context, user core.UserID, achievement core.AchievementType, value int64) error {
	rec := s.getOrCreate(user)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.progress[achievement] = value
	return nil
}

func (s *Store) GetProfile(_ context.Context, user core.UserID) (core.Profile, error) {
	rec := s.getOrCreate(user)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if !rec.hasProfile {
		return core.Profile{}, core.ErrProfileNotFound
	}
	return rec.profile, nil
}

func (s *Store) SaveProfile(_ context.Context, p core.Profile) error {
	rec := s.getOrCreate(p.UserID)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if p.Updated.IsZero() {
		p.Updated = time.Now().UTC()
	}
	rec.profile = p
	rec.hasProfile = true
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]core.UserID, error) {
	var users []core.UserID
	s.users.Range(func(k, _ any) bool {
		users = append(users, k.(core.UserID))
		return true
	})
	return users, nil
}

func (s *Store) ListPlants(_ context.Context, user core.UserID) ([]core.Plant, error) {
	rec := s.getOrCreate(user)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	out := make([]core.Plant, len(rec.plants))
	copy(out, rec.plants)
	return out, nil
}

func (s *Store) SavePlant(_ context.Context, user core.UserID, p core.Plant) error {
	rec := s.getOrCreate(user)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	for i := range rec.plants {
		if rec.plants[i].ID == p.ID {
			rec.plants[i] = p
			return nil
		}
	}
	rec.plants = append(rec.plants, p)
	return nil
}

// Interface shape mirrored from engine.Storage and engine.PlantStorage;
// asserted structurally to keep this package importable from engine tests.
var _ interface {
	AppendActivity(context.Context, core.Activity) error
	ListActivities(context.Context, core.UserID, int) ([]core.Activity, error)
	GetProgress(context.Context, core.UserID, core.AchievementType) (int64, error)
	SetProgress(context.Context, core.UserID, core.AchievementType, int64) error
	GetProfile(context.Context, core.UserID) (core.Profile, error)
	SaveProfile(context.Context, core.Profile) error
	ListUsers(context.Context) ([]core.UserID, error)
	ListPlants(context.Context, core.UserID) ([]core.Plant, error)
	SavePlant(context.Context, core.UserID, core.Plant) error
} = (*Store)(nil)
