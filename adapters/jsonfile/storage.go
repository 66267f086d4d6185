package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"bloomfeed/core"
)

// Store persists entire state to a single JSON file.
// Suitable for demos and small deployments.
type Store struct {
	path string
	mu   sync.Mutex
	// in-memory cache for speed
	data map[core.UserID]*userState
}

type userState struct {
	profile    core.Profile
	hasProfile bool
	progress   map[core.AchievementType]int64
	activities []core.Activity
	seen       map[string]struct{}
	plants     []core.Plant
}

// fileState is the on-disk shape of a single user's record. Activities
// are stored in their wire form so the variant type survives reload.
type fileState struct {
	Profile    *core.Profile                  `json:"profile,omitempty"`
	Progress   map[core.AchievementType]int64 `json:"progress,omitempty"`
	Activities []json.RawMessage              `json:"activities,omitempty"`
	Plants     []core.Plant                   `json:"plants,omitempty"`
}

func New(path string) (*Store, error) {
	s := &Store{path: path, data: map[core.UserID]*userState{}}
	if err := s.load(); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}
	return s, nil
}

func (s *Store) load() error {
	b, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}
	var raw map[string]fileState
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	for k, rec := range raw {
		st := &userState{
			progress: map[core.AchievementType]int64{},
			seen:     map[string]struct{}{},
		}
		if rec.Profile != nil {
			st.profile = *rec.Profile
			st.hasProfile = true
		}
		for a, v := range rec.Progress {
			st.progress[a] = v
		}
		for _, msg := range rec.Activities {
			act, err := core.UnmarshalActivity(msg)
			if err != nil {
				return err
			}
			st.activities = append(st.activities, act)
			st.seen[act.ID()] = struct{}{}
		}
		st.plants = rec.Plants
		s.data[core.UserID(k)] = st
	}
	return nil
}

func (s *Store) persist() error {
	tmp := s.path + ".tmp"
	raw := make(map[string]fileState, len(s.data))
	for k, st := range s.data {
		out := fileState{Progress: st.progress, Plants: st.plants}
		if st.hasProfile {
			p := st.profile
			out.Profile = &p
		}
		for _, act := range st.activities {
			msg, err := core.MarshalActivity(act)
			if err != nil {
				return err
			}
			out.Activities = append(out.Activities, msg)
		}
		raw[string(k)] = out
	}
	b, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func (s *Store) get(user core.UserID) *userState {
	if st, ok := s.data[user]; ok {
		return st
	}
	st := &userState{
		progress: map[core.AchievementType]int64{},
		seen:     map[string]struct{}{},
	}
	s.data[user] = st
	return st
}

func (s *Store) AppendActivity(_ context.Context, a core.Activity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.get(a.Common().UserID)
	if _, dup := st.seen[a.ID()]; dup {
		return nil
	}
	st.seen[a.ID()] = struct{}{}
	st.activities = append(st.activities, a)
	return s.persist()
}

func (s *Store) ListActivities(_ context.Context, user core.UserID, limit int) ([]core.Activity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.get(user)
	out := make([]core.Activity, 0, len(st.activities))
	for i := len(st.activities) - 1; i >= 0; i-- {
		out = append(out, st.activities[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *Store) GetProgress(_ context.Context, user core.UserID, achievement core.AchievementType) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(user).progress[achievement], nil
}

func (s *Store) SetProgress(_ context.Context, user core.UserID, achievement core.AchievementType, value int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.get(user).progress[achievement] = value
	return s.persist()
}

func (s *Store) GetProfile(_ context.Context, user core.UserID) (core.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.get(user)
	if !st.hasProfile {
		return core.Profile{}, core.ErrProfileNotFound
	}
	return st.profile, nil
}

func (s *Store) SaveProfile(_ context.Context, p core.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.Updated.IsZero() {
		p.Updated = time.Now().UTC()
	}
	st := s.get(p.UserID)
	st.profile = p
	st.hasProfile = true
	return s.persist()
}

func (s *Store) ListUsers(_ context.Context) ([]core.UserID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	users := make([]core.UserID, 0, len(s.data))
	for u := range s.data {
		users = append(users, u)
	}
	return users, nil
}

func (s *Store) ListPlants(_ context.Context, user core.UserID) ([]core.Plant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.get(user)
	out := make([]core.Plant, len(st.plants))
	copy(out, st.plants)
	return out, nil
}

func (s *Store) SavePlant(_ context.Context, user core.UserID, p core.Plant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.get(user)
	for i := range st.plants {
		if st.plants[i].ID == p.ID {
			st.plants[i] = p
			return s.persist()
		}
	}
	st.plants = append(st.plants, p)
	return s.persist()
}
