package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"bloomfeed/core"
)

// Config holds Redis connection configuration
type Config struct {
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig returns sensible defaults for Redis configuration
func DefaultConfig() Config {
	return Config{
		Addr:         "localhost:6379",
		Password:     "",
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// Store implements the engine storage interfaces using Redis as the backend.
// Data structure:
// - user:{user_id}:activities -> list of activity JSON, newest first
// - user:{user_id}:activity_ids -> set of activity IDs for dedupe
// - user:{user_id}:progress:{achievement} -> int64 counter
// - user:{user_id}:profile -> JSON blob of the profile
// - user:{user_id}:plants -> hash of plant ID to plant JSON
// - users -> set of all known user IDs
type Store struct {
	client *redis.Client
}

// New creates a new Redis-backed storage with the provided configuration
func New(config Config) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         config.Addr,
		Password:     config.Password,
		DB:           config.DB,
		PoolSize:     config.PoolSize,
		MinIdleConns: config.MinIdleConns,
		DialTimeout:  config.DialTimeout,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Store{client: client}, nil
}

// NewWithClient creates a Store using an existing Redis client (useful for testing)
func NewWithClient(client *redis.Client) *Store {
	return &Store{client: client}
}

// Close closes the Redis connection
func (s *Store) Close() error {
	return s.client.Close()
}

const usersKey = "users"

func activitiesKey(userID core.UserID) string {
	return fmt.Sprintf("user:%s:activities", userID)
}

func activityIDsKey(userID core.UserID) string {
	return fmt.Sprintf("user:%s:activity_ids", userID)
}

func progressKey(userID core.UserID, achievement core.AchievementType) string {
	return fmt.Sprintf("user:%s:progress:%s", userID, achievement)
}

func profileKey(userID core.UserID) string {
	return fmt.Sprintf("user:%s:profile", userID)
}

func plantsKey(userID core.UserID) string {
	return fmt.Sprintf("user:%s:plants", userID)
}

// Lua script for atomic append-if-unseen. The ID set and the list must
// move together or a crashed retry could double-post an activity.
var appendActivityScript = redis.NewScript(`
	local ids = KEYS[1]
	local feed = KEYS[2]
	local id = ARGV[1]
	local payload = ARGV[2]

	if redis.call('SADD', ids, id) == 0 then
		return 0
	end
	redis.call('LPUSH', feed, payload)
	return 1
`)

// Lua script for monotonic progress. Concurrent writers may race; the
// counter only ever moves forward.
var advanceProgressScript = redis.NewScript(`
	local key = KEYS[1]
	local value = tonumber(ARGV[1])
	local current = tonumber(redis.call('GET', key) or '0')

	if value > current then
		redis.call('SET', key, value)
		return value
	end
	return current
`)

// AppendActivity stores an activity at the head of the user's feed.
// Replays with an already seen ID are dropped.
func (s *Store) AppendActivity(ctx context.Context, a core.Activity) error {
	payload, err := core.MarshalActivity(a)
	if err != nil {
		return fmt.Errorf("failed to encode activity: %w", err)
	}

	user := a.Common().UserID
	keys := []string{activityIDsKey(user), activitiesKey(user)}
	if err := appendActivityScript.Run(ctx, s.client, keys, a.ID(), payload).Err(); err != nil {
		return fmt.Errorf("failed to append activity: %w", err)
	}
	return nil
}

// ListActivities returns the user's feed, newest first.
func (s *Store) ListActivities(ctx context.Context, userID core.UserID, limit int) ([]core.Activity, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit) - 1
	}
	raw, err := s.client.LRange(ctx, activitiesKey(userID), 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list activities: %w", err)
	}

	out := make([]core.Activity, 0, len(raw))
	for _, entry := range raw {
		a, err := core.UnmarshalActivity([]byte(entry))
		if err != nil {
			return nil, fmt.Errorf("failed to decode activity: %w", err)
		}
		out = append(out, a)
	}
	return out, nil
}

// GetProgress returns the stored counter, zero when absent.
func (s *Store) GetProgress(ctx context.Context, userID core.UserID, achievement core.AchievementType) (int64, error) {
	val, err := s.client.Get(ctx, progressKey(userID, achievement)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get progress: %w", err)
	}
	return val, nil
}

// SetProgress advances the counter. Values below the stored one are
// ignored so retries cannot rewind progress.
func (s *Store) SetProgress(ctx context.Context, userID core.UserID, achievement core.AchievementType, value int64) error {
	key := progressKey(userID, achievement)
	if err := advanceProgressScript.Run(ctx, s.client, []string{key}, value).Err(); err != nil {
		return fmt.Errorf("failed to set progress: %w", err)
	}
	return nil
}

// GetProfile retrieves a user profile.
func (s *Store) GetProfile(ctx context.Context, userID core.UserID) (core.Profile, error) {
	data, err := s.client.Get(ctx, profileKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return core.Profile{}, core.ErrProfileNotFound
	}
	if err != nil {
		return core.Profile{}, fmt.Errorf("failed to get profile: %w", err)
	}

	var p core.Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return core.Profile{}, fmt.Errorf("failed to decode profile: %w", err)
	}
	return p, nil
}

// SaveProfile stores a user profile and registers the user.
func (s *Store) SaveProfile(ctx context.Context, p core.Profile) error {
	if p.Updated.IsZero() {
		p.Updated = time.Now().UTC()
	}
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode profile: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, profileKey(p.UserID), data, 0)
	pipe.SAdd(ctx, usersKey, string(p.UserID))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}
	return nil
}

// ListUsers returns every user known to the store.
func (s *Store) ListUsers(ctx context.Context) ([]core.UserID, error) {
	members, err := s.client.SMembers(ctx, usersKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	out := make([]core.UserID, 0, len(members))
	for _, m := range members {
		out = append(out, core.UserID(m))
	}
	return out, nil
}

// ListPlants returns all plants tracked for the user.
func (s *Store) ListPlants(ctx context.Context, userID core.UserID) ([]core.Plant, error) {
	entries, err := s.client.HGetAll(ctx, plantsKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list plants: %w", err)
	}
	out := make([]core.Plant, 0, len(entries))
	for _, entry := range entries {
		var p core.Plant
		if err := json.Unmarshal([]byte(entry), &p); err != nil {
			return nil, fmt.Errorf("failed to decode plant: %w", err)
		}
		out = append(out, p)
	}
	return out, nil
}

// SavePlant upserts a plant by ID and registers the user.
func (s *Store) SavePlant(ctx context.Context, userID core.UserID, p core.Plant) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode plant: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, plantsKey(userID), p.ID, data)
	pipe.SAdd(ctx, usersKey, string(userID))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save plant: %w", err)
	}
	return nil
}
