package sqlx

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"bloomfeed/core"
)

// Driver selects the SQL dialect.
type Driver string

const (
	DriverPostgres Driver = "postgres"
	DriverMySQL    Driver = "mysql"
)

// Config holds SQL connection configuration.
type Config struct {
	Driver          Driver
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DefaultConfig returns sensible defaults for the given driver.
func DefaultConfig(driver Driver) Config {
	return Config{
		Driver:          driver,
		MaxOpenConns:    10,
		MaxIdleConns:    2,
		ConnMaxLifetime: 30 * time.Minute,
	}
}

// Store implements the engine storage interfaces on a relational
// database. Tables:
// - activities(user_id, activity_id, payload, created_at)
// - achievement_progress(user_id, achievement, value, updated_at)
// - profiles(user_id, display_name, push_endpoint, updated_at)
// - plants(user_id, plant_id, payload)
type Store struct {
	db     *sqlx.DB
	driver Driver
}

// New opens a database connection with the provided configuration.
func New(config Config) (*Store, error) {
	db, err := sqlx.Open(string(config.Driver), config.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return &Store{db: db, driver: config.Driver}, nil
}

// NewWithDB wraps an existing connection (useful for testing).
func NewWithDB(db *sqlx.DB, driver Driver) *Store {
	return &Store{db: db, driver: driver}
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// EnsureSchema creates the tables if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	payloadType := "JSONB"
	if s.driver == DriverMySQL {
		payloadType = "JSON"
	}
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS activities (
			user_id VARCHAR(128) NOT NULL,
			activity_id VARCHAR(255) NOT NULL,
			payload %s NOT NULL,
			created_at TIMESTAMP NOT NULL,
			PRIMARY KEY (user_id, activity_id)
		)`, payloadType),
		`CREATE TABLE IF NOT EXISTS achievement_progress (
			user_id VARCHAR(128) NOT NULL,
			achievement VARCHAR(64) NOT NULL,
			value BIGINT NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			PRIMARY KEY (user_id, achievement)
		)`,
		`CREATE TABLE IF NOT EXISTS profiles (
			user_id VARCHAR(128) NOT NULL PRIMARY KEY,
			display_name VARCHAR(255) NOT NULL,
			push_endpoint VARCHAR(2048) NOT NULL DEFAULT '',
			updated_at TIMESTAMP NOT NULL
		)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS plants (
			user_id VARCHAR(128) NOT NULL,
			plant_id VARCHAR(128) NOT NULL,
			payload %s NOT NULL,
			PRIMARY KEY (user_id, plant_id)
		)`, payloadType),
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

// AppendActivity inserts an activity, ignoring replays of an already
// stored ID.
func (s *Store) AppendActivity(ctx context.Context, a core.Activity) error {
	payload, err := core.MarshalActivity(a)
	if err != nil {
		return fmt.Errorf("failed to encode activity: %w", err)
	}

	query := `INSERT INTO activities (user_id, activity_id, payload, created_at) VALUES (?, ?, ?, ?) ON CONFLICT (user_id, activity_id) DO NOTHING`
	if s.driver == DriverMySQL {
		query = `INSERT IGNORE INTO activities (user_id, activity_id, payload, created_at) VALUES (?, ?, ?, ?)`
	}
	env := a.Common()
	_, err = s.db.ExecContext(ctx, s.db.Rebind(query), env.UserID, a.ID(), payload, env.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append activity: %w", err)
	}
	return nil
}

// ListActivities returns the user's feed, newest first.
func (s *Store) ListActivities(ctx context.Context, userID core.UserID, limit int) ([]core.Activity, error) {
	query := `SELECT payload FROM activities WHERE user_id = ? ORDER BY created_at DESC`
	args := []any{userID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	var rows [][]byte
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to list activities: %w", err)
	}

	out := make([]core.Activity, 0, len(rows))
	for _, raw := range rows {
		a, err := core.UnmarshalActivity(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to decode activity: %w", err)
		}
		out = append(out, a)
	}
	return out, nil
}

// GetProgress returns the stored counter, zero when absent.
func (s *Store) GetProgress(ctx context.Context, userID core.UserID, achievement core.AchievementType) (int64, error) {
	var value int64
	query := s.db.Rebind(`SELECT value FROM achievement_progress WHERE user_id = ? AND achievement = ?`)
	err := s.db.GetContext(ctx, &value, query, userID, achievement)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get progress: %w", err)
	}
	return value, nil
}

// SetProgress advances the counter inside a transaction. Values below
// the stored one are ignored so retries cannot rewind progress.
func (s *Store) SetProgress(ctx context.Context, userID core.UserID, achievement core.AchievementType, value int64) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var current int64
	query := tx.Rebind(`SELECT value FROM achievement_progress WHERE user_id = ? AND achievement = ?`)
	err = tx.GetContext(ctx, &current, query, userID, achievement)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		insert := tx.Rebind(`INSERT INTO achievement_progress (user_id, achievement, value, updated_at) VALUES (?, ?, ?, ?)`)
		if _, err := tx.ExecContext(ctx, insert, userID, achievement, value, time.Now().UTC()); err != nil {
			return fmt.Errorf("failed to insert progress: %w", err)
		}
	case err != nil:
		return fmt.Errorf("failed to read progress: %w", err)
	case value > current:
		update := tx.Rebind(`UPDATE achievement_progress SET value = ?, updated_at = ? WHERE user_id = ? AND achievement = ?`)
		if _, err := tx.ExecContext(ctx, update, value, time.Now().UTC(), userID, achievement); err != nil {
			return fmt.Errorf("failed to update progress: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit progress: %w", err)
	}
	return nil
}

type profileRow struct {
	UserID       string    `db:"user_id"`
	DisplayName  string    `db:"display_name"`
	PushEndpoint string    `db:"push_endpoint"`
	UpdatedAt    time.Time `db:"updated_at"`
}

// GetProfile retrieves a user profile.
func (s *Store) GetProfile(ctx context.Context, userID core.UserID) (core.Profile, error) {
	var row profileRow
	query := s.db.Rebind(`SELECT user_id, display_name, push_endpoint, updated_at FROM profiles WHERE user_id = ?`)
	err := s.db.GetContext(ctx, &row, query, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Profile{}, core.ErrProfileNotFound
	}
	if err != nil {
		return core.Profile{}, fmt.Errorf("failed to get profile: %w", err)
	}
	return core.Profile{
		UserID:       core.UserID(row.UserID),
		DisplayName:  row.DisplayName,
		PushEndpoint: row.PushEndpoint,
		Updated:      row.UpdatedAt,
	}, nil
}

// SaveProfile upserts a user profile.
func (s *Store) SaveProfile(ctx context.Context, p core.Profile) error {
	if p.Updated.IsZero() {
		p.Updated = time.Now().UTC()
	}
	query := `INSERT INTO profiles (user_id, display_name, push_endpoint, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET display_name = EXCLUDED.display_name, push_endpoint = EXCLUDED.push_endpoint, updated_at = EXCLUDED.updated_at`
	if s.driver == DriverMySQL {
		query = `INSERT INTO profiles (user_id, display_name, push_endpoint, updated_at) VALUES (?, ?, ?, ?)
			ON DUPLICATE KEY UPDATE display_name = VALUES(display_name), push_endpoint = VALUES(push_endpoint), updated_at = VALUES(updated_at)`
	}
	_, err := s.db.ExecContext(ctx, s.db.Rebind(query), p.UserID, p.DisplayName, p.PushEndpoint, p.Updated)
	if err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}
	return nil
}

// ListUsers returns every user with a profile or a plant.
func (s *Store) ListUsers(ctx context.Context) ([]core.UserID, error) {
	var ids []string
	query := `SELECT user_id FROM profiles UNION SELECT user_id FROM plants`
	if err := s.db.SelectContext(ctx, &ids, query); err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	out := make([]core.UserID, 0, len(ids))
	for _, id := range ids {
		out = append(out, core.UserID(id))
	}
	return out, nil
}

// ListPlants returns all plants tracked for the user.
func (s *Store) ListPlants(ctx context.Context, userID core.UserID) ([]core.Plant, error) {
	var rows [][]byte
	query := s.db.Rebind(`SELECT payload FROM plants WHERE user_id = ? ORDER BY plant_id`)
	if err := s.db.SelectContext(ctx, &rows, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list plants: %w", err)
	}
	out := make([]core.Plant, 0, len(rows))
	for _, raw := range rows {
		var p core.Plant
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("failed to decode plant: %w", err)
		}
		out = append(out, p)
	}
	return out, nil
}

// SavePlant upserts a plant by ID.
func (s *Store) SavePlant(ctx context.Context, userID core.UserID, p core.Plant) error {
	payload, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode plant: %w", err)
	}
	query := `INSERT INTO plants (user_id, plant_id, payload) VALUES (?, ?, ?)
		ON CONFLICT (user_id, plant_id) DO UPDATE SET payload = EXCLUDED.payload`
	if s.driver == DriverMySQL {
		query = `INSERT INTO plants (user_id, plant_id, payload) VALUES (?, ?, ?)
			ON DUPLICATE KEY UPDATE payload = VALUES(payload)`
	}
	if _, err := s.db.ExecContext(ctx, s.db.Rebind(query), userID, p.ID, payload); err != nil {
		return fmt.Errorf("failed to save plant: %w", err)
	}
	return nil
}
