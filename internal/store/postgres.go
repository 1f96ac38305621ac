// Package store provides storage backends for Kick.
//
// This file implements the PostgreSQL-backed store.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/kickbot/kick/internal/models"
	_ "github.com/lib/pq"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewPostgresStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running Postgres migrations")
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")

	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) EnsureUser(userID string) (*models.User, error) {
	_, err := s.db.Exec(
		`INSERT INTO users (user_id, timezone) VALUES ($1, $2) ON CONFLICT (user_id) DO NOTHING`,
		userID, models.DefaultTimezone,
	)
	if err != nil {
		slog.Error("PostgresStore EnsureUser insert failed", "error", err, "user_id", userID)
		return nil, fmt.Errorf("failed to ensure user %s: %w", userID, err)
	}
	return s.GetUser(userID)
}

func (s *PostgresStore) GetUser(userID string) (*models.User, error) {
	row := s.db.QueryRow(
		`SELECT user_id, is_authenticated, first_auth_date, last_active, reminder_schedule, timezone FROM users WHERE user_id = $1`,
		userID,
	)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, models.ErrUserNotFound
	}
	if err != nil {
		slog.Error("PostgresStore GetUser scan failed", "error", err, "user_id", userID)
		return nil, fmt.Errorf("failed to get user %s: %w", userID, err)
	}
	return u, nil
}

func (s *PostgresStore) MarkAuthenticated(userID string) error {
	now := time.Now().UTC()
	_, err := s.db.Exec(
		`UPDATE users SET is_authenticated = TRUE, first_auth_date = COALESCE(first_auth_date, $1), last_active = $2 WHERE user_id = $3`,
		now, now, userID,
	)
	if err != nil {
		slog.Error("PostgresStore MarkAuthenticated failed", "error", err, "user_id", userID)
		return fmt.Errorf("failed to mark user %s authenticated: %w", userID, err)
	}
	slog.Debug("PostgresStore MarkAuthenticated succeeded", "user_id", userID)
	return nil
}

func (s *PostgresStore) TouchActivity(userID string) error {
	_, err := s.db.Exec(`UPDATE users SET last_active = $1 WHERE user_id = $2`, time.Now().UTC(), userID)
	if err != nil {
		slog.Error("PostgresStore TouchActivity failed", "error", err, "user_id", userID)
		return fmt.Errorf("failed to touch activity for %s: %w", userID, err)
	}
	return nil
}

func (s *PostgresStore) SetTimezone(userID, timezone string) error {
	_, err := s.db.Exec(`UPDATE users SET timezone = $1 WHERE user_id = $2`, timezone, userID)
	if err != nil {
		slog.Error("PostgresStore SetTimezone failed", "error", err, "user_id", userID)
		return fmt.Errorf("failed to set timezone for %s: %w", userID, err)
	}
	slog.Debug("PostgresStore SetTimezone succeeded", "user_id", userID, "timezone", timezone)
	return nil
}

func (s *PostgresStore) SetReminderSchedule(userID string, schedule *models.ReminderSchedule) error {
	var value interface{}
	if schedule != nil {
		data, err := json.Marshal(schedule)
		if err != nil {
			return fmt.Errorf("failed to marshal schedule for %s: %w", userID, err)
		}
		value = string(data)
	}
	_, err := s.db.Exec(`UPDATE users SET reminder_schedule = $1 WHERE user_id = $2`, value, userID)
	if err != nil {
		slog.Error("PostgresStore SetReminderSchedule failed", "error", err, "user_id", userID)
		return fmt.Errorf("failed to set schedule for %s: %w", userID, err)
	}
	slog.Debug("PostgresStore SetReminderSchedule succeeded", "user_id", userID, "cleared", schedule == nil)
	return nil
}

func (s *PostgresStore) GetReminderSchedule(userID string) (*models.ReminderSchedule, error) {
	u, err := s.GetUser(userID)
	if err == models.ErrUserNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return u.Schedule, nil
}

func (s *PostgresStore) ListScheduledUsers() ([]models.User, error) {
	rows, err := s.db.Query(
		`SELECT user_id, is_authenticated, first_auth_date, last_active, reminder_schedule, timezone FROM users WHERE reminder_schedule IS NOT NULL ORDER BY user_id`,
	)
	if err != nil {
		slog.Error("PostgresStore ListScheduledUsers query failed", "error", err)
		return nil, fmt.Errorf("failed to query scheduled users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		u, err := scanUserRows(rows)
		if err != nil {
			slog.Error("PostgresStore ListScheduledUsers scan failed", "error", err)
			return nil, err
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate scheduled users: %w", err)
	}
	slog.Debug("PostgresStore ListScheduledUsers succeeded", "count", len(users))
	return users, nil
}

func (s *PostgresStore) AddEntry(entry models.PracticeEntry) error {
	if err := entry.Validate(); err != nil {
		return err
	}
	_, err := s.db.Exec(
		`INSERT INTO entries (id, user_id, created_at, content, attitude, form, body, response) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		entry.ID, entry.UserID, entry.Timestamp, entry.Content, entry.Attitude, entry.Form, entry.Body, entry.Response,
	)
	if err != nil {
		slog.Error("PostgresStore AddEntry failed", "error", err, "user_id", entry.UserID)
		return fmt.Errorf("failed to insert entry for %s: %w", entry.UserID, err)
	}
	slog.Debug("PostgresStore AddEntry succeeded", "user_id", entry.UserID, "entry_id", entry.ID)
	return nil
}

func (s *PostgresStore) GetEntries(userID string) ([]models.PracticeEntry, error) {
	rows, err := s.db.Query(
		`SELECT id, user_id, created_at, content, attitude, form, body, response FROM entries WHERE user_id = $1 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		slog.Error("PostgresStore GetEntries query failed", "error", err, "user_id", userID)
		return nil, fmt.Errorf("failed to query entries for %s: %w", userID, err)
	}
	defer rows.Close()

	var entries []models.PracticeEntry
	for rows.Next() {
		var e models.PracticeEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.Timestamp, &e.Content, &e.Attitude, &e.Form, &e.Body, &e.Response); err != nil {
			slog.Error("PostgresStore GetEntries scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan entry row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate entry rows: %w", err)
	}
	return entries, nil
}

func (s *PostgresStore) CountEntries(userID string) (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM entries WHERE user_id = $1`, userID).Scan(&count)
	if err != nil {
		slog.Error("PostgresStore CountEntries failed", "error", err, "user_id", userID)
		return 0, fmt.Errorf("failed to count entries for %s: %w", userID, err)
	}
	return count, nil
}

func (s *PostgresStore) AddRefusal(refusal models.Refusal) error {
	_, err := s.db.Exec(
		`INSERT INTO refusals (id, user_id, created_at) VALUES ($1, $2, $3)`,
		refusal.ID, refusal.UserID, refusal.Timestamp,
	)
	if err != nil {
		slog.Error("PostgresStore AddRefusal failed", "error", err, "user_id", refusal.UserID)
		return fmt.Errorf("failed to insert refusal for %s: %w", refusal.UserID, err)
	}
	slog.Debug("PostgresStore AddRefusal succeeded", "user_id", refusal.UserID)
	return nil
}

func (s *PostgresStore) GetRefusals(userID string) ([]models.Refusal, error) {
	rows, err := s.db.Query(
		`SELECT id, user_id, created_at FROM refusals WHERE user_id = $1 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		slog.Error("PostgresStore GetRefusals query failed", "error", err, "user_id", userID)
		return nil, fmt.Errorf("failed to query refusals for %s: %w", userID, err)
	}
	defer rows.Close()

	var refusals []models.Refusal
	for rows.Next() {
		var r models.Refusal
		if err := rows.Scan(&r.ID, &r.UserID, &r.Timestamp); err != nil {
			slog.Error("PostgresStore GetRefusals scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan refusal row: %w", err)
		}
		refusals = append(refusals, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate refusal rows: %w", err)
	}
	return refusals, nil
}

func (s *PostgresStore) DeleteUserData(userID string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin delete transaction for %s: %w", userID, err)
	}
	for _, query := range []string{
		`DELETE FROM entries WHERE user_id = $1`,
		`DELETE FROM refusals WHERE user_id = $1`,
		`UPDATE users SET reminder_schedule = NULL WHERE user_id = $1`,
	} {
		if _, err := tx.Exec(query, userID); err != nil {
			tx.Rollback()
			slog.Error("PostgresStore DeleteUserData failed", "error", err, "user_id", userID)
			return fmt.Errorf("failed to delete data for %s: %w", userID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit delete for %s: %w", userID, err)
	}
	slog.Debug("PostgresStore DeleteUserData succeeded", "user_id", userID)
	return nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
