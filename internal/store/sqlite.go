// Package store provides storage backends for Kick.
//
// This file implements the SQLite-backed store.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "embed"

	"github.com/kickbot/kick/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// DefaultDirPermissions defines the default permissions for database directories.
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN is a file path to the SQLite database file; the containing
// directory is created if missing.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running SQLite migrations")
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) EnsureUser(userID string) (*models.User, error) {
	_, err := s.db.Exec(
		`INSERT INTO users (user_id, timezone) VALUES (?, ?) ON CONFLICT(user_id) DO NOTHING`,
		userID, models.DefaultTimezone,
	)
	if err != nil {
		slog.Error("SQLiteStore EnsureUser insert failed", "error", err, "user_id", userID)
		return nil, fmt.Errorf("failed to ensure user %s: %w", userID, err)
	}
	return s.GetUser(userID)
}

func (s *SQLiteStore) GetUser(userID string) (*models.User, error) {
	row := s.db.QueryRow(
		`SELECT user_id, is_authenticated, first_auth_date, last_active, reminder_schedule, timezone FROM users WHERE user_id = ?`,
		userID,
	)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, models.ErrUserNotFound
	}
	if err != nil {
		slog.Error("SQLiteStore GetUser scan failed", "error", err, "user_id", userID)
		return nil, fmt.Errorf("failed to get user %s: %w", userID, err)
	}
	return u, nil
}

func (s *SQLiteStore) MarkAuthenticated(userID string) error {
	now := time.Now().UTC()
	_, err := s.db.Exec(
		`UPDATE users SET is_authenticated = 1, first_auth_date = COALESCE(first_auth_date, ?), last_active = ? WHERE user_id = ?`,
		now, now, userID,
	)
	if err != nil {
		slog.Error("SQLiteStore MarkAuthenticated failed", "error", err, "user_id", userID)
		return fmt.Errorf("failed to mark user %s authenticated: %w", userID, err)
	}
	slog.Debug("SQLiteStore MarkAuthenticated succeeded", "user_id", userID)
	return nil
}

func (s *SQLiteStore) TouchActivity(userID string) error {
	_, err := s.db.Exec(`UPDATE users SET last_active = ? WHERE user_id = ?`, time.Now().UTC(), userID)
	if err != nil {
		slog.Error("SQLiteStore TouchActivity failed", "error", err, "user_id", userID)
		return fmt.Errorf("failed to touch activity for %s: %w", userID, err)
	}
	return nil
}

func (s *SQLiteStore) SetTimezone(userID, timezone string) error {
	_, err := s.db.Exec(`UPDATE users SET timezone = ? WHERE user_id = ?`, timezone, userID)
	if err != nil {
		slog.Error("SQLiteStore SetTimezone failed", "error", err, "user_id", userID)
		return fmt.Errorf("failed to set timezone for %s: %w", userID, err)
	}
	slog.Debug("SQLiteStore SetTimezone succeeded", "user_id", userID, "timezone", timezone)
	return nil
}

func (s *SQLiteStore) SetReminderSchedule(userID string, schedule *models.ReminderSchedule) error {
	var value interface{}
	if schedule != nil {
		data, err := json.Marshal(schedule)
		if err != nil {
			return fmt.Errorf("failed to marshal schedule for %s: %w", userID, err)
		}
		value = string(data)
	}
	_, err := s.db.Exec(`UPDATE users SET reminder_schedule = ? WHERE user_id = ?`, value, userID)
	if err != nil {
		slog.Error("SQLiteStore SetReminderSchedule failed", "error", err, "user_id", userID)
		return fmt.Errorf("failed to set schedule for %s: %w", userID, err)
	}
	slog.Debug("SQLiteStore SetReminderSchedule succeeded", "user_id", userID, "cleared", schedule == nil)
	return nil
}

func (s *SQLiteStore) GetReminderSchedule(userID string) (*models.ReminderSchedule, error) {
	u, err := s.GetUser(userID)
	if err == models.ErrUserNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return u.Schedule, nil
}

func (s *SQLiteStore) ListScheduledUsers() ([]models.User, error) {
	rows, err := s.db.Query(
		`SELECT user_id, is_authenticated, first_auth_date, last_active, reminder_schedule, timezone FROM users WHERE reminder_schedule IS NOT NULL ORDER BY user_id`,
	)
	if err != nil {
		slog.Error("SQLiteStore ListScheduledUsers query failed", "error", err)
		return nil, fmt.Errorf("failed to query scheduled users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		u, err := scanUserRows(rows)
		if err != nil {
			slog.Error("SQLiteStore ListScheduledUsers scan failed", "error", err)
			return nil, err
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate scheduled users: %w", err)
	}
	slog.Debug("SQLiteStore ListScheduledUsers succeeded", "count", len(users))
	return users, nil
}

func (s *SQLiteStore) AddEntry(entry models.PracticeEntry) error {
	if err := entry.Validate(); err != nil {
		return err
	}
	_, err := s.db.Exec(
		`INSERT INTO entries (id, user_id, created_at, content, attitude, form, body, response) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.UserID, entry.Timestamp, entry.Content, entry.Attitude, entry.Form, entry.Body, entry.Response,
	)
	if err != nil {
		slog.Error("SQLiteStore AddEntry failed", "error", err, "user_id", entry.UserID)
		return fmt.Errorf("failed to insert entry for %s: %w", entry.UserID, err)
	}
	slog.Debug("SQLiteStore AddEntry succeeded", "user_id", entry.UserID, "entry_id", entry.ID)
	return nil
}

func (s *SQLiteStore) GetEntries(userID string) ([]models.PracticeEntry, error) {
	rows, err := s.db.Query(
		`SELECT id, user_id, created_at, content, attitude, form, body, response FROM entries WHERE user_id = ? ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		slog.Error("SQLiteStore GetEntries query failed", "error", err, "user_id", userID)
		return nil, fmt.Errorf("failed to query entries for %s: %w", userID, err)
	}
	defer rows.Close()

	var entries []models.PracticeEntry
	for rows.Next() {
		var e models.PracticeEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.Timestamp, &e.Content, &e.Attitude, &e.Form, &e.Body, &e.Response); err != nil {
			slog.Error("SQLiteStore GetEntries scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan entry row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate entry rows: %w", err)
	}
	return entries, nil
}

func (s *SQLiteStore) CountEntries(userID string) (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM entries WHERE user_id = ?`, userID).Scan(&count)
	if err != nil {
		slog.Error("SQLiteStore CountEntries failed", "error", err, "user_id", userID)
		return 0, fmt.Errorf("failed to count entries for %s: %w", userID, err)
	}
	return count, nil
}

func (s *SQLiteStore) AddRefusal(refusal models.Refusal) error {
	_, err := s.db.Exec(
		`INSERT INTO refusals (id, user_id, created_at) VALUES (?, ?, ?)`,
		refusal.ID, refusal.UserID, refusal.Timestamp,
	)
	if err != nil {
		slog.Error("SQLiteStore AddRefusal failed", "error", err, "user_id", refusal.UserID)
		return fmt.Errorf("failed to insert refusal for %s: %w", refusal.UserID, err)
	}
	slog.Debug("SQLiteStore AddRefusal succeeded", "user_id", refusal.UserID)
	return nil
}

func (s *SQLiteStore) GetRefusals(userID string) ([]models.Refusal, error) {
	rows, err := s.db.Query(
		`SELECT id, user_id, created_at FROM refusals WHERE user_id = ? ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		slog.Error("SQLiteStore GetRefusals query failed", "error", err, "user_id", userID)
		return nil, fmt.Errorf("failed to query refusals for %s: %w", userID, err)
	}
	defer rows.Close()

	var refusals []models.Refusal
	for rows.Next() {
		var r models.Refusal
		if err := rows.Scan(&r.ID, &r.UserID, &r.Timestamp); err != nil {
			slog.Error("SQLiteStore GetRefusals scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan refusal row: %w", err)
		}
		refusals = append(refusals, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate refusal rows: %w", err)
	}
	return refusals, nil
}

func (s *SQLiteStore) DeleteUserData(userID string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin delete transaction for %s: %w", userID, err)
	}
	for _, query := range []string{
		`DELETE FROM entries WHERE user_id = ?`,
		`DELETE FROM refusals WHERE user_id = ?`,
		`UPDATE users SET reminder_schedule = NULL WHERE user_id = ?`,
	} {
		if _, err := tx.Exec(query, userID); err != nil {
			tx.Rollback()
			slog.Error("SQLiteStore DeleteUserData failed", "error", err, "user_id", userID)
			return fmt.Errorf("failed to delete data for %s: %w", userID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit delete for %s: %w", userID, err)
	}
	slog.Debug("SQLiteStore DeleteUserData succeeded", "user_id", userID)
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
