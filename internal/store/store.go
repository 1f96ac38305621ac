// Package store provides storage backends for Kick.
//
// A Store persists users (with auth state, timezone, and reminder schedule),
// completed practice entries, and reminder refusals. SQLite and PostgreSQL
// backends share embedded migrations; an in-memory backend backs tests.
package store

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kickbot/kick/internal/models"
)

// Store defines the persistence operations used by the bot.
type Store interface {
	// EnsureUser returns the user record, creating it if absent.
	EnsureUser(userID string) (*models.User, error)
	// GetUser returns the user record or models.ErrUserNotFound.
	GetUser(userID string) (*models.User, error)
	// MarkAuthenticated sets the user's auth flag and first-auth timestamp.
	MarkAuthenticated(userID string) error
	// TouchActivity updates the user's last-active timestamp.
	TouchActivity(userID string) error
	// SetTimezone stores the user's IANA timezone name.
	SetTimezone(userID, timezone string) error
	// SetReminderSchedule stores the user's schedule; nil clears it.
	SetReminderSchedule(userID string, schedule *models.ReminderSchedule) error
	// GetReminderSchedule returns the stored schedule, or nil when none is set.
	GetReminderSchedule(userID string) (*models.ReminderSchedule, error)
	// ListScheduledUsers returns every user with a stored reminder schedule.
	ListScheduledUsers() ([]models.User, error)

	// AddEntry persists a completed practice entry after validation.
	AddEntry(entry models.PracticeEntry) error
	// GetEntries returns the user's entries, newest first.
	GetEntries(userID string) ([]models.PracticeEntry, error)
	// CountEntries returns the number of entries for the user.
	CountEntries(userID string) (int, error)

	// AddRefusal records a declined reminder invitation.
	AddRefusal(refusal models.Refusal) error
	// GetRefusals returns the user's refusals, newest first.
	GetRefusals(userID string) ([]models.Refusal, error)

	// DeleteUserData removes all entries and refusals for the user and
	// clears their reminder schedule. The user row itself is kept.
	DeleteUserData(userID string) error

	Close() error
}

// Opts holds configuration options for store constructors.
type Opts struct {
	// DSN is the database connection string: a file path for SQLite or a
	// postgres:// URL / key=value DSN for PostgreSQL.
	DSN string
}

// Option defines a configuration option for store constructors.
type Option func(*Opts)

// WithDSN sets the database connection string.
func WithDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}

// DetectDSNType reports "postgres" for PostgreSQL connection strings and
// "sqlite" otherwise (plain file paths).
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return "postgres"
	}
	if strings.Contains(dsn, "host=") || strings.Contains(dsn, "dbname=") {
		return "postgres"
	}
	return "sqlite"
}

// InMemoryStore is a map-backed Store used in tests and ephemeral runs.
type InMemoryStore struct {
	mu       sync.Mutex
	users    map[string]*models.User
	entries  map[string][]models.PracticeEntry
	refusals map[string][]models.Refusal
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		users:    make(map[string]*models.User),
		entries:  make(map[string][]models.PracticeEntry),
		refusals: make(map[string][]models.Refusal),
	}
}

func (s *InMemoryStore) EnsureUser(userID string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		u = &models.User{ID: userID, Timezone: models.DefaultTimezone}
		s.users[userID] = u
	}
	cp := *u
	return &cp, nil
}

func (s *InMemoryStore) GetUser(userID string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, models.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *InMemoryStore) MarkAuthenticated(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.ensureLocked(userID)
	u.Authenticated = true
	if u.FirstAuthDate.IsZero() {
		u.FirstAuthDate = time.Now().UTC()
	}
	return nil
}

func (s *InMemoryStore) TouchActivity(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLocked(userID).LastActive = time.Now().UTC()
	return nil
}

func (s *InMemoryStore) SetTimezone(userID, timezone string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLocked(userID).Timezone = timezone
	return nil
}

func (s *InMemoryStore) SetReminderSchedule(userID string, schedule *models.ReminderSchedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLocked(userID).Schedule = schedule
	return nil
}

func (s *InMemoryStore) GetReminderSchedule(userID string) (*models.ReminderSchedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok || u.Schedule == nil {
		return nil, nil
	}
	cp := *u.Schedule
	return &cp, nil
}

func (s *InMemoryStore) ListScheduledUsers() ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var users []models.User
	for _, u := range s.users {
		if u.Schedule != nil {
			users = append(users, *u)
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

func (s *InMemoryStore) AddEntry(entry models.PracticeEntry) error {
	if err := entry.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[entry.UserID] = append(s.entries[entry.UserID], entry)
	return nil
}

func (s *InMemoryStore) GetEntries(userID string) ([]models.PracticeEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := append([]models.PracticeEntry(nil), s.entries[userID]...)
	sort.Slice(entries, func(i, j int) bool { return entries[i].Timestamp.After(entries[j].Timestamp) })
	return entries, nil
}

func (s *InMemoryStore) CountEntries(userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries[userID]), nil
}

func (s *InMemoryStore) AddRefusal(refusal models.Refusal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refusals[refusal.UserID] = append(s.refusals[refusal.UserID], refusal)
	return nil
}

func (s *InMemoryStore) GetRefusals(userID string) ([]models.Refusal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	refusals := append([]models.Refusal(nil), s.refusals[userID]...)
	sort.Slice(refusals, func(i, j int) bool { return refusals[i].Timestamp.After(refusals[j].Timestamp) })
	return refusals, nil
}

func (s *InMemoryStore) DeleteUserData(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, userID)
	delete(s.refusals, userID)
	if u, ok := s.users[userID]; ok {
		u.Schedule = nil
	}
	return nil
}

func (s *InMemoryStore) Close() error {
	return nil
}

// ensureLocked returns the user record, creating it if absent. Caller holds mu.
func (s *InMemoryStore) ensureLocked(userID string) *models.User {
	u, ok := s.users[userID]
	if !ok {
		u = &models.User{ID: userID, Timezone: models.DefaultTimezone}
		s.users[userID] = u
	}
	return u
}
