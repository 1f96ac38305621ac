// Package auth implements the shared-password access gate.
//
// Every user must present the single bot password once; the flag is
// persisted so authentication survives restarts. All protected entry points
// consult IsAuthenticated before acting.
package auth

import (
	"crypto/subtle"
	"fmt"
	"log/slog"

	"github.com/kickbot/kick/internal/models"
)

// UserStore is the persistence surface the authenticator needs.
type UserStore interface {
	EnsureUser(userID string) (*models.User, error)
	GetUser(userID string) (*models.User, error)
	MarkAuthenticated(userID string) error
	TouchActivity(userID string) error
}

// Authenticator checks and records shared-password authentication.
type Authenticator struct {
	store    UserStore
	password string
}

// NewAuthenticator creates an authenticator with the configured password.
func NewAuthenticator(store UserStore, password string) (*Authenticator, error) {
	if password == "" {
		return nil, fmt.Errorf("bot password not set")
	}
	return &Authenticator{store: store, password: password}, nil
}

// IsAuthenticated reports whether the user has presented the password.
// Unknown users and store failures read as unauthenticated.
func (a *Authenticator) IsAuthenticated(userID string) bool {
	u, err := a.store.GetUser(userID)
	if err != nil {
		if err != models.ErrUserNotFound {
			slog.Error("Authenticator IsAuthenticated store lookup failed", "error", err, "user_id", userID)
		}
		return false
	}
	return u.Authenticated
}

// Authenticate checks attempt against the shared password, persisting the
// auth flag on success. Returns whether the attempt succeeded.
func (a *Authenticator) Authenticate(userID, attempt string) (bool, error) {
	if _, err := a.store.EnsureUser(userID); err != nil {
		return false, fmt.Errorf("failed to ensure user %s: %w", userID, err)
	}
	if subtle.ConstantTimeCompare([]byte(attempt), []byte(a.password)) != 1 {
		slog.Debug("Authenticator Authenticate wrong password", "user_id", userID)
		return false, nil
	}
	if err := a.store.MarkAuthenticated(userID); err != nil {
		return false, fmt.Errorf("failed to persist authentication for %s: %w", userID, err)
	}
	slog.Info("Authenticator Authenticate user authenticated", "user_id", userID)
	return true, nil
}

// Touch records user activity; failures are logged, not propagated.
func (a *Authenticator) Touch(userID string) {
	if err := a.store.TouchActivity(userID); err != nil {
		slog.Error("Authenticator Touch failed", "error", err, "user_id", userID)
	}
}
