package models

import "errors"

// Sentinel errors shared across packages. Callers match them with errors.Is
// and wrap them with fmt.Errorf("%w: ...") for context.
var (
	// ErrIncompleteEntry indicates a practice entry is missing a required field.
	ErrIncompleteEntry = errors.New("practice entry missing required field")

	// ErrInvalidSchedule indicates a reminder schedule failed validation.
	ErrInvalidSchedule = errors.New("invalid reminder schedule")

	// ErrNoSession indicates a wizard event arrived for a user with no
	// active guided-practice session.
	ErrNoSession = errors.New("no active session")

	// ErrEmptyAnswer indicates a confirm arrived with no pending answer or a
	// whitespace-only one.
	ErrEmptyAnswer = errors.New("empty answer")

	// ErrNotReadyToSave indicates save was requested before all fields were
	// confirmed.
	ErrNotReadyToSave = errors.New("session not ready to save")

	// ErrUserNotFound indicates a store lookup for an unknown user.
	ErrUserNotFound = errors.New("user not found")
)
