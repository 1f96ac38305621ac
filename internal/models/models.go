// Package models defines core data types shared across the Kick bot modules.
//
// It contains the persisted record types (User, PracticeEntry, Refusal), the
// reminder schedule structure produced by the natural-language parser, the
// messaging wire types (Response, Receipt), and the sentinel errors used for
// validation and protocol failures.
package models

import (
	"fmt"
	"regexp"
	"time"
)

// DefaultTimezone is assigned to users that never picked a timezone.
const DefaultTimezone = "Europe/Moscow"

// User represents a bot user keyed by their canonical transport identifier.
type User struct {
	ID            string            `json:"id"`
	Authenticated bool              `json:"authenticated"`
	FirstAuthDate time.Time         `json:"first_auth_date,omitempty"`
	LastActive    time.Time         `json:"last_active,omitempty"`
	Timezone      string            `json:"timezone"`
	Schedule      *ReminderSchedule `json:"schedule,omitempty"`
}

// PracticeEntry is one completed guided-practice record. Immutable once
// written; all five answer fields must be non-empty.
type PracticeEntry struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Timestamp time.Time `json:"timestamp"`
	Content   string    `json:"content"`
	Attitude  string    `json:"attitude"`
	Form      string    `json:"form"`
	Body      string    `json:"body"`
	Response  string    `json:"response"`
}

// Validate checks that every required answer field is populated.
func (e *PracticeEntry) Validate() error {
	if e.UserID == "" {
		return fmt.Errorf("%w: user_id", ErrIncompleteEntry)
	}
	fields := map[string]string{
		"content":  e.Content,
		"attitude": e.Attitude,
		"form":     e.Form,
		"body":     e.Body,
		"response": e.Response,
	}
	for name, value := range fields {
		if value == "" {
			return fmt.Errorf("%w: %s", ErrIncompleteEntry, name)
		}
	}
	return nil
}

// Refusal records that a user declined a reminder invitation.
type Refusal struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Timestamp time.Time `json:"timestamp"`
}

// DayFilter selects which days of the week a reminder schedule covers.
type DayFilter string

const (
	DayFilterAll      DayFilter = "all"
	DayFilterWeekdays DayFilter = "weekdays"
	DayFilterWeekends DayFilter = "weekends"
)

// timePattern matches 24-hour HH:MM strings.
var timePattern = regexp.MustCompile(`^([0-1][0-9]|2[0-3]):[0-5][0-9]$`)

// ReminderSchedule is the structured result of parsing a natural-language
// reminder request: concrete clock times, a day-of-week filter, and the
// timezone the times are expressed in.
type ReminderSchedule struct {
	Times     []string  `json:"times"`
	DayFilter DayFilter `json:"day_filter"`
	Timezone  string    `json:"timezone"`
}

// Validate checks the schedule shape: at least one HH:MM time, a known day
// filter, and a timezone the runtime can resolve.
func (s *ReminderSchedule) Validate() error {
	if len(s.Times) == 0 {
		return fmt.Errorf("%w: no times", ErrInvalidSchedule)
	}
	for _, t := range s.Times {
		if !timePattern.MatchString(t) {
			return fmt.Errorf("%w: bad time %q", ErrInvalidSchedule, t)
		}
	}
	switch s.DayFilter {
	case DayFilterAll, DayFilterWeekdays, DayFilterWeekends:
	default:
		return fmt.Errorf("%w: bad day filter %q", ErrInvalidSchedule, s.DayFilter)
	}
	if s.Timezone == "" {
		return fmt.Errorf("%w: empty timezone", ErrInvalidSchedule)
	}
	if _, err := time.LoadLocation(s.Timezone); err != nil {
		return fmt.Errorf("%w: unknown timezone %q", ErrInvalidSchedule, s.Timezone)
	}
	return nil
}

// Response represents an incoming message from a user. Voice carries raw
// audio bytes when the transport delivered a voice note instead of text.
type Response struct {
	From  string `json:"from"`
	Body  string `json:"body"`
	Voice []byte `json:"voice,omitempty"`
	Time  int64  `json:"time"`
}

// MessageStatus describes the delivery state of an outbound message.
type MessageStatus string

const (
	MessageStatusSent      MessageStatus = "sent"
	MessageStatusDelivered MessageStatus = "delivered"
	MessageStatusRead      MessageStatus = "read"
	MessageStatusFailed    MessageStatus = "failed"
)

// Receipt represents a delivery status update for an outbound message.
type Receipt struct {
	To     string        `json:"to"`
	Status MessageStatus `json:"status"`
	Time   int64         `json:"time"`
}
