// Package scheduler manages per-user reminder cron jobs.
//
// Each user's ReminderSchedule expands into one cron entry per clock time,
// pinned to the user's timezone via a CRON_TZ spec prefix and restricted by
// the schedule's day filter.
package scheduler

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/kickbot/kick/internal/models"
)

// Task is the callback fired when a reminder job triggers.
type Task func()

// Scheduler wraps a single cron runner and tracks which entries belong to
// which user so a schedule change can replace them atomically.
type Scheduler struct {
	cron *cron.Cron
	mu   sync.Mutex
	jobs map[string][]cron.EntryID
}

// NewScheduler creates a stopped scheduler; call Start to begin firing jobs.
func NewScheduler() *Scheduler {
	c := cron.New(
		cron.WithParser(cron.NewParser(cron.Minute|cron.Hour|cron.Dom|cron.Month|cron.Dow)),
		cron.WithChain(cron.Recover(cron.DefaultLogger)),
	)
	return &Scheduler{
		cron: c,
		jobs: make(map[string][]cron.EntryID),
	}
}

// Start begins running scheduled jobs in their own goroutine.
func (s *Scheduler) Start() {
	slog.Debug("Scheduler Start")
	s.cron.Start()
}

// Stop stops firing new jobs and waits for running ones to finish.
func (s *Scheduler) Stop() {
	slog.Debug("Scheduler Stop")
	<-s.cron.Stop().Done()
}

// ScheduleForUser replaces the user's reminder jobs with one cron entry per
// schedule time, each firing task.
func (s *Scheduler) ScheduleForUser(userID string, schedule *models.ReminderSchedule, task Task) error {
	if err := schedule.Validate(); err != nil {
		return err
	}
	s.CancelForUser(userID)

	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []cron.EntryID
	for _, at := range schedule.Times {
		spec := cronSpec(at, schedule.DayFilter, schedule.Timezone)
		id, err := s.cron.AddFunc(spec, task)
		if err != nil {
			for _, added := range ids {
				s.cron.Remove(added)
			}
			slog.Error("Scheduler ScheduleForUser failed to add entry", "error", err, "user_id", userID, "spec", spec)
			return fmt.Errorf("failed to schedule %s for %s: %w", at, userID, err)
		}
		ids = append(ids, id)
	}
	s.jobs[userID] = ids
	slog.Info("Scheduler ScheduleForUser registered jobs", "user_id", userID, "count", len(ids), "day_filter", schedule.DayFilter, "timezone", schedule.Timezone)
	return nil
}

// CancelForUser removes all of the user's reminder jobs. A no-op when none
// are registered.
func (s *Scheduler) CancelForUser(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids, ok := s.jobs[userID]
	if !ok {
		return
	}
	for _, id := range ids {
		s.cron.Remove(id)
	}
	delete(s.jobs, userID)
	slog.Debug("Scheduler CancelForUser removed jobs", "user_id", userID, "count", len(ids))
}

// JobCount returns the number of registered jobs for the user.
func (s *Scheduler) JobCount(userID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs[userID])
}

// NextRun returns the earliest upcoming fire time among the user's jobs.
// The second result is false when the user has no jobs or the scheduler is
// not running.
func (s *Scheduler) NextRun(userID string) (time.Time, bool) {
	s.mu.Lock()
	ids := append([]cron.EntryID(nil), s.jobs[userID]...)
	s.mu.Unlock()

	var next time.Time
	for _, id := range ids {
		entry := s.cron.Entry(id)
		if entry.Next.IsZero() {
			continue
		}
		if next.IsZero() || entry.Next.Before(next) {
			next = entry.Next
		}
	}
	return next, !next.IsZero()
}

// cronSpec builds a five-field cron spec with a CRON_TZ prefix for one
// HH:MM time. The time string is already validated.
func cronSpec(at string, filter models.DayFilter, timezone string) string {
	parts := strings.SplitN(at, ":", 2)
	hour, _ := strconv.Atoi(parts[0])
	minute, _ := strconv.Atoi(parts[1])

	// Day-of-week field uses 0=Sunday.
	dow := "*"
	switch filter {
	case models.DayFilterWeekdays:
		dow = "1-5"
	case models.DayFilterWeekends:
		dow = "0,6"
	}
	return fmt.Sprintf("CRON_TZ=%s %d %d * * %s", timezone, minute, hour, dow)
}
