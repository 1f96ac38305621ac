package bot

import (
	"context"
	"log/slog"

	"github.com/kickbot/kick/internal/models"
)

// scheduleUser registers cron jobs that deliver reminder invitations for the
// given schedule.
func (r *Router) scheduleUser(userID string, schedule *models.ReminderSchedule) error {
	return r.sched.ScheduleForUser(userID, schedule, func() {
		r.SendReminder(context.Background(), userID)
	})
}

// SendReminder delivers a reminder invitation and arms the yes/no reply.
// A pending wizard session is left untouched; the invitation reply decides
// whether a fresh session starts.
func (r *Router) SendReminder(ctx context.Context, userID string) {
	d := r.dialog(userID)
	d.stage = stageReminderPrompt
	slog.Info("Router SendReminder", "user_id", userID)
	r.send(ctx, userID, phraseReminderPrompt+
		"\n1. "+phraseBtnYes+
		"\n2. "+phraseBtnNo+
		"\n(Ответьте '1' или '2')")
}

// RestoreSchedules re-registers reminder jobs for every stored schedule.
// Called once at startup; invalid stored schedules are skipped with an error
// log rather than aborting the rest.
func (r *Router) RestoreSchedules(ctx context.Context) error {
	users, err := r.store.ListScheduledUsers()
	if err != nil {
		return err
	}
	restored := 0
	for _, u := range users {
		if u.Schedule == nil {
			continue
		}
		if err := r.scheduleUser(u.ID, u.Schedule); err != nil {
			slog.Error("Router RestoreSchedules failed for user", "error", err, "user_id", u.ID)
			continue
		}
		restored++
	}
	slog.Info("Router RestoreSchedules done", "restored", restored, "total", len(users))
	return nil
}
