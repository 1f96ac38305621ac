package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/kickbot/kick/internal/models"
)

// scanUser scans a user from a single sql.Row.
func scanUser(row *sql.Row) (*models.User, error) {
	var u models.User
	var firstAuth, lastActive sql.NullTime
	var scheduleJSON sql.NullString
	err := row.Scan(&u.ID, &u.Authenticated, &firstAuth, &lastActive, &scheduleJSON, &u.Timezone)
	if err != nil {
		return nil, err
	}
	return finishUser(&u, firstAuth, lastActive, scheduleJSON)
}

// scanUserRows scans a user from sql.Rows.
func scanUserRows(rows *sql.Rows) (*models.User, error) {
	var u models.User
	var firstAuth, lastActive sql.NullTime
	var scheduleJSON sql.NullString
	err := rows.Scan(&u.ID, &u.Authenticated, &firstAuth, &lastActive, &scheduleJSON, &u.Timezone)
	if err != nil {
		return nil, fmt.Errorf("scan user failed: %w", err)
	}
	return finishUser(&u, firstAuth, lastActive, scheduleJSON)
}

func finishUser(u *models.User, firstAuth, lastActive sql.NullTime, scheduleJSON sql.NullString) (*models.User, error) {
	if firstAuth.Valid {
		u.FirstAuthDate = firstAuth.Time
	}
	if lastActive.Valid {
		u.LastActive = lastActive.Time
	}
	if scheduleJSON.Valid && scheduleJSON.String != "" {
		var schedule models.ReminderSchedule
		if err := json.Unmarshal([]byte(scheduleJSON.String), &schedule); err != nil {
			return nil, fmt.Errorf("failed to decode stored schedule for %s: %w", u.ID, err)
		}
		u.Schedule = &schedule
	}
	return u, nil
}
