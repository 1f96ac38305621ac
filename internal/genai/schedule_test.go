package genai

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/kickbot/kick/internal/models"
)

func TestExtractSchedule(t *testing.T) {
	want := models.ReminderSchedule{
		Times:     []string{"09:00", "21:00"},
		DayFilter: models.DayFilterWeekdays,
		Timezone:  "Europe/Moscow",
	}
	raw := `{"times": ["09:00", "21:00"], "day_filter": "weekdays", "timezone": "Europe/Moscow"}`

	cases := map[string]string{
		"plain json":       raw,
		"json fence":       "```json\n" + raw + "\n```",
		"anonymous fence":  "```\n" + raw + "\n```",
		"surrounding text": "Вот расписание:\n" + raw + "\nГотово.",
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			got, err := extractSchedule(input)
			if err != nil {
				t.Fatalf("extractSchedule failed: %v", err)
			}
			if len(got.Times) != 2 || got.Times[0] != want.Times[0] || got.DayFilter != want.DayFilter || got.Timezone != want.Timezone {
				t.Errorf("extractSchedule = %+v, want %+v", got, want)
			}
		})
	}
}

func TestExtractScheduleNoJSON(t *testing.T) {
	_, err := extractSchedule("не могу распознать расписание")
	if !errors.Is(err, models.ErrInvalidSchedule) {
		t.Errorf("extractSchedule = %v, want ErrInvalidSchedule", err)
	}
}

func TestBuildScheduleContext(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Moscow")
	if err != nil {
		t.Fatalf("LoadLocation failed: %v", err)
	}
	// A Wednesday.
	now := time.Date(2025, 6, 11, 14, 30, 0, 0, loc)

	got := buildScheduleContext(now, "Europe/Moscow", "напоминай в 9 утра")
	for _, fragment := range []string{
		"Wednesday",
		"Среда",
		"2025-06-11",
		"14:30",
		"timezone: Europe/Moscow",
		"User request: напоминай в 9 утра",
	} {
		if !strings.Contains(got, fragment) {
			t.Errorf("context missing %q:\n%s", fragment, got)
		}
	}
}

func TestFormatScheduleSummary(t *testing.T) {
	cases := []struct {
		schedule models.ReminderSchedule
		want     string
	}{
		{
			schedule: models.ReminderSchedule{Times: []string{"09:00", "21:00"}, DayFilter: models.DayFilterAll, Timezone: "Europe/Moscow"},
			want:     "Напоминания в 09:00, 21:00 (Europe/Moscow)",
		},
		{
			schedule: models.ReminderSchedule{Times: []string{"10:00"}, DayFilter: models.DayFilterWeekdays, Timezone: "Asia/Tokyo"},
			want:     "Напоминания в 10:00 (только в будни) (Asia/Tokyo)",
		},
		{
			schedule: models.ReminderSchedule{Times: []string{"11:00"}, DayFilter: models.DayFilterWeekends, Timezone: "UTC"},
			want:     "Напоминания в 11:00 (только в выходные) (UTC)",
		},
	}
	for _, tc := range cases {
		if got := FormatScheduleSummary(&tc.schedule); got != tc.want {
			t.Errorf("FormatScheduleSummary = %q, want %q", got, tc.want)
		}
	}
}
