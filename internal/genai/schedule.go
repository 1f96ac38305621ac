package genai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/kickbot/kick/internal/models"
)

// scheduleParserPrompt instructs the model to turn a free-form reminder
// request into the strict schedule JSON. Date/time context is injected at
// the head of the user message so relative references resolve correctly.
const scheduleParserPrompt = `Speak Russian. Parse natural language reminder request into specific times.

You will receive current date/time context at the beginning of the user's message. Use this context to interpret:
- Relative time references like "завтра" (tomorrow), "сегодня" (today), "через час" (in an hour)
- Weekday references like "в будни" (weekdays), "в понедельник" (on Monday)
- Time-relative phrases like "после обеда" (after lunch), based on current time

If request is vague, make reasonable assumptions:
- Morning (утро): 08:00-12:00
- Lunch (обед): 12:00-14:00
- Afternoon (день): 14:00-18:00
- Evening (вечер): 18:00-22:00
- "Often" or "frequently" (часто): every 2-3 hours

Output ONLY a valid JSON object in this exact format:
{
  "times": ["HH:MM", "HH:MM", ...],
  "day_filter": "all" | "weekdays" | "weekends",
  "timezone": "<user's timezone from context>"
}

day_filter values:
- "all": every day (Monday-Sunday)
- "weekdays": Monday to Friday only
- "weekends": Saturday and Sunday only

IMPORTANT: Use the timezone provided in the context for the "timezone" field.

Do NOT add any explanations, markdown, or extra text. Just the JSON object.`

// Parsing parameters tuned for consistent structured output.
const (
	scheduleParseTemperature = 0.3
	scheduleParseMaxTokens   = 500
)

var (
	fencedJSONPattern = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")
	bareJSONPattern   = regexp.MustCompile(`(?s)\{[^{}]*(?:\{[^{}]*\}[^{}]*)*\}`)
)

var weekdayNamesRU = map[time.Weekday]string{
	time.Monday:    "Понедельник",
	time.Tuesday:   "Вторник",
	time.Wednesday: "Среда",
	time.Thursday:  "Четверг",
	time.Friday:    "Пятница",
	time.Saturday:  "Суббота",
	time.Sunday:    "Воскресенье",
}

// ParseSchedule interprets a free-form reminder request (Russian or English)
// into a validated ReminderSchedule expressed in the user's timezone.
// Returns an error wrapping models.ErrInvalidSchedule when the model output
// cannot be turned into a valid schedule.
func (c *Client) ParseSchedule(ctx context.Context, userInput, userTimezone string) (*models.ReminderSchedule, error) {
	if userTimezone == "" {
		userTimezone = models.DefaultTimezone
	}
	loc, err := time.LoadLocation(userTimezone)
	if err != nil {
		return nil, fmt.Errorf("%w: unknown timezone %q", models.ErrInvalidSchedule, userTimezone)
	}
	now := time.Now().In(loc)
	slog.Debug("GenAI ParseSchedule invoked", "timezone", userTimezone, "input_length", len(userInput))

	userMessage := buildScheduleContext(now, userTimezone, userInput)
	raw, err := c.complete(ctx, scheduleParserPrompt, userMessage, scheduleParseTemperature, scheduleParseMaxTokens)
	if err != nil {
		return nil, fmt.Errorf("failed to parse schedule request: %w", err)
	}
	slog.Debug("GenAI ParseSchedule model response", "length", len(raw))

	schedule, err := extractSchedule(raw)
	if err != nil {
		slog.Error("GenAI ParseSchedule extraction failed", "error", err)
		return nil, err
	}
	if err := schedule.Validate(); err != nil {
		slog.Error("GenAI ParseSchedule validation failed", "error", err)
		return nil, err
	}
	slog.Info("GenAI ParseSchedule succeeded", "times", len(schedule.Times), "day_filter", schedule.DayFilter)
	return schedule, nil
}

// buildScheduleContext prepends the current date, time, and weekday (English
// and Russian) to the user's request.
func buildScheduleContext(now time.Time, timezone, userInput string) string {
	return fmt.Sprintf(
		"Context: Today is %s (%s), %s, current time is %s (timezone: %s).\n\nUser request: %s",
		now.Weekday().String(),
		weekdayNamesRU[now.Weekday()],
		now.Format("2006-01-02"),
		now.Format("15:04"),
		timezone,
		userInput,
	)
}

// extractSchedule pulls the schedule JSON out of the model response. The
// model may wrap the object in a markdown fence or surround it with prose
// despite the instructions, so fenced and bare-object fallbacks are tried
// before giving up.
func extractSchedule(raw string) (*models.ReminderSchedule, error) {
	var schedule models.ReminderSchedule
	if err := json.Unmarshal([]byte(raw), &schedule); err == nil {
		return &schedule, nil
	}
	if m := fencedJSONPattern.FindStringSubmatch(raw); m != nil {
		if err := json.Unmarshal([]byte(m[1]), &schedule); err == nil {
			return &schedule, nil
		}
	}
	if m := bareJSONPattern.FindString(raw); m != "" {
		if err := json.Unmarshal([]byte(m), &schedule); err == nil {
			return &schedule, nil
		}
	}
	return nil, fmt.Errorf("%w: no JSON object in model response", models.ErrInvalidSchedule)
}

// FormatScheduleSummary renders a schedule as a short human-readable Russian
// summary for confirmation messages.
func FormatScheduleSummary(schedule *models.ReminderSchedule) string {
	times := ""
	for i, t := range schedule.Times {
		if i > 0 {
			times += ", "
		}
		times += t
	}
	suffix := ""
	switch schedule.DayFilter {
	case models.DayFilterWeekdays:
		suffix = " (только в будни)"
	case models.DayFilterWeekends:
		suffix = " (только в выходные)"
	}
	return fmt.Sprintf("Напоминания в %s%s (%s)", times, suffix, schedule.Timezone)
}
