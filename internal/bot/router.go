package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kickbot/kick/internal/flow"
	"github.com/kickbot/kick/internal/genai"
	"github.com/kickbot/kick/internal/messaging"
	"github.com/kickbot/kick/internal/models"
	"github.com/kickbot/kick/internal/scheduler"
	"github.com/kickbot/kick/internal/store"
)

// GenAI is the language-model surface the router needs: free-form schedule
// parsing and voice transcription.
type GenAI interface {
	ParseSchedule(ctx context.Context, userInput, userTimezone string) (*models.ReminderSchedule, error)
	Transcribe(ctx context.Context, audio []byte, languageHint string) (string, error)
}

// transcribeLanguage hints the transcription model toward Russian.
const transcribeLanguage = "ru"

// dialogStage identifies a side conversation outside the practice wizard.
type dialogStage int

const (
	stageNone dialogStage = iota
	stageAwaitingPassword
	stageSelectingTimezone
	stageAwaitingCustomTimezone
	stageAwaitingSchedule
	stageVerifyingTranscript
	stageReminderPrompt
	stageConfirmingDelete
)

// dialog is the per-user side-conversation state. Wizard sessions live in the
// wizard itself; the dialog only tracks what a bare reply should mean next.
type dialog struct {
	stage      dialogStage
	transcript string
}

// Router interprets inbound messages and drives the wizard, authentication,
// schedule configuration, and reminders.
type Router struct {
	msg    messaging.Service
	wizard *flow.Wizard
	auth   Authenticator
	store  store.Store
	sched  *scheduler.Scheduler
	ai     GenAI

	mu      sync.Mutex
	dialogs map[string]*dialog
}

// Authenticator is the auth surface the router needs.
type Authenticator interface {
	IsAuthenticated(userID string) bool
	Authenticate(userID, attempt string) (bool, error)
	Touch(userID string)
}

// NewRouter wires the router over its collaborators.
func NewRouter(msg messaging.Service, wizard *flow.Wizard, auth Authenticator, st store.Store, sched *scheduler.Scheduler, ai GenAI) *Router {
	return &Router{
		msg:     msg,
		wizard:  wizard,
		auth:    auth,
		store:   st,
		sched:   sched,
		ai:      ai,
		dialogs: make(map[string]*dialog),
	}
}

// Run consumes inbound responses until the context is cancelled or the
// response channel closes.
func (r *Router) Run(ctx context.Context) {
	slog.Info("Router Run started")
	for {
		select {
		case <-ctx.Done():
			slog.Info("Router Run stopping", "reason", ctx.Err())
			return
		case resp, ok := <-r.msg.Responses():
			if !ok {
				slog.Info("Router Run response channel closed")
				return
			}
			r.HandleResponse(ctx, resp)
		}
	}
}

// HandleResponse processes one inbound message end to end. Panics in handler
// code are recovered and logged so one bad message cannot take the loop down.
func (r *Router) HandleResponse(ctx context.Context, resp models.Response) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("Router HandleResponse recovered from panic", "panic", rec, "from", resp.From)
		}
	}()

	userID, err := r.msg.ValidateAndCanonicalizeRecipient(resp.From)
	if err != nil {
		slog.Error("Router HandleResponse invalid sender", "error", err, "from", resp.From)
		return
	}

	d := r.dialog(userID)

	if !r.auth.IsAuthenticated(userID) {
		r.handleUnauthenticated(ctx, userID, d, resp)
		return
	}
	r.auth.Touch(userID)

	if len(resp.Voice) > 0 {
		r.handleVoice(ctx, userID, d, resp.Voice)
		return
	}

	text := strings.TrimSpace(resp.Body)
	if text == "" {
		return
	}
	if strings.HasPrefix(text, "/") {
		r.handleCommand(ctx, userID, d, text)
		return
	}

	switch d.stage {
	case stageSelectingTimezone:
		r.handleTimezoneSelection(ctx, userID, d, text)
	case stageAwaitingCustomTimezone:
		r.handleCustomTimezone(ctx, userID, d, text)
	case stageAwaitingSchedule:
		r.configureSchedule(ctx, userID, d, text)
	case stageVerifyingTranscript:
		r.handleTranscriptReply(ctx, userID, d, text)
	case stageReminderPrompt:
		r.handleReminderReply(ctx, userID, d, text)
	case stageConfirmingDelete:
		r.handleDeleteReply(ctx, userID, d, text)
	default:
		r.handleWizardInput(ctx, userID, text)
	}
}

// handleUnauthenticated runs the password gate. Any message from a user who
// has not authenticated is either a password attempt or triggers the prompt.
func (r *Router) handleUnauthenticated(ctx context.Context, userID string, d *dialog, resp models.Response) {
	if _, err := r.store.EnsureUser(userID); err != nil {
		slog.Error("Router failed to ensure user", "error", err, "user_id", userID)
	}

	text := strings.TrimSpace(resp.Body)
	if d.stage == stageAwaitingPassword && text != "" {
		ok, err := r.auth.Authenticate(userID, text)
		if err != nil {
			slog.Error("Router password check failed", "error", err, "user_id", userID)
			r.send(ctx, userID, phraseGenericError)
			return
		}
		if !ok {
			r.send(ctx, userID, phraseAuthFailed)
			return
		}
		d.stage = stageNone
		r.send(ctx, userID, phraseAuthSuccess+"\n\n"+phraseHelp)
		return
	}

	d.stage = stageAwaitingPassword
	r.send(ctx, userID, phraseAuthRequest)
}

// handleCommand dispatches a slash command. Commands abandon any pending side
// conversation.
func (r *Router) handleCommand(ctx context.Context, userID string, d *dialog, text string) {
	cmd := strings.ToLower(strings.Fields(text)[0])
	d.stage = stageNone
	d.transcript = ""
	slog.Debug("Router handleCommand", "user_id", userID, "command", cmd)

	switch cmd {
	case "/start":
		r.send(ctx, userID, phraseHelp)

	case "/practice":
		r.wizard.Start(ctx, userID)

	case "/schedule":
		r.startScheduleConfig(ctx, userID, d)

	case "/view_schedule":
		r.viewSchedule(ctx, userID)

	case "/disable_schedule":
		r.sched.CancelForUser(userID)
		if err := r.store.SetReminderSchedule(userID, nil); err != nil {
			slog.Error("Router failed to clear schedule", "error", err, "user_id", userID)
			r.send(ctx, userID, phraseGenericError)
			return
		}
		r.send(ctx, userID, phraseReminderDisabled)

	case "/entries":
		count, err := r.store.CountEntries(userID)
		if err != nil {
			slog.Error("Router failed to count entries", "error", err, "user_id", userID)
			r.send(ctx, userID, phraseGenericError)
			return
		}
		r.send(ctx, userID, fmt.Sprintf("Записей: %d", count))

	case "/delete_all":
		d.stage = stageConfirmingDelete
		r.send(ctx, userID, phraseDataClearConfirm+
			"\n1. "+phraseBtnConfirm+
			"\n2. "+phraseBtnCancel+
			"\n(Ответьте '1' или '2')")

	case "/cancel":
		r.wizard.Cancel(userID)
		r.send(ctx, userID, phraseCancelled)

	default:
		r.send(ctx, userID, phraseHelp)
	}
}

// handleWizardInput interprets a bare text reply against the wizard session:
// digits act as the numbered controls of the last directive, everything else
// is answer text.
func (r *Router) handleWizardInput(ctx context.Context, userID, text string) {
	st := r.wizard.Status(userID)
	if !st.Active {
		slog.Debug("Router ignoring message outside any session", "user_id", userID)
		r.send(ctx, userID, phraseHelp)
		return
	}

	if st.State == flow.StateReadyToSave {
		switch text {
		case "1":
			r.wizardCall(userID, r.wizard.Save(ctx, userID))
		case "2":
			r.wizardCall(userID, r.wizard.GoBack(ctx, userID))
		default:
			// Re-present the save controls.
			r.wizardCall(userID, r.wizard.Confirm(ctx, userID))
		}
		return
	}

	if st.HasPending {
		switch text {
		case "1":
			r.wizardCall(userID, r.wizard.Confirm(ctx, userID))
		case "2":
			r.wizardCall(userID, r.wizard.GoBack(ctx, userID))
		default:
			// More answer text: feed it to the accumulator on top of the
			// pending answer.
			r.wizardCall(userID, r.wizard.HandleText(userID, text))
		}
		return
	}

	if len(st.Choices) > 0 {
		if idx, err := strconv.Atoi(text); err == nil && idx >= 1 && idx <= len(st.Choices) {
			r.wizardCall(userID, r.wizard.SelectChoice(ctx, userID, st.Choices[idx-1]))
			return
		}
	}
	r.wizardCall(userID, r.wizard.HandleText(userID, text))
}

// wizardCall logs the protocol errors wizard operations can return.
func (r *Router) wizardCall(userID string, err error) {
	if err != nil {
		slog.Debug("Router wizard operation returned", "error", err, "user_id", userID)
	}
}

// handleVoice transcribes a voice note and routes the transcript into the
// active conversation.
func (r *Router) handleVoice(ctx context.Context, userID string, d *dialog, audio []byte) {
	if d.stage != stageAwaitingSchedule && !r.wizard.Status(userID).Active {
		slog.Debug("Router ignoring voice note outside any session", "user_id", userID)
		return
	}

	text, err := r.ai.Transcribe(ctx, audio, transcribeLanguage)
	if err != nil || strings.TrimSpace(text) == "" {
		slog.Error("Router voice transcription failed", "error", err, "user_id", userID)
		r.send(ctx, userID, phraseVoiceFailed)
		return
	}
	slog.Debug("Router voice transcribed", "user_id", userID, "length", len(text))

	if d.stage == stageAwaitingSchedule {
		// Show the transcript for verification before parsing it.
		d.transcript = text
		d.stage = stageVerifyingTranscript
		r.send(ctx, userID, "Распознано: "+text+
			"\n1. "+phraseBtnConfirm+
			"\n2. "+phraseBtnCancel+
			"\n(Ответьте '1' или '2')")
		return
	}

	// Wizard answer: the transcript goes straight into the debounce buffer.
	r.wizardCall(userID, r.wizard.HandleText(userID, text))
}

// startScheduleConfig begins the reminder setup conversation. The timezone
// question always comes first so schedule times land in the right zone.
func (r *Router) startScheduleConfig(ctx context.Context, userID string, d *dialog) {
	if _, err := r.store.EnsureUser(userID); err != nil {
		slog.Error("Router failed to load user for schedule config", "error", err, "user_id", userID)
		r.send(ctx, userID, phraseGenericError)
		return
	}
	d.stage = stageSelectingTimezone
	r.send(ctx, userID, renderTimezoneKeyboard())
}

// renderTimezoneKeyboard builds the numbered timezone list.
func renderTimezoneKeyboard() string {
	var sb strings.Builder
	sb.WriteString(phraseTimezoneQuestion)
	sb.WriteString("\n\n")
	for i, opt := range timezoneOptions {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, opt.Label)
	}
	fmt.Fprintf(&sb, "%d. %s\n", len(timezoneOptions)+1, timezoneCustomLabel)
	sb.WriteString("\n(Ответьте цифрой)")
	return sb.String()
}

func (r *Router) handleTimezoneSelection(ctx context.Context, userID string, d *dialog, text string) {
	idx, err := strconv.Atoi(text)
	if err != nil || idx < 1 || idx > len(timezoneOptions)+1 {
		r.send(ctx, userID, renderTimezoneKeyboard())
		return
	}
	if idx == len(timezoneOptions)+1 {
		d.stage = stageAwaitingCustomTimezone
		r.send(ctx, userID, phraseTimezoneCustom)
		return
	}
	r.setTimezone(ctx, userID, d, timezoneOptions[idx-1].Zone)
}

func (r *Router) handleCustomTimezone(ctx context.Context, userID string, d *dialog, text string) {
	if _, err := time.LoadLocation(text); err != nil {
		r.send(ctx, userID, fmt.Sprintf(phraseTimezoneInvalid, text))
		return
	}
	r.setTimezone(ctx, userID, d, text)
}

// setTimezone persists the chosen zone and moves on to schedule input.
func (r *Router) setTimezone(ctx context.Context, userID string, d *dialog, zone string) {
	if err := r.store.SetTimezone(userID, zone); err != nil {
		slog.Error("Router failed to store timezone", "error", err, "user_id", userID, "timezone", zone)
		r.send(ctx, userID, phraseGenericError)
		return
	}
	slog.Info("Router timezone set", "user_id", userID, "timezone", zone)
	d.stage = stageAwaitingSchedule
	r.send(ctx, userID, phraseReminderRequest)
}

// configureSchedule parses a free-form schedule description, persists the
// result, and registers the cron jobs. Parse failures keep the conversation
// in the schedule stage so the user can rephrase.
func (r *Router) configureSchedule(ctx context.Context, userID string, d *dialog, text string) {
	user, err := r.store.EnsureUser(userID)
	if err != nil {
		slog.Error("Router failed to load user for schedule parse", "error", err, "user_id", userID)
		r.send(ctx, userID, phraseGenericError)
		return
	}

	schedule, err := r.ai.ParseSchedule(ctx, text, user.Timezone)
	if err != nil {
		slog.Warn("Router schedule parse failed", "error", err, "user_id", userID)
		r.send(ctx, userID, phraseScheduleFailed)
		return
	}

	if err := r.store.SetReminderSchedule(userID, schedule); err != nil {
		slog.Error("Router failed to store schedule", "error", err, "user_id", userID)
		r.send(ctx, userID, phraseGenericError)
		return
	}
	if err := r.scheduleUser(userID, schedule); err != nil {
		slog.Error("Router failed to register reminder jobs", "error", err, "user_id", userID)
		r.send(ctx, userID, phraseGenericError)
		return
	}

	d.stage = stageNone
	d.transcript = ""
	r.send(ctx, userID, phraseReminderConfigured+"\n"+genai.FormatScheduleSummary(schedule))
}

// handleTranscriptReply handles the confirm/cancel step after a voice
// schedule was transcribed.
func (r *Router) handleTranscriptReply(ctx context.Context, userID string, d *dialog, text string) {
	switch text {
	case "1":
		transcript := d.transcript
		d.transcript = ""
		d.stage = stageAwaitingSchedule
		r.configureSchedule(ctx, userID, d, transcript)
	case "2":
		d.transcript = ""
		d.stage = stageAwaitingSchedule
		r.send(ctx, userID, phraseReminderRequest)
	default:
		r.send(ctx, userID, "Распознано: "+d.transcript+
			"\n1. "+phraseBtnConfirm+
			"\n2. "+phraseBtnCancel+
			"\n(Ответьте '1' или '2')")
	}
}

// handleReminderReply handles the yes/no answer to a reminder invitation.
// Yes starts a practice session; no records a refusal.
func (r *Router) handleReminderReply(ctx context.Context, userID string, d *dialog, text string) {
	d.stage = stageNone
	switch text {
	case "1":
		r.wizard.Start(ctx, userID)
	case "2":
		refusal := models.Refusal{
			ID:        uuid.NewString(),
			UserID:    userID,
			Timestamp: time.Now().UTC(),
		}
		if err := r.store.AddRefusal(refusal); err != nil {
			slog.Error("Router failed to record refusal", "error", err, "user_id", userID)
		}
		slog.Debug("Router reminder declined", "user_id", userID)
	default:
		// Not a button reply; treat it as a regular message.
		r.handleWizardInput(ctx, userID, text)
	}
}

// handleDeleteReply handles the confirm/cancel step of full data erasure.
func (r *Router) handleDeleteReply(ctx context.Context, userID string, d *dialog, text string) {
	switch text {
	case "1":
		d.stage = stageNone
		r.wizard.Cancel(userID)
		r.sched.CancelForUser(userID)
		if err := r.store.DeleteUserData(userID); err != nil {
			slog.Error("Router failed to delete user data", "error", err, "user_id", userID)
			r.send(ctx, userID, phraseGenericError)
			return
		}
		slog.Info("Router user data deleted", "user_id", userID)
		r.send(ctx, userID, phraseDataCleared)
	case "2":
		d.stage = stageNone
		r.send(ctx, userID, phraseCancelled)
	default:
		r.send(ctx, userID, phraseDataClearConfirm+
			"\n1. "+phraseBtnConfirm+
			"\n2. "+phraseBtnCancel+
			"\n(Ответьте '1' или '2')")
	}
}

// viewSchedule shows the stored schedule and the next fire time.
func (r *Router) viewSchedule(ctx context.Context, userID string) {
	schedule, err := r.store.GetReminderSchedule(userID)
	if err != nil {
		slog.Error("Router failed to load schedule", "error", err, "user_id", userID)
		r.send(ctx, userID, phraseGenericError)
		return
	}
	if schedule == nil {
		r.send(ctx, userID, phraseNoSchedule)
		return
	}
	body := genai.FormatScheduleSummary(schedule)
	if next, ok := r.sched.NextRun(userID); ok {
		loc, err := time.LoadLocation(schedule.Timezone)
		if err == nil {
			next = next.In(loc)
		}
		body += fmt.Sprintf("\nСледующее напоминание: %s", next.Format("02.01.2006 15:04"))
	}
	r.send(ctx, userID, body)
}

// dialog returns the user's side-conversation state, creating it if absent.
func (r *Router) dialog(userID string) *dialog {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.dialogs[userID]
	if !ok {
		d = &dialog{}
		r.dialogs[userID] = d
	}
	return d
}

// send delivers text to the user, logging delivery failures.
func (r *Router) send(ctx context.Context, userID, body string) {
	if err := r.msg.SendMessage(ctx, userID, body); err != nil {
		slog.Error("Router failed to send message", "error", err, "user_id", userID)
	}
}
