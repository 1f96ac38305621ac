package bot

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kickbot/kick/internal/auth"
	"github.com/kickbot/kick/internal/flow"
	"github.com/kickbot/kick/internal/messaging"
	"github.com/kickbot/kick/internal/models"
	"github.com/kickbot/kick/internal/scheduler"
	"github.com/kickbot/kick/internal/store"
)

const (
	testPassword = "letmein"
	testUser     = "79160000001"
)

// fakeMessenger records outbound messages and satisfies messaging.Service.
type fakeMessenger struct {
	mu   sync.Mutex
	sent []string
}

func (f *fakeMessenger) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	return messaging.CanonicalizeRecipient(recipient)
}

func (f *fakeMessenger) SendMessage(ctx context.Context, to, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, body)
	return nil
}

func (f *fakeMessenger) Start(ctx context.Context) error   { return nil }
func (f *fakeMessenger) Stop() error                       { return nil }
func (f *fakeMessenger) Receipts() <-chan models.Receipt   { return nil }
func (f *fakeMessenger) Responses() <-chan models.Response { return nil }

func (f *fakeMessenger) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func (f *fakeMessenger) last() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return ""
	}
	return f.sent[len(f.sent)-1]
}

// waitForCount blocks until n messages were sent, allowing debounced wizard
// output to arrive.
func (f *fakeMessenger) waitForCount(t *testing.T, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if f.count() >= n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d sent messages, have %d (last: %q)", n, f.count(), f.last())
}

// fakeGenAI returns canned results for schedule parsing and transcription.
type fakeGenAI struct {
	schedule   *models.ReminderSchedule
	parseErr   error
	transcript string
}

func (f *fakeGenAI) ParseSchedule(ctx context.Context, userInput, userTimezone string) (*models.ReminderSchedule, error) {
	if f.parseErr != nil {
		return nil, f.parseErr
	}
	return f.schedule, nil
}

func (f *fakeGenAI) Transcribe(ctx context.Context, audio []byte, languageHint string) (string, error) {
	return f.transcript, nil
}

type testBot struct {
	router *Router
	msg    *fakeMessenger
	store  *store.InMemoryStore
	sched  *scheduler.Scheduler
	ai     *fakeGenAI
}

func newTestBot(t *testing.T) *testBot {
	t.Helper()
	msg := &fakeMessenger{}
	st := store.NewInMemoryStore()
	presenter := NewPresenter(msg)
	committer := flow.NewCommitter(st)
	wizard := flow.NewWizard(flow.PracticeFields(), presenter, committer,
		flow.WithDebounceDelay(20*time.Millisecond))
	authn, err := auth.NewAuthenticator(st, testPassword)
	if err != nil {
		t.Fatalf("failed to create authenticator: %v", err)
	}
	sched := scheduler.NewScheduler()
	ai := &fakeGenAI{}
	return &testBot{
		router: NewRouter(msg, wizard, authn, st, sched, ai),
		msg:    msg,
		store:  st,
		sched:  sched,
		ai:     ai,
	}
}

func (b *testBot) say(text string) {
	b.router.HandleResponse(context.Background(), models.Response{From: testUser, Body: text})
}

func (b *testBot) sayVoice(audio []byte) {
	b.router.HandleResponse(context.Background(), models.Response{From: testUser, Voice: audio})
}

// authenticate walks the password gate.
func (b *testBot) authenticate(t *testing.T) {
	t.Helper()
	b.say("привет")
	b.say(testPassword)
	if !strings.Contains(b.msg.last(), phraseAuthSuccess) {
		t.Fatalf("authentication did not succeed, last message: %q", b.msg.last())
	}
}

func TestPasswordGate(t *testing.T) {
	b := newTestBot(t)

	b.say("привет")
	if b.msg.last() != phraseAuthRequest {
		t.Fatalf("first contact = %q, want password prompt", b.msg.last())
	}

	b.say("wrong")
	if b.msg.last() != phraseAuthFailed {
		t.Fatalf("wrong password = %q, want failure notice", b.msg.last())
	}

	b.say(testPassword)
	if !strings.Contains(b.msg.last(), phraseAuthSuccess) {
		t.Fatalf("right password = %q, want success", b.msg.last())
	}

	u, err := b.store.GetUser(testUser)
	if err != nil || !u.Authenticated {
		t.Errorf("auth flag not persisted: user=%+v err=%v", u, err)
	}
}

func TestPracticeCommandStartsWizard(t *testing.T) {
	b := newTestBot(t)
	b.authenticate(t)

	b.say("/practice")
	fields := flow.PracticeFields()
	if b.msg.last() != fields[0].Prompt {
		t.Fatalf("first field prompt = %q, want %q", b.msg.last(), fields[0].Prompt)
	}
}

func TestWizardAnswerConfirmAdvance(t *testing.T) {
	b := newTestBot(t)
	b.authenticate(t)
	b.say("/practice")

	before := b.msg.count()
	b.say("увидел как коллега перебил меня")
	b.msg.waitForCount(t, before+1)
	if !strings.Contains(b.msg.last(), "увидел как коллега перебил меня") {
		t.Fatalf("confirmation missing answer text: %q", b.msg.last())
	}
	if !strings.Contains(b.msg.last(), phraseConfirmAnswer) {
		t.Fatalf("confirmation missing confirm control: %q", b.msg.last())
	}

	b.say("1")
	fields := flow.PracticeFields()
	if b.msg.last() != fields[1].Prompt {
		t.Fatalf("after confirm = %q, want second prompt %q", b.msg.last(), fields[1].Prompt)
	}
}

func TestWizardGoBackFromConfirmation(t *testing.T) {
	b := newTestBot(t)
	b.authenticate(t)
	b.say("/practice")

	before := b.msg.count()
	b.say("наблюдение")
	b.msg.waitForCount(t, before+1)
	b.say("1")

	before = b.msg.count()
	b.say("раздражение")
	b.msg.waitForCount(t, before+1)
	b.say("2")

	// Back at the first field with the collected answer pre-filled.
	if !strings.Contains(b.msg.last(), "наблюдение") {
		t.Fatalf("go back did not re-present prior answer: %q", b.msg.last())
	}
}

func TestWizardChoiceFieldDigitSelection(t *testing.T) {
	b := newTestBot(t)
	b.authenticate(t)
	b.say("/practice")

	// Answer the first two fields to reach the choice field.
	for _, answer := range []string{"наблюдение", "раздражение"} {
		before := b.msg.count()
		b.say(answer)
		b.msg.waitForCount(t, before+1)
		b.say("1")
	}
	if !strings.Contains(b.msg.last(), "1. "+flow.FormChoices[0]) {
		t.Fatalf("choice prompt missing options: %q", b.msg.last())
	}

	b.say("3")
	if !strings.Contains(b.msg.last(), flow.FormChoices[2]) {
		t.Fatalf("digit selection not reflected: %q", b.msg.last())
	}
}

func TestWizardFullRunSavesEntry(t *testing.T) {
	b := newTestBot(t)
	b.authenticate(t)
	b.say("/practice")

	answers := []string{"наблюдение", "раздражение", "", "напряжение в плечах", "вдох и пауза"}
	for i, answer := range answers {
		if i == 2 {
			// Choice field taken by digit.
			b.say("1")
			b.say("1")
			continue
		}
		before := b.msg.count()
		b.say(answer)
		b.msg.waitForCount(t, before+1)
		b.say("1")
	}

	if !strings.Contains(b.msg.last(), phraseCompletePrompt) {
		t.Fatalf("expected save controls, got %q", b.msg.last())
	}
	b.say("1")
	if b.msg.last() != phrasePracticeSaved {
		t.Fatalf("save ack = %q, want %q", b.msg.last(), phrasePracticeSaved)
	}

	entries, err := b.store.GetEntries(testUser)
	if err != nil || len(entries) != 1 {
		t.Fatalf("entries = %d (err %v), want 1", len(entries), err)
	}
	if entries[0].Form != flow.FormChoices[0] {
		t.Errorf("saved form = %q, want %q", entries[0].Form, flow.FormChoices[0])
	}
}

func TestScheduleConfiguration(t *testing.T) {
	b := newTestBot(t)
	b.authenticate(t)
	b.ai.schedule = &models.ReminderSchedule{
		Times:     []string{"09:00", "21:00"},
		DayFilter: models.DayFilterAll,
		Timezone:  "Europe/Moscow",
	}

	b.say("/schedule")
	if !strings.Contains(b.msg.last(), phraseTimezoneQuestion) {
		t.Fatalf("schedule config did not ask timezone: %q", b.msg.last())
	}

	b.say("4") // Moscow
	if b.msg.last() != phraseReminderRequest {
		t.Fatalf("after timezone = %q, want schedule request", b.msg.last())
	}

	b.say("каждый день в 9 утра и 9 вечера")
	if !strings.Contains(b.msg.last(), phraseReminderConfigured) {
		t.Fatalf("configuration ack = %q", b.msg.last())
	}

	stored, err := b.store.GetReminderSchedule(testUser)
	if err != nil || stored == nil || len(stored.Times) != 2 {
		t.Fatalf("stored schedule = %+v (err %v)", stored, err)
	}
	if got := b.sched.JobCount(testUser); got != 2 {
		t.Errorf("registered jobs = %d, want 2", got)
	}

	u, err := b.store.GetUser(testUser)
	if err != nil || u.Timezone != "Europe/Moscow" {
		t.Errorf("timezone = %q (err %v), want Europe/Moscow", u.Timezone, err)
	}
}

func TestScheduleParseFailureKeepsStage(t *testing.T) {
	b := newTestBot(t)
	b.authenticate(t)
	b.ai.parseErr = fmt.Errorf("no schedule found")

	b.say("/schedule")
	b.say("4")
	b.say("что-то невнятное")
	if b.msg.last() != phraseScheduleFailed {
		t.Fatalf("parse failure = %q", b.msg.last())
	}

	// A rephrased attempt is still treated as schedule input.
	b.ai.parseErr = nil
	b.ai.schedule = &models.ReminderSchedule{
		Times:     []string{"08:30"},
		DayFilter: models.DayFilterWeekdays,
		Timezone:  "Europe/Moscow",
	}
	b.say("по будням в 8:30")
	if !strings.Contains(b.msg.last(), phraseReminderConfigured) {
		t.Fatalf("retry ack = %q", b.msg.last())
	}
}

func TestCustomTimezoneInput(t *testing.T) {
	b := newTestBot(t)
	b.authenticate(t)

	b.say("/schedule")
	b.say(fmt.Sprintf("%d", len(timezoneOptions)+1))
	if b.msg.last() != phraseTimezoneCustom {
		t.Fatalf("custom timezone prompt = %q", b.msg.last())
	}

	b.say("Not/AZone")
	if !strings.Contains(b.msg.last(), "Неверный часовой пояс") {
		t.Fatalf("invalid zone = %q", b.msg.last())
	}

	b.say("America/New_York")
	if b.msg.last() != phraseReminderRequest {
		t.Fatalf("valid zone = %q, want schedule request", b.msg.last())
	}
	u, _ := b.store.GetUser(testUser)
	if u.Timezone != "America/New_York" {
		t.Errorf("timezone = %q, want America/New_York", u.Timezone)
	}
}

func TestVoiceScheduleVerification(t *testing.T) {
	b := newTestBot(t)
	b.authenticate(t)
	b.ai.transcript = "каждый день в 10 утра"
	b.ai.schedule = &models.ReminderSchedule{
		Times:     []string{"10:00"},
		DayFilter: models.DayFilterAll,
		Timezone:  "Europe/Moscow",
	}

	b.say("/schedule")
	b.say("4")
	b.sayVoice([]byte{0x4f, 0x67, 0x67, 0x53})
	if !strings.Contains(b.msg.last(), "Распознано: каждый день в 10 утра") {
		t.Fatalf("verification message = %q", b.msg.last())
	}

	b.say("1")
	if !strings.Contains(b.msg.last(), phraseReminderConfigured) {
		t.Fatalf("confirmed transcript ack = %q", b.msg.last())
	}
}

func TestVoiceAnswerFeedsWizard(t *testing.T) {
	b := newTestBot(t)
	b.authenticate(t)
	b.ai.transcript = "заметил что тороплюсь"

	b.say("/practice")
	before := b.msg.count()
	b.sayVoice([]byte{0x4f, 0x67, 0x67, 0x53})
	b.msg.waitForCount(t, before+1)
	if !strings.Contains(b.msg.last(), "заметил что тороплюсь") {
		t.Fatalf("voice answer confirmation = %q", b.msg.last())
	}
}

func TestReminderInvitationReplies(t *testing.T) {
	b := newTestBot(t)
	b.authenticate(t)

	b.router.SendReminder(context.Background(), testUser)
	if !strings.Contains(b.msg.last(), phraseReminderPrompt) {
		t.Fatalf("reminder = %q", b.msg.last())
	}

	// Decline records a refusal.
	b.say("2")
	refusals, err := b.store.GetRefusals(testUser)
	if err != nil || len(refusals) != 1 {
		t.Fatalf("refusals = %d (err %v), want 1", len(refusals), err)
	}

	// Accept starts a practice session.
	b.router.SendReminder(context.Background(), testUser)
	b.say("1")
	if b.msg.last() != flow.PracticeFields()[0].Prompt {
		t.Fatalf("accepted reminder = %q, want first field prompt", b.msg.last())
	}
}

func TestDisableAndViewSchedule(t *testing.T) {
	b := newTestBot(t)
	b.authenticate(t)

	b.say("/view_schedule")
	if b.msg.last() != phraseNoSchedule {
		t.Fatalf("view without schedule = %q", b.msg.last())
	}

	b.ai.schedule = &models.ReminderSchedule{
		Times:     []string{"09:00"},
		DayFilter: models.DayFilterAll,
		Timezone:  "Europe/Moscow",
	}
	b.say("/schedule")
	b.say("4")
	b.say("в 9 утра")

	b.say("/view_schedule")
	if !strings.Contains(b.msg.last(), "09:00") {
		t.Fatalf("view with schedule = %q", b.msg.last())
	}

	b.say("/disable_schedule")
	if b.msg.last() != phraseReminderDisabled {
		t.Fatalf("disable = %q", b.msg.last())
	}
	if got := b.sched.JobCount(testUser); got != 0 {
		t.Errorf("jobs after disable = %d, want 0", got)
	}
	stored, _ := b.store.GetReminderSchedule(testUser)
	if stored != nil {
		t.Errorf("schedule after disable = %+v, want nil", stored)
	}
}

func TestDeleteAllRequiresConfirmation(t *testing.T) {
	b := newTestBot(t)
	b.authenticate(t)
	if err := b.store.AddEntry(models.PracticeEntry{
		ID: "e1", UserID: testUser,
		Content: "a", Attitude: "b", Form: "c", Body: "d", Response: "e",
		Timestamp: time.Now(),
	}); err != nil {
		t.Fatalf("seed entry: %v", err)
	}

	b.say("/delete_all")
	if !strings.Contains(b.msg.last(), phraseDataClearConfirm) {
		t.Fatalf("delete prompt = %q", b.msg.last())
	}

	// Cancelling keeps the data.
	b.say("2")
	if n, _ := b.store.CountEntries(testUser); n != 1 {
		t.Fatalf("entries after cancel = %d, want 1", n)
	}

	b.say("/delete_all")
	b.say("1")
	if b.msg.last() != phraseDataCleared {
		t.Fatalf("delete ack = %q", b.msg.last())
	}
	if n, _ := b.store.CountEntries(testUser); n != 0 {
		t.Errorf("entries after delete = %d, want 0", n)
	}
}

func TestRestoreSchedules(t *testing.T) {
	b := newTestBot(t)
	schedule := &models.ReminderSchedule{
		Times:     []string{"09:00", "21:00"},
		DayFilter: models.DayFilterWeekdays,
		Timezone:  "Europe/Moscow",
	}
	if err := b.store.SetReminderSchedule(testUser, schedule); err != nil {
		t.Fatalf("seed schedule: %v", err)
	}

	if err := b.router.RestoreSchedules(context.Background()); err != nil {
		t.Fatalf("RestoreSchedules failed: %v", err)
	}
	if got := b.sched.JobCount(testUser); got != 2 {
		t.Errorf("restored jobs = %d, want 2", got)
	}
}

func TestUnknownCommandShowsHelp(t *testing.T) {
	b := newTestBot(t)
	b.authenticate(t)

	b.say("/bogus")
	if b.msg.last() != phraseHelp {
		t.Fatalf("unknown command = %q, want help", b.msg.last())
	}
}

func TestUsersAreIndependent(t *testing.T) {
	b := newTestBot(t)
	other := "79160000002"

	b.authenticate(t)
	b.say("/practice")

	// The second user is still behind the password gate.
	b.router.HandleResponse(context.Background(), models.Response{From: other, Body: "привет"})
	if b.msg.last() != phraseAuthRequest {
		t.Fatalf("second user first contact = %q, want password prompt", b.msg.last())
	}
}
