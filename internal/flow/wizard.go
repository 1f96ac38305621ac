package flow

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/kickbot/kick/internal/models"
)

// Presenter renders directives emitted by the wizard. Implementations send
// messages on the active transport; errors are logged by the wizard and the
// session is preserved so the user can retry.
type Presenter interface {
	Present(ctx context.Context, userID string, directive models.Directive) error
}

// SessionState identifies where a guided-practice session stands.
type SessionState string

const (
	// StateAwaitingField means the wizard is collecting the answer for the
	// field at the session's index.
	StateAwaitingField SessionState = "awaiting_field"
	// StateReadyToSave means every field is confirmed and the wizard awaits
	// the final save or a backward step.
	StateReadyToSave SessionState = "ready_to_save"
)

// session is the per-user wizard state. A nil session is the idle state; the
// tagged state plus the explicit pending flag make illegal transitions
// checkable at the event boundary.
type session struct {
	state      SessionState
	fieldIndex int
	collected  map[string]string
	pending    string
	hasPending bool
}

// userSlot serializes all events for one user. Lock order is always slot
// mutex first, then the accumulator's internal mutex. The epoch advances on
// every session transition; an accumulator flush carrying an older epoch was
// submitted against superseded state and is dropped.
type userSlot struct {
	mu    sync.Mutex
	sess  *session
	epoch uint64
}

// Opts holds configuration options for the wizard.
type Opts struct {
	// DebounceDelay overrides the input quiet window.
	DebounceDelay time.Duration
}

// Option defines a configuration option for the wizard.
type Option func(*Opts)

// WithDebounceDelay sets the input quiet window.
func WithDebounceDelay(d time.Duration) Option {
	return func(o *Opts) {
		o.DebounceDelay = d
	}
}

// Wizard drives the ordered walk through the practice fields for every user.
// Each user has at most one session; all mutations of a user's session are
// serialized through that user's slot, while different users proceed fully
// independently.
type Wizard struct {
	fields    []FieldDefinition
	presenter Presenter
	committer *Committer
	acc       *Accumulator

	mu    sync.Mutex
	slots map[string]*userSlot
}

// NewWizard creates a wizard over the given fields.
func NewWizard(fields []FieldDefinition, presenter Presenter, committer *Committer, opts ...Option) *Wizard {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	w := &Wizard{
		fields:    fields,
		presenter: presenter,
		committer: committer,
		slots:     make(map[string]*userSlot),
	}
	w.acc = NewAccumulator(cfg.DebounceDelay, w.answerReady)
	return w
}

// Fields returns the wizard's field definitions.
func (w *Wizard) Fields() []FieldDefinition {
	return w.fields
}

// slot returns the user's event slot, creating it if absent.
func (w *Wizard) slot(userID string) *userSlot {
	w.mu.Lock()
	defer w.mu.Unlock()
	s, ok := w.slots[userID]
	if !ok {
		s = &userSlot{}
		w.slots[userID] = s
	}
	return s
}

// Start begins a new session at the first field. An existing unfinished
// session for the user is discarded, along with any accumulating input.
func (w *Wizard) Start(ctx context.Context, userID string) {
	slot := w.slot(userID)
	slot.mu.Lock()
	defer slot.mu.Unlock()

	if slot.sess != nil {
		slog.Debug("Wizard Start discarding unfinished session", "user_id", userID, "field_index", slot.sess.fieldIndex)
	}
	w.acc.Cancel(userID)
	slot.epoch++
	slot.sess = &session{state: StateAwaitingField, collected: make(map[string]string)}
	slog.Debug("Wizard Start session created", "user_id", userID)
	w.presentField(ctx, userID, slot.sess)
}

// HandleText feeds one raw text chunk into the user's debounce buffer.
// Returns models.ErrNoSession when no session is active. The submit happens
// under the slot lock so a concurrent flush cannot commit the pending answer
// between the seed read and the submit.
func (w *Wizard) HandleText(userID, text string) error {
	slot := w.slot(userID)
	slot.mu.Lock()
	defer slot.mu.Unlock()

	sess := slot.sess
	if sess == nil {
		return models.ErrNoSession
	}
	seed := ""
	if sess.state == StateAwaitingField && sess.hasPending {
		seed = sess.pending
	}
	w.acc.Submit(userID, seed, text, slot.epoch)
	return nil
}

// Confirm accepts the pending answer for the current field and advances.
// An empty or whitespace-only pending answer is rejected with a validation
// directive and no state change.
func (w *Wizard) Confirm(ctx context.Context, userID string) error {
	slot := w.slot(userID)
	slot.mu.Lock()
	defer slot.mu.Unlock()

	sess := slot.sess
	if sess == nil {
		return models.ErrNoSession
	}
	if sess.state == StateReadyToSave {
		w.present(ctx, userID, models.Directive{Kind: models.DirectiveShowReadyToSave})
		return nil
	}
	if !w.indexInRange(sess) {
		w.resetCorrupted(ctx, userID, slot)
		return nil
	}

	answer := strings.TrimSpace(sess.pending)
	if !sess.hasPending || answer == "" {
		slog.Debug("Wizard Confirm rejected empty answer", "user_id", userID, "field_index", sess.fieldIndex)
		w.present(ctx, userID, models.Directive{
			Kind:   models.DirectiveShowValidationError,
			Reason: models.ReasonEmptyAnswer,
		})
		return nil
	}

	field := w.fields[sess.fieldIndex]
	sess.collected[field.Name] = answer
	sess.pending = ""
	sess.hasPending = false
	sess.fieldIndex++
	w.acc.Cancel(userID)
	slot.epoch++
	slog.Debug("Wizard Confirm stored answer", "user_id", userID, "field", field.Name, "next_index", sess.fieldIndex)

	if sess.fieldIndex == len(w.fields) {
		sess.state = StateReadyToSave
		w.present(ctx, userID, models.Directive{Kind: models.DirectiveShowReadyToSave})
		return nil
	}
	w.presentField(ctx, userID, sess)
	return nil
}

// GoBack steps to the previous field, discarding any accumulating input for
// the abandoned one. At the first field it surfaces a transient notice and
// changes nothing.
func (w *Wizard) GoBack(ctx context.Context, userID string) error {
	slot := w.slot(userID)
	slot.mu.Lock()
	defer slot.mu.Unlock()

	sess := slot.sess
	if sess == nil {
		return models.ErrNoSession
	}
	if sess.state == StateAwaitingField && sess.fieldIndex == 0 {
		slog.Debug("Wizard GoBack at first field", "user_id", userID)
		w.present(ctx, userID, models.Directive{
			Kind:   models.DirectiveShowValidationError,
			Reason: models.ReasonAtFirstField,
		})
		return nil
	}

	w.acc.Cancel(userID)
	slot.epoch++
	if sess.state == StateReadyToSave {
		sess.state = StateAwaitingField
		sess.fieldIndex = len(w.fields) - 1
	} else {
		sess.fieldIndex--
	}
	sess.pending = ""
	sess.hasPending = false
	slog.Debug("Wizard GoBack stepped back", "user_id", userID, "field_index", sess.fieldIndex)
	w.presentField(ctx, userID, sess)
	return nil
}

// SelectChoice treats a canned quick answer as the pending answer for the
// current field, superseding any accumulating freeform input.
func (w *Wizard) SelectChoice(ctx context.Context, userID, value string) error {
	slot := w.slot(userID)
	slot.mu.Lock()
	defer slot.mu.Unlock()

	sess := slot.sess
	if sess == nil {
		return models.ErrNoSession
	}
	if sess.state != StateAwaitingField {
		w.present(ctx, userID, models.Directive{Kind: models.DirectiveShowReadyToSave})
		return nil
	}
	if !w.indexInRange(sess) {
		w.resetCorrupted(ctx, userID, slot)
		return nil
	}
	if strings.TrimSpace(value) == "" {
		w.present(ctx, userID, models.Directive{
			Kind:   models.DirectiveShowValidationError,
			Reason: models.ReasonEmptyAnswer,
		})
		return nil
	}

	w.acc.Cancel(userID)
	slot.epoch++
	sess.pending = value
	sess.hasPending = true
	slog.Debug("Wizard SelectChoice set pending answer", "user_id", userID, "field_index", sess.fieldIndex)
	w.present(ctx, userID, models.Directive{
		Kind:       models.DirectiveShowConfirmation,
		FieldIndex: sess.fieldIndex,
		Answer:     value,
		CanGoBack:  sess.fieldIndex > 0,
	})
	return nil
}

// Save commits the collected answers. Only valid in the ready-to-save state.
// A persistence failure preserves the session so save can be retried.
func (w *Wizard) Save(ctx context.Context, userID string) error {
	slot := w.slot(userID)
	slot.mu.Lock()
	defer slot.mu.Unlock()

	sess := slot.sess
	if sess == nil {
		return models.ErrNoSession
	}
	if sess.state != StateReadyToSave {
		slog.Debug("Wizard Save before all fields confirmed", "user_id", userID, "field_index", sess.fieldIndex)
		w.present(ctx, userID, models.Directive{
			Kind:   models.DirectiveShowValidationError,
			Reason: models.ReasonNotReadyToSave,
		})
		return nil
	}

	entry, err := w.committer.Commit(userID, sess.collected)
	if err != nil {
		slog.Error("Wizard Save commit failed", "error", err, "user_id", userID)
		w.present(ctx, userID, models.Directive{
			Kind:   models.DirectiveShowError,
			Reason: models.ReasonSaveFailed,
		})
		return nil
	}

	slot.sess = nil
	w.acc.Cancel(userID)
	slot.epoch++
	slog.Info("Wizard Save entry persisted", "user_id", userID, "entry_id", entry.ID)
	w.present(ctx, userID, models.Directive{Kind: models.DirectiveShowSaved})
	return nil
}

// Cancel discards the user's session and any accumulating input.
func (w *Wizard) Cancel(userID string) {
	slot := w.slot(userID)
	slot.mu.Lock()
	defer slot.mu.Unlock()
	slot.sess = nil
	w.acc.Cancel(userID)
	slot.epoch++
	slog.Debug("Wizard Cancel session discarded", "user_id", userID)
}

// Status is a read-only snapshot of a user's session, used by the
// presentation layer to interpret button-style replies.
type Status struct {
	Active     bool
	State      SessionState
	FieldIndex int
	HasPending bool
	Pending    string
	Choices    []string
	Collected  map[string]string
}

// Status returns a snapshot of the user's session.
func (w *Wizard) Status(userID string) Status {
	slot := w.slot(userID)
	slot.mu.Lock()
	defer slot.mu.Unlock()

	sess := slot.sess
	if sess == nil {
		return Status{}
	}
	st := Status{
		Active:     true,
		State:      sess.state,
		FieldIndex: sess.fieldIndex,
		HasPending: sess.hasPending,
		Pending:    sess.pending,
		Collected:  make(map[string]string, len(sess.collected)),
	}
	for k, v := range sess.collected {
		st.Collected[k] = v
	}
	if sess.state == StateAwaitingField && w.indexInRange(sess) {
		st.Choices = w.fields[sess.fieldIndex].Choices
	}
	return st
}

// answerReady is the accumulator's signal that a user's input went quiet.
// The merged text is drained under the slot lock, becomes the pending answer
// for the current field, and a confirmation is shown. A flush whose epoch
// predates the slot's was submitted against a session state that a
// transition has since replaced, and is dropped.
func (w *Wizard) answerReady(userID string, epoch uint64) {
	ctx := context.Background()
	slot := w.slot(userID)
	slot.mu.Lock()
	defer slot.mu.Unlock()

	if epoch != slot.epoch {
		slog.Debug("Wizard answerReady dropped stale flush", "user_id", userID, "flush_epoch", epoch, "epoch", slot.epoch)
		return
	}
	sess := slot.sess
	if sess == nil {
		slog.Debug("Wizard answerReady dropped, no session", "user_id", userID)
		return
	}
	text, ok := w.acc.Drain(userID)
	if !ok {
		return
	}
	if sess.state != StateAwaitingField {
		slog.Debug("Wizard answerReady dropped, not awaiting a field", "user_id", userID, "state", sess.state)
		w.present(ctx, userID, models.Directive{Kind: models.DirectiveShowReadyToSave})
		return
	}
	if !w.indexInRange(sess) {
		w.resetCorrupted(ctx, userID, slot)
		return
	}

	sess.pending = text
	sess.hasPending = true
	slog.Debug("Wizard answerReady pending answer set", "user_id", userID, "field_index", sess.fieldIndex)
	w.present(ctx, userID, models.Directive{
		Kind:       models.DirectiveShowConfirmation,
		FieldIndex: sess.fieldIndex,
		Answer:     text,
		CanGoBack:  sess.fieldIndex > 0,
	})
}

// presentField emits the directive for the session's current field: a
// confirmation pre-seeded with the previously collected answer when one
// exists, a choice prompt for fields with canned answers, or a bare prompt.
// Caller holds the slot lock.
func (w *Wizard) presentField(ctx context.Context, userID string, sess *session) {
	field := w.fields[sess.fieldIndex]
	if prior, ok := sess.collected[field.Name]; ok {
		sess.pending = prior
		sess.hasPending = true
		w.present(ctx, userID, models.Directive{
			Kind:       models.DirectiveShowConfirmation,
			FieldIndex: sess.fieldIndex,
			Prompt:     field.Prompt,
			Answer:     prior,
			CanGoBack:  sess.fieldIndex > 0,
		})
		return
	}
	if len(field.Choices) > 0 {
		w.present(ctx, userID, models.Directive{
			Kind:       models.DirectiveShowChoice,
			FieldIndex: sess.fieldIndex,
			Prompt:     field.Prompt,
			Choices:    field.Choices,
		})
		return
	}
	w.present(ctx, userID, models.Directive{
		Kind:       models.DirectiveShowPrompt,
		FieldIndex: sess.fieldIndex,
		Prompt:     field.Prompt,
	})
}

// present renders a directive. A rendering failure is logged and swallowed;
// session state has already been applied and is preserved for retry.
func (w *Wizard) present(ctx context.Context, userID string, d models.Directive) {
	if err := w.presenter.Present(ctx, userID, d); err != nil {
		slog.Error("Wizard directive rendering failed", "error", err, "user_id", userID, "kind", d.Kind)
	}
}

// indexInRange guards against corrupted session state.
func (w *Wizard) indexInRange(sess *session) bool {
	return sess.fieldIndex >= 0 && sess.fieldIndex < len(w.fields)
}

// resetCorrupted discards inconsistent session state and surfaces a generic
// apology. This is the one path where state is dropped rather than kept.
// Caller holds the slot lock.
func (w *Wizard) resetCorrupted(ctx context.Context, userID string, slot *userSlot) {
	slog.Error("Wizard session state corrupted, resetting", "user_id", userID, "field_index", slot.sess.fieldIndex)
	slot.sess = nil
	w.acc.Cancel(userID)
	slot.epoch++
	w.present(ctx, userID, models.Directive{
		Kind:   models.DirectiveShowError,
		Reason: models.ReasonCorruptedState,
	})
}
