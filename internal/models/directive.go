package models

// DirectiveKind enumerates the instructions the wizard emits toward the
// presentation layer. The presentation layer decides how each kind is
// rendered on the active transport.
type DirectiveKind string

const (
	// DirectiveShowPrompt asks the user the current field's question.
	DirectiveShowPrompt DirectiveKind = "show_prompt"
	// DirectiveShowChoice asks the current field's question together with a
	// set of canned quick answers. Freeform input remains accepted.
	DirectiveShowChoice DirectiveKind = "show_choice"
	// DirectiveShowConfirmation shows the accumulated answer and asks the
	// user to confirm it or go back.
	DirectiveShowConfirmation DirectiveKind = "show_confirmation"
	// DirectiveShowReadyToSave signals all fields are answered and offers
	// save/back controls.
	DirectiveShowReadyToSave DirectiveKind = "show_ready_to_save"
	// DirectiveShowValidationError surfaces a recoverable input problem.
	DirectiveShowValidationError DirectiveKind = "show_validation_error"
	// DirectiveShowSaved confirms the entry was persisted.
	DirectiveShowSaved DirectiveKind = "show_saved"
	// DirectiveShowError surfaces a generic retry notice after a transient
	// failure. Session state is preserved.
	DirectiveShowError DirectiveKind = "show_error"
)

// Reason codes carried by validation and error directives. The presentation
// layer maps them to user-facing phrases.
const (
	ReasonEmptyAnswer    = "empty_answer"
	ReasonAtFirstField   = "at_first_field"
	ReasonNotReadyToSave = "not_ready_to_save"
	ReasonCorruptedState = "corrupted_state"
	ReasonSaveFailed     = "save_failed"
)

// Directive is one abstract presentation instruction. Only the fields
// relevant to the Kind are populated.
type Directive struct {
	Kind       DirectiveKind `json:"kind"`
	FieldIndex int           `json:"field_index,omitempty"`
	Prompt     string        `json:"prompt,omitempty"`
	Answer     string        `json:"answer,omitempty"`
	Choices    []string      `json:"choices,omitempty"`
	CanGoBack  bool          `json:"can_go_back,omitempty"`
	Reason     string        `json:"reason,omitempty"`
}
