// Package flow implements the guided-practice conversation core: the ordered
// field definitions, the per-user debounced input accumulator, the field
// wizard state machine, and the entry committer.
//
// The wizard walks a user through five reflection steps, batching bursty
// input into one answer per step, supporting backward navigation over
// already-confirmed steps, and committing the collected answers atomically
// once every step is confirmed.
package flow

// FieldDefinition describes one slot in the fixed ordered sequence the
// wizard collects. Definitions are immutable and shared by all users.
type FieldDefinition struct {
	// Name is the stable identifier used as the collected-answers key and
	// the persisted column name.
	Name string
	// Prompt is the question shown when the wizard enters this field.
	Prompt string
	// Required marks the field as mandatory; every practice field is.
	Required bool
	// Choices holds canned quick answers offered alongside freeform input.
	// Empty for plain freeform fields.
	Choices []string
}

// Practice field prompts, in Russian as delivered to users.
const (
	promptContent  = "Обрати внимание на какое-то содержание, которое находится в поле внимания (внутреннее или внешнее)."
	promptAttitude = "Осознай своё отношение к этому содержанию - обрати внимание на тело, на баланс расслабления и напряжения по поводу этого содержания."
	promptForm     = "Подбери свою форму выражения этого отношения, вербализовав его, используя наши формы согласия и отрицания (да-принимающее, нет-принимающее, да-отрицающее, нет-отрицающее)."
	promptBody     = "Озвучь для себя и обрати внимание соответствует ли то, что ты осознал телесной реакции."
	promptResponse = "Обрати внимание, что будет происходить с тобой после осознания."
)

// FormChoices are the canned quick answers for the form field. Freeform text
// is accepted for it as well.
var FormChoices = []string{
	"Да-принимающее",
	"Нет-принимающее",
	"Да-отрицающее",
	"Нет-отрицающее",
}

// PracticeFields returns the five guided-practice fields in walk order.
func PracticeFields() []FieldDefinition {
	return []FieldDefinition{
		{Name: "content", Prompt: promptContent, Required: true},
		{Name: "attitude", Prompt: promptAttitude, Required: true},
		{Name: "form", Prompt: promptForm, Required: true, Choices: FormChoices},
		{Name: "body", Prompt: promptBody, Required: true},
		{Name: "response", Prompt: promptResponse, Required: true},
	}
}
