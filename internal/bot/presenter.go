package bot

import (
	"context"
	"fmt"
	"strings"

	"github.com/kickbot/kick/internal/messaging"
	"github.com/kickbot/kick/internal/models"
)

// Presenter renders wizard directives into plain-text messages with numbered
// reply controls and sends them on the active transport.
type Presenter struct {
	msg messaging.Service
}

// NewPresenter creates a directive renderer over a messaging service.
func NewPresenter(msg messaging.Service) *Presenter {
	return &Presenter{msg: msg}
}

// Present renders one directive and delivers it to the user.
func (p *Presenter) Present(ctx context.Context, userID string, d models.Directive) error {
	return p.msg.SendMessage(ctx, userID, renderDirective(d))
}

// renderDirective maps an abstract directive onto user-facing text. Controls
// are numbered lines answered with a single digit.
func renderDirective(d models.Directive) string {
	switch d.Kind {
	case models.DirectiveShowPrompt:
		return d.Prompt

	case models.DirectiveShowChoice:
		var sb strings.Builder
		sb.WriteString(d.Prompt)
		sb.WriteString("\n\n")
		for i, choice := range d.Choices {
			fmt.Fprintf(&sb, "%d. %s\n", i+1, choice)
		}
		sb.WriteString("\n(Ответьте цифрой или напишите свой вариант)")
		return sb.String()

	case models.DirectiveShowConfirmation:
		var sb strings.Builder
		if d.Prompt != "" {
			sb.WriteString(d.Prompt)
			sb.WriteString("\n\n")
		}
		sb.WriteString("Ваш ответ:\n")
		sb.WriteString(d.Answer)
		sb.WriteString("\n\n1. ")
		sb.WriteString(phraseConfirmAnswer)
		if d.CanGoBack {
			sb.WriteString("\n2. ")
			sb.WriteString(phraseGoBack)
			sb.WriteString("\n(Ответьте '1' или '2', либо дополните ответ текстом)")
		} else {
			sb.WriteString("\n(Ответьте '1', либо дополните ответ текстом)")
		}
		return sb.String()

	case models.DirectiveShowReadyToSave:
		return phraseCompletePrompt +
			"\n1. " + phraseBtnSave +
			"\n2. " + phraseGoBack +
			"\n(Ответьте '1' или '2')"

	case models.DirectiveShowValidationError:
		switch d.Reason {
		case models.ReasonEmptyAnswer:
			return phraseEmptyAnswer
		case models.ReasonAtFirstField:
			return phraseAtFirstField
		case models.ReasonNotReadyToSave:
			return phraseNotReadyToSave
		default:
			return phraseGenericError
		}

	case models.DirectiveShowSaved:
		return phrasePracticeSaved

	case models.DirectiveShowError:
		return phraseGenericError

	default:
		return phraseGenericError
	}
}
