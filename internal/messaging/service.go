// Package messaging provides the message transport abstraction for Kick.
//
// A Service delivers outbound text to a recipient and surfaces inbound
// responses (text or voice audio) and delivery receipts on channels. Two
// implementations exist: WhatsApp over whatsmeow and Twilio's WhatsApp API.
package messaging

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/kickbot/kick/internal/models"
)

// DefaultChannelBufferSize is the buffer size for receipt and response channels.
const DefaultChannelBufferSize = 100

// phonePattern matches canonical recipient identifiers: bare digits with
// country code, no plus sign.
var phonePattern = regexp.MustCompile(`^\d{5,15}$`)

// Service defines the transport-agnostic messaging surface.
type Service interface {
	// ValidateAndCanonicalizeRecipient normalizes a recipient identifier
	// into canonical digits-only form or fails.
	ValidateAndCanonicalizeRecipient(recipient string) (string, error)
	// SendMessage delivers text to the canonicalized recipient.
	SendMessage(ctx context.Context, to, body string) error
	// Start begins receiving events; Stop shuts the service down.
	Start(ctx context.Context) error
	Stop() error
	// Receipts exposes delivery status updates.
	Receipts() <-chan models.Receipt
	// Responses exposes inbound user messages.
	Responses() <-chan models.Response
}

// CanonicalizeRecipient strips transport prefixes and formatting from a
// recipient identifier and validates the remaining digits.
func CanonicalizeRecipient(recipient string) (string, error) {
	cleaned := strings.TrimSpace(recipient)
	cleaned = strings.TrimPrefix(cleaned, "whatsapp:")
	cleaned = strings.TrimPrefix(cleaned, "+")
	for _, r := range []string{" ", "-", "(", ")", "."} {
		cleaned = strings.ReplaceAll(cleaned, r, "")
	}
	if !phonePattern.MatchString(cleaned) {
		return "", fmt.Errorf("invalid recipient %q: expected 5-15 digits with country code", recipient)
	}
	return cleaned, nil
}
