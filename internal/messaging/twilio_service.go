package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/kickbot/kick/internal/models"
)

// TwilioOpts holds configuration options for the Twilio transport.
type TwilioOpts struct {
	AccountSID string
	AuthToken  string
	FromWhats  string // WhatsApp number in "whatsapp:+1234567890" format
}

// TwilioOption defines a configuration option for the Twilio transport.
type TwilioOption func(*TwilioOpts)

// WithAccountSID sets the Twilio account SID.
func WithAccountSID(sid string) TwilioOption {
	return func(o *TwilioOpts) { o.AccountSID = sid }
}

// WithAuthToken sets the Twilio auth token.
func WithAuthToken(token string) TwilioOption {
	return func(o *TwilioOpts) { o.AuthToken = token }
}

// WithFromWhats sets the sending WhatsApp number.
func WithFromWhats(from string) TwilioOption {
	return func(o *TwilioOpts) { o.FromWhats = from }
}

// TwilioService implements Service over Twilio's WhatsApp API. Outbound
// messages go through the REST API; inbound messages arrive on the webhook
// handler exposed by WebhookHandler. Twilio webhooks deliver text only, so
// responses never carry voice audio on this transport.
type TwilioService struct {
	client     *twilio.RestClient
	fromWhats  string
	receiptCh  chan models.Receipt
	responseCh chan models.Response
}

// NewTwilioService creates a Twilio-backed messaging service. Credentials
// fall back to the TWILIO_ACCOUNT_SID, TWILIO_AUTH_TOKEN, and
// TWILIO_FROM_NUMBER environment variables.
func NewTwilioService(opts ...TwilioOption) (*TwilioService, error) {
	var cfg TwilioOpts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.AccountSID == "" {
		cfg.AccountSID = os.Getenv("TWILIO_ACCOUNT_SID")
	}
	if cfg.AuthToken == "" {
		cfg.AuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
	}
	if cfg.FromWhats == "" {
		cfg.FromWhats = os.Getenv("TWILIO_FROM_NUMBER")
	}
	slog.Debug("Twilio service config loaded",
		"AccountSID_set", cfg.AccountSID != "",
		"AuthToken_set", cfg.AuthToken != "",
		"FromWhats_set", cfg.FromWhats != "")

	if cfg.AccountSID == "" || cfg.AuthToken == "" {
		return nil, fmt.Errorf("account SID and auth token must be provided")
	}
	if cfg.FromWhats == "" {
		return nil, fmt.Errorf("from number must be provided")
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})

	return &TwilioService{
		client:     client,
		fromWhats:  cfg.FromWhats,
		receiptCh:  make(chan models.Receipt, DefaultChannelBufferSize),
		responseCh: make(chan models.Response, DefaultChannelBufferSize),
	}, nil
}

// ValidateAndCanonicalizeRecipient normalizes a phone number.
func (s *TwilioService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	return CanonicalizeRecipient(recipient)
}

// SendMessage delivers text via the Twilio REST API.
func (s *TwilioService) SendMessage(ctx context.Context, to, body string) error {
	canonical, err := s.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		return err
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetFrom(s.fromWhats)
	params.SetTo("whatsapp:+" + canonical)
	params.SetBody(body)

	if _, err := s.client.Api.CreateMessage(params); err != nil {
		slog.Error("TwilioService SendMessage failed", "error", err, "to", canonical)
		return fmt.Errorf("failed to send message to %s: %w", canonical, err)
	}
	slog.Debug("TwilioService SendMessage succeeded", "to", canonical)
	return nil
}

// Start is a no-op; inbound traffic arrives on the webhook handler.
func (s *TwilioService) Start(ctx context.Context) error {
	slog.Info("TwilioService started")
	return nil
}

// Stop closes the channels.
func (s *TwilioService) Stop() error {
	close(s.receiptCh)
	close(s.responseCh)
	slog.Info("TwilioService stopped")
	return nil
}

// Receipts exposes delivery status updates.
func (s *TwilioService) Receipts() <-chan models.Receipt {
	return s.receiptCh
}

// Responses exposes inbound user messages.
func (s *TwilioService) Responses() <-chan models.Response {
	return s.responseCh
}

// WebhookHandler returns the HTTP handler for Twilio's inbound message
// webhook. It parses the form-encoded payload and queues a response.
func (s *TwilioService) WebhookHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			slog.Error("TwilioService webhook form parse failed", "error", err)
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}

		from, err := CanonicalizeRecipient(r.PostFormValue("From"))
		if err != nil {
			slog.Error("TwilioService webhook invalid sender", "error", err)
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		body := r.PostFormValue("Body")

		resp := models.Response{
			From: from,
			Body: body,
			Time: time.Now().Unix(),
		}
		select {
		case s.responseCh <- resp:
			slog.Debug("TwilioService queued webhook response", "from", from)
		default:
			slog.Warn("TwilioService response channel full, dropping message", "from", from)
		}

		w.Header().Set("Content-Type", "text/xml")
		fmt.Fprint(w, "<Response></Response>")
	}
}
