package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"go.mau.fi/whatsmeow/types/events"

	"github.com/kickbot/kick/internal/models"
	"github.com/kickbot/kick/internal/whatsapp"
)

// WhatsAppService adapts the whatsmeow-backed client to the Service
// interface. Inbound text and voice notes become models.Response values;
// voice note audio is downloaded eagerly so downstream consumers only see
// raw bytes.
type WhatsAppService struct {
	client *whatsapp.Client

	receiptCh  chan models.Receipt
	responseCh chan models.Response

	mu      sync.Mutex
	started bool
	handler uint32
}

// NewWhatsAppService creates a messaging service over a connected WhatsApp client.
func NewWhatsAppService(client *whatsapp.Client) *WhatsAppService {
	return &WhatsAppService{
		client:     client,
		receiptCh:  make(chan models.Receipt, DefaultChannelBufferSize),
		responseCh: make(chan models.Response, DefaultChannelBufferSize),
	}
}

// ValidateAndCanonicalizeRecipient normalizes a phone number for WhatsApp JIDs.
func (s *WhatsAppService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	return CanonicalizeRecipient(recipient)
}

// SendMessage delivers text over WhatsApp.
func (s *WhatsAppService) SendMessage(ctx context.Context, to, body string) error {
	canonical, err := s.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		return err
	}
	return s.client.SendMessage(ctx, canonical, body)
}

// Start registers the event handler that feeds the response and receipt channels.
func (s *WhatsAppService) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return fmt.Errorf("whatsapp service already started")
	}
	waClient := s.client.GetClient()
	if waClient == nil {
		return fmt.Errorf("whatsapp client not connected")
	}
	s.handler = waClient.AddEventHandler(func(evt interface{}) {
		s.handleEvent(ctx, evt)
	})
	s.started = true
	slog.Info("WhatsAppService started")
	return nil
}

// Stop deregisters the event handler and closes the channels.
func (s *WhatsAppService) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return nil
	}
	if waClient := s.client.GetClient(); waClient != nil {
		waClient.RemoveEventHandler(s.handler)
	}
	close(s.receiptCh)
	close(s.responseCh)
	s.started = false
	slog.Info("WhatsAppService stopped")
	return nil
}

// Receipts exposes delivery status updates.
func (s *WhatsAppService) Receipts() <-chan models.Receipt {
	return s.receiptCh
}

// Responses exposes inbound user messages.
func (s *WhatsAppService) Responses() <-chan models.Response {
	return s.responseCh
}

func (s *WhatsAppService) handleEvent(ctx context.Context, evt interface{}) {
	switch v := evt.(type) {
	case *events.Message:
		s.handleIncomingMessage(ctx, v)
	case *events.Receipt:
		s.handleReceipt(v)
	}
}

func (s *WhatsAppService) handleIncomingMessage(ctx context.Context, evt *events.Message) {
	if evt.Info.IsFromMe || evt.Info.IsGroup {
		return
	}
	msg := evt.Message
	if msg == nil {
		return
	}

	resp := models.Response{
		From: evt.Info.Sender.User,
		Time: evt.Info.Timestamp.Unix(),
	}

	switch {
	case msg.GetConversation() != "":
		resp.Body = msg.GetConversation()
	case msg.GetExtendedTextMessage().GetText() != "":
		resp.Body = msg.GetExtendedTextMessage().GetText()
	case msg.GetAudioMessage() != nil:
		audio, err := s.client.DownloadAudio(ctx, msg.GetAudioMessage())
		if err != nil {
			slog.Error("WhatsAppService failed to download voice note", "error", err, "from", resp.From)
			return
		}
		resp.Voice = audio
	default:
		slog.Debug("WhatsAppService ignoring unsupported message type", "from", resp.From)
		return
	}

	select {
	case s.responseCh <- resp:
		slog.Debug("WhatsAppService queued response", "from", resp.From, "has_voice", len(resp.Voice) > 0)
	default:
		slog.Warn("WhatsAppService response channel full, dropping message", "from", resp.From)
	}
}

func (s *WhatsAppService) handleReceipt(evt *events.Receipt) {
	status := models.MessageStatusDelivered
	if evt.Type == events.ReceiptTypeRead {
		status = models.MessageStatusRead
	}
	receipt := models.Receipt{
		To:     evt.MessageSource.Sender.User,
		Status: status,
		Time:   evt.Timestamp.Unix(),
	}
	select {
	case s.receiptCh <- receipt:
	default:
		slog.Warn("WhatsAppService receipt channel full, dropping receipt", "to", receipt.To)
	}
}
