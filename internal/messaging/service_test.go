package messaging

import (
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/kickbot/kick/internal/models"
)

func TestCanonicalizeRecipient(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "+79161234567", want: "79161234567"},
		{in: "whatsapp:+79161234567", want: "79161234567"},
		{in: "7 (916) 123-45-67", want: "79161234567"},
		{in: " 79161234567 ", want: "79161234567"},
		{in: "not a number", wantErr: true},
		{in: "123", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tc := range cases {
		got, err := CanonicalizeRecipient(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("CanonicalizeRecipient(%q) = %q, want error", tc.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("CanonicalizeRecipient(%q) failed: %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("CanonicalizeRecipient(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestTwilioWebhookQueuesResponse(t *testing.T) {
	s := &TwilioService{
		fromWhats:  "whatsapp:+10000000000",
		receiptCh:  make(chan models.Receipt, 1),
		responseCh: make(chan models.Response, 1),
	}

	form := url.Values{}
	form.Set("From", "whatsapp:+79161234567")
	form.Set("Body", "привет")

	req := httptest.NewRequest("POST", "/twilio/webhook", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()

	s.WebhookHandler()(rec, req)

	if rec.Code != 200 {
		t.Fatalf("webhook status = %d, want 200", rec.Code)
	}
	select {
	case resp := <-s.Responses():
		if resp.From != "79161234567" || resp.Body != "привет" {
			t.Errorf("queued response = %+v", resp)
		}
	case <-time.After(time.Second):
		t.Fatal("no response queued from webhook")
	}
}

func TestTwilioWebhookRejectsBadSender(t *testing.T) {
	s := &TwilioService{
		responseCh: make(chan models.Response, 1),
	}

	form := url.Values{}
	form.Set("From", "garbage")
	form.Set("Body", "hi")

	req := httptest.NewRequest("POST", "/twilio/webhook", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()

	s.WebhookHandler()(rec, req)

	if rec.Code != 400 {
		t.Errorf("webhook status = %d, want 400", rec.Code)
	}
	select {
	case resp := <-s.Responses():
		t.Errorf("response queued for invalid sender: %+v", resp)
	default:
	}
}
