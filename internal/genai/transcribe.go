package genai

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/openai/openai-go"
)

// Transcribe converts voice note audio into text. The primary transcribe
// model is tried first; on failure the request is retried once against the
// whisper fallback. languageHint is an ISO-639-1 code such as "ru" and may
// be empty.
func (c *Client) Transcribe(ctx context.Context, audio []byte, languageHint string) (string, error) {
	if len(audio) == 0 {
		return "", fmt.Errorf("empty audio payload")
	}
	slog.Debug("GenAI Transcribe invoked", "bytes", len(audio), "language", languageHint)

	text, err := c.transcribeWith(ctx, DefaultTranscribeModel, audio, languageHint)
	if err != nil {
		slog.Warn("GenAI Transcribe primary model failed, falling back", "error", err, "fallback", DefaultTranscribeFallbackModel)
		text, err = c.transcribeWith(ctx, DefaultTranscribeFallbackModel, audio, languageHint)
		if err != nil {
			slog.Error("GenAI Transcribe fallback failed", "error", err)
			return "", fmt.Errorf("transcription failed: %w", err)
		}
	}

	text = strings.TrimSpace(text)
	slog.Debug("GenAI Transcribe succeeded", "length", len(text))
	return text, nil
}

func (c *Client) transcribeWith(ctx context.Context, model string, audio []byte, languageHint string) (string, error) {
	params := openai.AudioTranscriptionNewParams{
		Model: model,
		File:  openai.File(bytes.NewReader(audio), "voice.ogg", "audio/ogg"),
	}
	if languageHint != "" {
		params.Language = openai.String(languageHint)
	}
	resp, err := c.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}
