// Package genai provides GenAI-backed operations using the OpenAI API:
// natural-language reminder schedule parsing and voice transcription.
package genai

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Default models. Transcription falls back to whisper when the primary
// transcribe model rejects the request.
const (
	DefaultChatModel               = openai.ChatModelGPT4oMini
	DefaultTranscribeModel         = openai.AudioModelGPT4oMiniTranscribe
	DefaultTranscribeFallbackModel = openai.AudioModelWhisper1
)

// Opts holds configuration options for the GenAI client.
type Opts struct {
	// APIKey overrides the OPENAI_API_KEY environment variable.
	APIKey string
	// ChatModel overrides the default chat model.
	ChatModel string
}

// Option defines a configuration option for the GenAI client.
type Option func(*Opts)

// WithAPIKey sets the OpenAI API key.
func WithAPIKey(key string) Option {
	return func(o *Opts) {
		o.APIKey = key
	}
}

// WithChatModel sets the chat model used for schedule parsing.
func WithChatModel(model string) Option {
	return func(o *Opts) {
		o.ChatModel = model
	}
}

// Client wraps the OpenAI API for schedule parsing and transcription.
type Client struct {
	client    openai.Client
	chatModel string
}

// NewClient initializes a GenAI client. The API key comes from options or
// the OPENAI_API_KEY environment variable.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY not set")
	}
	chatModel := cfg.ChatModel
	if chatModel == "" {
		chatModel = DefaultChatModel
	}
	slog.Debug("GenAI NewClient initialized", "chat_model", chatModel)
	return &Client{
		client:    openai.NewClient(option.WithAPIKey(apiKey)),
		chatModel: chatModel,
	}, nil
}

// complete runs one system+user chat completion and returns the text of the
// first choice.
func (c *Client) complete(ctx context.Context, systemPrompt, userPrompt string, temperature float64, maxTokens int64) (string, error) {
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: c.chatModel,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt),
		},
		Temperature: openai.Float(temperature),
		MaxTokens:   openai.Int(maxTokens),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}
