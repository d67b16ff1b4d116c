// Package chat generates the assistant's reply given the user's
// message and the assembled memory context.
package chat

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
)

// DefaultSystemPrompt is the assistant persona used when none is
// configured.
const DefaultSystemPrompt = `You are a friendly personal assistant.
Answer concisely and use what you know about the user when it helps.`

// Service turns (user text, memory context) into a reply.
type Service struct {
	client       *anthropic.Client
	model        string
	maxTokens    int64
	systemPrompt string
}

// Config holds the chat model settings.
type Config struct {
	// Model is the completion model name.
	Model string
	// MaxTokens caps the reply length. Default: 1024.
	MaxTokens int64
	// SystemPrompt overrides DefaultSystemPrompt when set.
	SystemPrompt string
}

// New creates the reply service.
func New(client *anthropic.Client, cfg Config) *Service {
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 1024
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = DefaultSystemPrompt
	}
	return &Service{
		client:       client,
		model:        cfg.Model,
		maxTokens:    cfg.MaxTokens,
		systemPrompt: cfg.SystemPrompt,
	}
}

// Reply requests a completion. The memory context, when present, is
// injected as a second system block so it cannot be confused with the
// user's own words.
func (s *Service) Reply(ctx context.Context, userText, memoryContext string) (string, error) {
	system := []anthropic.TextBlockParam{
		{Text: s.systemPrompt},
	}
	if memoryContext != "" {
		system = append(system, anthropic.TextBlockParam{
			Text: "What you remember about this user:\n" + memoryContext,
		})
	}

	resp, err := s.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(s.model),
		MaxTokens: s.maxTokens,
		System:    system,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userText)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("completion call: %w", err)
	}

	var reply string
	for _, block := range resp.Content {
		if block.Type == "text" {
			reply += block.Text
		}
	}
	return reply, nil
}
