// Package judge implements the model-backed importance call of the
// admission decision: a single-turn exchange that must answer yes or
// no, with a tiny response budget to cap tail latency and cost.
package judge

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
)

const systemInstruction = `You decide whether a chat message contains a lasting fact about the user worth keeping in permanent memory (preferences, biography, relationships, plans).
Answer with exactly one word: "yes" or "no".`

// Judge asks a small model whether a message is worth remembering.
type Judge struct {
	client *anthropic.Client
	model  string
}

// New creates a judge using the given model. The model name comes
// from configuration, not the call site.
func New(client *anthropic.Client, model string) *Judge {
	return &Judge{client: client, model: model}
}

// IsImportant returns true when the model answers "yes". Anything
// else, including refusals and garbage, counts as "no".
func (j *Judge) IsImportant(ctx context.Context, text string) (bool, error) {
	resp, err := j.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(j.model),
		MaxTokens: 4,
		System: []anthropic.TextBlockParam{
			{Text: systemInstruction},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(text)),
		},
	})
	if err != nil {
		return false, fmt.Errorf("importance call: %w", err)
	}

	var answer string
	for _, block := range resp.Content {
		if block.Type == "text" {
			answer += block.Text
		}
	}
	return strings.ToLower(strings.TrimSpace(answer)) == "yes", nil
}
