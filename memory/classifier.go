package memory

import (
	"context"
	"log"

	"github.com/fIIame/NeurooAiBot/rules"
)

// Classifier decides whether a message is worth remembering.
//
// The decision runs in cost order: the deterministic rules dispose of
// the common noise and obvious-keeper cases for free, and only the
// remainder pays for a model round trip.
type Classifier struct {
	rules *rules.Rules
	judge Judge
}

// NewClassifier builds a classifier over a compiled rule set and a
// model judge. A nil judge degrades the inconclusive case to "not
// admitted".
func NewClassifier(r *rules.Rules, judge Judge) *Classifier {
	return &Classifier{rules: r, judge: judge}
}

// Candidate runs only the cheap stages and reports whether the text
// could possibly be admitted. The assembler uses this to skip the
// embedding call for obviously unimportant text.
func (c *Classifier) Candidate(text string) bool {
	return c.rules.Decide(text) != rules.Reject
}

// Decide returns the full admission verdict. A judge failure is a
// transient external error: the candidate is dropped, never surfaced.
func (c *Classifier) Decide(ctx context.Context, text string) bool {
	switch c.rules.Decide(text) {
	case rules.Reject:
		return false
	case rules.Admit:
		return true
	}

	if c.judge == nil {
		return false
	}
	important, err := c.judge.IsImportant(ctx, text)
	if err != nil {
		log.Printf("[MEMORY] Importance judge failed, dropping candidate: %v", err)
		return false
	}
	return important
}
