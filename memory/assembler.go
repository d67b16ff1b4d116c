package memory

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/fIIame/NeurooAiBot/core"
)

// Assembler builds the prompt context for each turn and records the
// turn afterwards.
//
// BuildContext is on the reply's critical path and degrades to an
// empty contribution when a tier is slow or down. RecordTurn returns
// before admission has run: long-term persistence is fire-and-forget
// background work with no completion guarantee.
type Assembler struct {
	shortTerm  ShortTermStore
	longTerm   LongTermStore
	embedder   Embedder
	classifier *Classifier
	admission  *Admission
	config     *Config

	background sync.WaitGroup
}

// Config holds assembler tuning knobs.
type Config struct {
	// QueryLimit is the number of long-term facts pulled per turn.
	// Default: 5.
	QueryLimit int

	// RetrieveTimeout bounds the embedding + similarity query on the
	// critical path. Default: 5s.
	RetrieveTimeout time.Duration

	// AdmitTimeout bounds one background admission task (classifier
	// call + embedding + store write). Default: 30s.
	AdmitTimeout time.Duration
}

// DefaultConfig returns the assembler defaults.
var DefaultConfig = &Config{
	QueryLimit:      5,
	RetrieveTimeout: 5 * time.Second,
	AdmitTimeout:    30 * time.Second,
}

// NewAssembler wires the assembler. A nil config uses DefaultConfig.
func NewAssembler(
	shortTerm ShortTermStore,
	longTerm LongTermStore,
	embedder Embedder,
	classifier *Classifier,
	admission *Admission,
	config *Config,
) *Assembler {
	if config == nil {
		config = DefaultConfig
	}
	return &Assembler{
		shortTerm:  shortTerm,
		longTerm:   longTerm,
		embedder:   embedder,
		classifier: classifier,
		admission:  admission,
		config:     config,
	}
}

// BuildContext assembles the combined memory context for one incoming
// message: the short-term transcript first, then the relevant
// permanent facts. The returned embedding is non-nil when the message
// was a long-term candidate and embedding succeeded; RecordTurn
// accepts it back to avoid recomputing.
func (a *Assembler) BuildContext(ctx context.Context, userID int64, userText string) (string, []float32) {
	var blocks []string

	if transcript := a.shortTermBlock(ctx, userID); transcript != "" {
		blocks = append(blocks, transcript)
	}

	var embedding []float32
	if a.classifier.Candidate(userText) {
		var block string
		block, embedding = a.longTermBlock(ctx, userID, userText)
		if block != "" {
			blocks = append(blocks, block)
		}
	}

	return strings.Join(blocks, "\n\n"), embedding
}

// RecordTurn schedules the whole post-reply bookkeeping — both
// short-term appends and admission of the user's message — as one
// background task. It returns immediately; neither the appends nor
// admission are guaranteed to have run, so a slow store never delays
// message delivery.
func (a *Assembler) RecordTurn(_ context.Context, userID int64, userText string, embedding []float32, reply string) {
	// Detached from the caller's context: the reply is already out,
	// and a cancelled request must not cancel persistence mid-flight.
	a.background.Add(1)
	go func() {
		defer a.background.Done()

		ctx, cancel := context.WithTimeout(context.Background(), a.config.AdmitTimeout)
		defer cancel()

		if err := a.shortTerm.Append(ctx, userID, core.Turn{Speaker: core.SpeakerUser, Text: userText}); err != nil {
			log.Printf("[MEMORY] Short-term append (user) failed for user %d: %v", userID, err)
		}
		if err := a.shortTerm.Append(ctx, userID, core.Turn{Speaker: core.SpeakerBot, Text: reply}); err != nil {
			log.Printf("[MEMORY] Short-term append (bot) failed for user %d: %v", userID, err)
		}

		emb := embedding
		if emb == nil {
			if !a.classifier.Candidate(userText) {
				return
			}
			var err error
			emb, err = a.embedder.Embed(ctx, userText)
			if err != nil {
				log.Printf("[MEMORY] Embedding failed for user %d, candidate dropped: %v", userID, err)
				return
			}
		}
		a.admission.Consider(ctx, userID, userText, emb)
	}()
}

// Drain waits for in-flight background admissions, up to the given
// timeout. Used on shutdown; a dropped admission is only a missed
// memory.
func (a *Assembler) Drain(timeout time.Duration) {
	done := make(chan struct{})
	go func() {
		a.background.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		log.Printf("[MEMORY] Shutdown: background admissions still in flight after %v, dropping", timeout)
	}
}

func (a *Assembler) shortTermBlock(ctx context.Context, userID int64) string {
	turns, err := a.shortTerm.Recent(ctx, userID)
	if err != nil {
		log.Printf("[MEMORY] Short-term read failed for user %d, continuing without history: %v", userID, err)
		return ""
	}
	if len(turns) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("Recent conversation:\n")
	for _, turn := range turns {
		fmt.Fprintf(&sb, "%s: %s\n", turn.Speaker.Label(), turn.Text)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (a *Assembler) longTermBlock(ctx context.Context, userID int64, userText string) (string, []float32) {
	ctx, cancel := context.WithTimeout(ctx, a.config.RetrieveTimeout)
	defer cancel()

	embedding, err := a.embedder.Embed(ctx, userText)
	if err != nil {
		log.Printf("[MEMORY] Embedding failed for user %d, continuing without long-term context: %v", userID, err)
		return "", nil
	}

	texts, err := a.longTerm.Query(ctx, userID, embedding, a.config.QueryLimit)
	if err != nil {
		log.Printf("[MEMORY] Long-term query failed for user %d, continuing without long-term context: %v", userID, err)
		return "", embedding
	}
	if len(texts) == 0 {
		return "", embedding
	}

	var sb strings.Builder
	sb.WriteString("Permanent memories:\n")
	for _, text := range texts {
		fmt.Fprintf(&sb, "- %s\n", text)
	}
	return strings.TrimRight(sb.String(), "\n"), embedding
}
