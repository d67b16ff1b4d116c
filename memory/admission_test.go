package memory_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/fIIame/NeurooAiBot/core"
	"github.com/fIIame/NeurooAiBot/memory"
	"github.com/fIIame/NeurooAiBot/rules"
)

// fakeLongTerm is an in-memory LongTermStore that records calls.
type fakeLongTerm struct {
	mu       sync.Mutex
	records  map[int64][]string
	queries  []string
	saveErr  error
	countErr error
}

func newFakeLongTerm() *fakeLongTerm {
	return &fakeLongTerm{records: make(map[int64][]string)}
}

func (f *fakeLongTerm) Count(ctx context.Context, userID int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.countErr != nil {
		return 0, f.countErr
	}
	return len(f.records[userID]), nil
}

func (f *fakeLongTerm) Save(ctx context.Context, userID int64, text string, embedding []float32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	for _, existing := range f.records[userID] {
		if existing == text {
			return nil
		}
	}
	f.records[userID] = append(f.records[userID], text)
	return nil
}

func (f *fakeLongTerm) Query(ctx context.Context, userID int64, embedding []float32, limit int) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored := f.records[userID]
	if len(stored) > limit {
		stored = stored[:limit]
	}
	return append([]string(nil), stored...), nil
}

func (f *fakeLongTerm) Close() error { return nil }

func (f *fakeLongTerm) stored(userID int64) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.records[userID]...)
}

// fakeJudge records whether it was consulted.
type fakeJudge struct {
	mu     sync.Mutex
	answer bool
	err    error
	calls  int
}

func (f *fakeJudge) IsImportant(ctx context.Context, text string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.answer, f.err
}

func (f *fakeJudge) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeShortTerm is a bounded in-memory ShortTermStore.
type fakeShortTerm struct {
	mu    sync.Mutex
	turns map[int64][]core.Turn
	limit int
	err   error
}

func newFakeShortTerm(limit int) *fakeShortTerm {
	return &fakeShortTerm{turns: make(map[int64][]core.Turn), limit: limit}
}

func (f *fakeShortTerm) Append(ctx context.Context, userID int64, turn core.Turn) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	buf := append(f.turns[userID], turn)
	if len(buf) > f.limit {
		buf = buf[len(buf)-f.limit:]
	}
	f.turns[userID] = buf
	return nil
}

func (f *fakeShortTerm) Recent(ctx context.Context, userID int64) ([]core.Turn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return append([]core.Turn(nil), f.turns[userID]...), nil
}

func testRules(t *testing.T) *rules.Rules {
	t.Helper()
	r, err := rules.New(rules.Config{
		NoisePatterns:     []string{`^\W+$`},
		ImportantKeywords: []string{"favorite", "my name is"},
		BlockedWords:      []string{"casino"},
	})
	if err != nil {
		t.Fatalf("build rules: %v", err)
	}
	return r
}

func TestConsider_ShortMessageNeverReachesJudge(t *testing.T) {
	store := newFakeLongTerm()
	judge := &fakeJudge{answer: true}
	admission := memory.NewAdmission(memory.NewClassifier(testRules(t), judge), store, 50)

	admission.Consider(context.Background(), 1, "ok", []float32{1, 0})

	if judge.callCount() != 0 {
		t.Errorf("judge consulted %d times for a fast-rejected message", judge.callCount())
	}
	if n := len(store.stored(1)); n != 0 {
		t.Errorf("expected no records, got %d", n)
	}
}

func TestConsider_KeywordAdmittedWithoutJudge(t *testing.T) {
	store := newFakeLongTerm()
	judge := &fakeJudge{answer: false}
	admission := memory.NewAdmission(memory.NewClassifier(testRules(t), judge), store, 50)

	admission.Consider(context.Background(), 1, "My favorite color is blue", []float32{1, 0})

	if judge.callCount() != 0 {
		t.Errorf("judge consulted for an allow-listed message")
	}
	if got := store.stored(1); len(got) != 1 || got[0] != "My favorite color is blue" {
		t.Errorf("expected one stored record, got %v", got)
	}
}

func TestConsider_QuestionWithKeywordRejected(t *testing.T) {
	store := newFakeLongTerm()
	admission := memory.NewAdmission(memory.NewClassifier(testRules(t), &fakeJudge{answer: true}), store, 50)

	admission.Consider(context.Background(), 1, "is blue my favorite color or not?", []float32{1, 0})

	if n := len(store.stored(1)); n != 0 {
		t.Errorf("question was admitted: %d records", n)
	}
}

func TestConsider_JudgeDecidesInconclusiveCase(t *testing.T) {
	store := newFakeLongTerm()
	judge := &fakeJudge{answer: true}
	admission := memory.NewAdmission(memory.NewClassifier(testRules(t), judge), store, 50)

	admission.Consider(context.Background(), 1, "I moved to Lisbon last spring", []float32{1, 0})

	if judge.callCount() != 1 {
		t.Fatalf("expected exactly one judge call, got %d", judge.callCount())
	}
	if n := len(store.stored(1)); n != 1 {
		t.Errorf("expected one stored record, got %d", n)
	}
}

func TestConsider_JudgeErrorDropsCandidate(t *testing.T) {
	store := newFakeLongTerm()
	judge := &fakeJudge{answer: true, err: fmt.Errorf("model timeout")}
	admission := memory.NewAdmission(memory.NewClassifier(testRules(t), judge), store, 50)

	admission.Consider(context.Background(), 1, "I moved to Lisbon last spring", []float32{1, 0})

	if n := len(store.stored(1)); n != 0 {
		t.Errorf("candidate stored despite judge error")
	}
}

func TestConsider_CapReachedSaveNeverInvoked(t *testing.T) {
	store := newFakeLongTerm()
	for i := 0; i < 50; i++ {
		store.records[1] = append(store.records[1], fmt.Sprintf("fact %d", i))
	}
	admission := memory.NewAdmission(memory.NewClassifier(testRules(t), &fakeJudge{answer: true}), store, 50)

	admission.Consider(context.Background(), 1, "My favorite season is autumn", []float32{1, 0})

	if n := len(store.stored(1)); n != 50 {
		t.Errorf("expected store unchanged at 50 records, got %d", n)
	}
}

func TestConsider_StoreErrorsAreSwallowed(t *testing.T) {
	store := newFakeLongTerm()
	store.countErr = fmt.Errorf("connection refused")
	admission := memory.NewAdmission(memory.NewClassifier(testRules(t), &fakeJudge{answer: true}), store, 50)

	// Must not panic or propagate.
	admission.Consider(context.Background(), 1, "My favorite season is autumn", []float32{1, 0})
}
