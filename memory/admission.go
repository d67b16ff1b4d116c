package memory

import (
	"context"
	"log"
)

// Admission persists messages that clear the classifier, subject to
// the per-user capacity bound.
//
// Consider is designed to run detached from the reply path; its only
// observable effect is a possible new record. Every failure mode is
// logged and swallowed: a missed memory is not a correctness problem,
// a delayed reply would be.
type Admission struct {
	classifier *Classifier
	store      LongTermStore
	cap        int
}

// NewAdmission builds the admission pipeline. cap is the maximum
// number of records retained per user; once reached, new candidates
// are discussed but not remembered (first-N-facts-win, no eviction).
func NewAdmission(classifier *Classifier, store LongTermStore, cap int) *Admission {
	return &Admission{
		classifier: classifier,
		store:      store,
		cap:        cap,
	}
}

// Consider runs the full admission sequence for one candidate message.
//
// The count check and the insert are not transactionally coupled: two
// racing admissions for one user can both pass the check and overshoot
// the cap by a small margin. This is an accepted soft bound; the
// (user, text) uniqueness constraint still holds.
func (a *Admission) Consider(ctx context.Context, userID int64, text string, embedding []float32) {
	if !a.classifier.Decide(ctx, text) {
		return
	}

	count, err := a.store.Count(ctx, userID)
	if err != nil {
		log.Printf("[MEMORY] Count failed for user %d, dropping candidate: %v", userID, err)
		return
	}
	if count >= a.cap {
		log.Printf("[MEMORY] User %d at capacity (%d), candidate not stored", userID, a.cap)
		return
	}

	if err := a.store.Save(ctx, userID, text, embedding); err != nil {
		log.Printf("[MEMORY] Save failed for user %d: %v", userID, err)
		return
	}
	log.Printf("[MEMORY] Stored fact for user %d (%d/%d)", userID, count+1, a.cap)
}
