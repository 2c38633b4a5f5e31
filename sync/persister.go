// ABOUTME: Writes reconciled candidates to storage
// ABOUTME: Inserts go in one transactional batch; updates run concurrently per record
package sync

import (
	"context"

	"github.com/clear-match/clearmatch/models"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const DefaultUpdateConcurrency = 8

// PersistOutcome reports where every input record ended up.
type PersistOutcome struct {
	Inserted  []*models.Candidate
	Updated   []*models.Candidate
	Failed    []*UpdateRecordError
	InsertErr *InsertBatchError
}

type Persister struct {
	store       CandidateStore
	concurrency int
	logger      *zap.Logger
}

// NewPersister returns a Persister issuing at most concurrency updates at once.
func NewPersister(store CandidateStore, concurrency int, logger *zap.Logger) *Persister {
	if concurrency <= 0 {
		concurrency = DefaultUpdateConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Persister{store: store, concurrency: concurrency, logger: logger}
}

// Persist inserts toInsert as one batch, then updates toUpdate. A failed insert batch
// stops the page before any update is attempted; each skipped update is reported in
// Failed wrapping the batch error.
func (p *Persister) Persist(ctx context.Context, toInsert, toUpdate []*models.Candidate) *PersistOutcome {
	out := &PersistOutcome{}

	if len(toInsert) > 0 {
		if err := p.store.InsertCandidates(ctx, toInsert); err != nil {
			out.InsertErr = &InsertBatchError{Count: len(toInsert), Err: err}
			for _, c := range toUpdate {
				out.Failed = append(out.Failed, &UpdateRecordError{CandidateID: c.ID, Email: c.PersonalEmail, Err: out.InsertErr})
			}
			return out
		}
		out.Inserted = toInsert
	}

	if len(toUpdate) == 0 {
		return out
	}

	updated := make([]bool, len(toUpdate))
	failures := make([]*UpdateRecordError, len(toUpdate))

	// Plain group: one failed update must not cancel its siblings.
	var g errgroup.Group
	g.SetLimit(p.concurrency)
	for i, c := range toUpdate {
		g.Go(func() error {
			if err := p.store.UpdateCandidate(ctx, c.ID, c); err != nil {
				p.logger.Warn("candidate update failed", zap.String("candidate_id", c.ID), zap.Error(err))
				failures[i] = &UpdateRecordError{CandidateID: c.ID, Email: c.PersonalEmail, Err: err}
				return nil
			}
			updated[i] = true
			return nil
		})
	}
	_ = g.Wait()

	// Results are collected by index so output order matches input order.
	for i, c := range toUpdate {
		if updated[i] {
			out.Updated = append(out.Updated, c)
			continue
		}
		out.Failed = append(out.Failed, failures[i])
	}

	return out
}
