// ABOUTME: Routes transformed candidates to insert or update by personal email
// ABOUTME: One storage lookup per batch; intra-batch duplicate emails resolve last-wins
package sync

import (
	"context"

	"github.com/clear-match/clearmatch/models"
	"go.uber.org/zap"
)

// Reconciliation is the routing of one batch.
type Reconciliation struct {
	ToInsert []*models.Candidate
	// ToUpdate candidates carry the existing record's id.
	ToUpdate []*models.Candidate
	// Superseded holds earlier occurrences of an email repeated later in the batch.
	Superseded []*models.Candidate
}

type Reconciler struct {
	store  CandidateStore
	logger *zap.Logger
}

func NewReconciler(store CandidateStore, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{store: store, logger: logger}
}

// Reconcile splits candidates into inserts and updates against the organization's existing
// records. Input order is preserved within each list.
func (r *Reconciler) Reconcile(ctx context.Context, candidates []*models.Candidate, organizationID string) (*Reconciliation, error) {
	result := &Reconciliation{}
	if len(candidates) == 0 {
		return result, nil
	}

	idx := newEmailIndex(candidates)

	existing := map[string]string{}
	if emails := idx.Emails(); len(emails) > 0 {
		found, err := r.store.FindCandidateIDsByEmails(ctx, organizationID, emails)
		if err != nil {
			return nil, err
		}
		for email, id := range found {
			existing[normalizeEmail(email)] = id
		}
	}

	for i, c := range candidates {
		email := normalizeEmail(c.PersonalEmail)
		if email == "" {
			result.ToInsert = append(result.ToInsert, c)
			continue
		}

		if !idx.Wins(email, i) {
			r.logger.Warn("duplicate email in batch, keeping last occurrence",
				zap.String("organization_id", organizationID),
				zap.String("hubspot_id", c.NurturingInfo.HubSpotID),
			)
			result.Superseded = append(result.Superseded, c)
			continue
		}

		if id, ok := existing[email]; ok {
			c.ID = id
			result.ToUpdate = append(result.ToUpdate, c)
			continue
		}
		result.ToInsert = append(result.ToInsert, c)
	}

	return result, nil
}
