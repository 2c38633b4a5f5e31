// ABOUTME: Storage and remote source interfaces consumed by the sync pipeline
// ABOUTME: Implemented by hubspot.Client and db.Store; faked in tests for failure injection
package sync

import (
	"context"

	"github.com/clear-match/clearmatch/models"
)

// ContactSource yields remote contacts one cursor page at a time.
type ContactSource interface {
	FetchPage(ctx context.Context, after string) (*models.ContactPage, error)
}

// CandidateStore is the candidate side of storage. Every call is scoped to one organization.
type CandidateStore interface {
	FindCandidateIDsByEmails(ctx context.Context, organizationID string, emails []string) (map[string]string, error)
	InsertCandidates(ctx context.Context, candidates []*models.Candidate) error
	UpdateCandidate(ctx context.Context, id string, c *models.Candidate) error
}

type ActivityStore interface {
	InsertActivities(ctx context.Context, activities []*models.Activity) error
}

// StateStore keeps per-organization sync bookkeeping.
type StateStore interface {
	UpdateSyncStatus(ctx context.Context, organizationID, service, status, runID string, errorMsg *string) error
	MarkSyncComplete(ctx context.Context, organizationID, service, runID string, syncedCount int) error
}
