// ABOUTME: Builds and writes sync activity entries for persisted candidates
// ABOUTME: One "sync" activity per candidate, written as a single batch
package sync

import (
	"context"
	"time"

	"github.com/clear-match/clearmatch/models"
	"github.com/google/uuid"
)

const syncDescription = "Synced from HubSpot"

type ActivityRecorder struct {
	store ActivityStore
	now   func() time.Time
}

func NewActivityRecorder(store ActivityStore, clock func() time.Time) *ActivityRecorder {
	if clock == nil {
		clock = time.Now
	}
	return &ActivityRecorder{store: store, now: clock}
}

// Build returns one sync activity per candidate. ops maps candidate id to the
// operation that persisted it.
func (r *ActivityRecorder) Build(persisted []*models.Candidate, ops map[string]string, organizationID, actorID, runID string) []*models.Activity {
	now := r.now().UTC()
	syncedAt := now.Format(ISOTimestamp)

	activities := make([]*models.Activity, 0, len(persisted))
	for _, c := range persisted {
		activities = append(activities, &models.Activity{
			ID:             uuid.New().String(),
			OrganizationID: organizationID,
			EntityID:       c.ID,
			EntityType:     models.EntityTypeCandidate,
			Type:           models.ActivityTypeSync,
			Description:    syncDescription,
			Metadata: models.ActivityMetadata{
				Source:    models.SourceHubSpot,
				SyncedAt:  syncedAt,
				RunID:     runID,
				Operation: ops[c.ID],
			},
			CreatedBy: actorID,
			CreatedAt: now,
		})
	}
	return activities
}

// Record writes one sync activity per persisted candidate in one batch.
func (r *ActivityRecorder) Record(ctx context.Context, persisted []*models.Candidate, ops map[string]string, organizationID, actorID, runID string) error {
	if len(persisted) == 0 {
		return nil
	}

	activities := r.Build(persisted, ops, organizationID, actorID, runID)
	if err := r.store.InsertActivities(ctx, activities); err != nil {
		return &ActivityWriteError{Count: len(activities), Err: err}
	}
	return nil
}
