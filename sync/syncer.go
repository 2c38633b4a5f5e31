// ABOUTME: Orchestrates a full HubSpot contact sync for one organization
// ABOUTME: Pages sequentially through fetch, transform, reconcile, persist, and activity stages
package sync

import (
	"context"
	"errors"
	"fmt"
	stdsync "sync"
	"time"

	"github.com/clear-match/clearmatch/models"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

const DefaultPageDelay = 100 * time.Millisecond

type stage string

const (
	stageFetching     stage = "FETCHING"
	stageTransforming stage = "TRANSFORMING"
	stageReconciling  stage = "RECONCILING"
	stagePersisting   stage = "PERSISTING"
	stageRecording    stage = "RECORDING_ACTIVITY"
	stageDone         stage = "DONE"
	stageFailed       stage = "FAILED"
)

// Options tunes a Syncer. Zero values fall back to defaults.
type Options struct {
	// PageDelay is the pause before each following page request. Negative disables it.
	PageDelay         time.Duration
	UpdateConcurrency int
	Clock             func() time.Time
	Logger            *zap.Logger
}

// Syncer runs the sync pipeline. It is safe for concurrent use; runs for the same
// organization are serialized by refusing the second with ErrSyncInProgress.
type Syncer struct {
	source      ContactSource
	transformer *Transformer
	reconciler  *Reconciler
	persister   *Persister
	recorder    *ActivityRecorder
	state       StateStore
	pageDelay   time.Duration
	now         func() time.Time
	logger      *zap.Logger

	mu     stdsync.Mutex
	active map[string]bool
}

// New wires a Syncer. state may be nil, in which case no bookkeeping is written.
func New(source ContactSource, candidates CandidateStore, activities ActivityStore, state StateStore, opts Options) *Syncer {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	delay := opts.PageDelay
	if delay == 0 {
		delay = DefaultPageDelay
	}

	return &Syncer{
		source:      source,
		transformer: NewTransformer(clock),
		reconciler:  NewReconciler(candidates, logger),
		persister:   NewPersister(candidates, opts.UpdateConcurrency, logger),
		recorder:    NewActivityRecorder(activities, clock),
		state:       state,
		pageDelay:   delay,
		now:         clock,
		logger:      logger,
		active:      make(map[string]bool),
	}
}

// Sync pulls every remote contact into the organization's candidates. Failures are
// reported on the result, never returned or panicked.
func (s *Syncer) Sync(ctx context.Context, organizationID, actorID string) models.SyncResult {
	result := models.SyncResult{
		RunID:     ulid.Make().String(),
		StartedAt: s.now().UTC(),
	}

	switch {
	case organizationID == "":
		return s.finish(result, ErrMissingOrganization)
	case actorID == "":
		return s.finish(result, ErrMissingActor)
	}

	if !s.acquire(organizationID) {
		return s.finish(result, ErrSyncInProgress)
	}
	defer s.release(organizationID)

	log := s.logger.With(zap.String("run_id", result.RunID), zap.String("organization_id", organizationID))
	log.Info("starting hubspot sync")

	s.setStatus(ctx, log, organizationID, models.SyncStatusSyncing, result.RunID, nil)

	err := s.run(ctx, log, organizationID, actorID, &result)
	result = s.finish(result, err)

	if err != nil {
		log.Debug("stage", zap.String("stage", string(stageFailed)))
		log.Error("hubspot sync failed",
			zap.Int("synced", result.SyncedCount),
			zap.Int("batches", result.BatchesProcessed),
			zap.Error(err),
		)
		msg := result.Error
		// Bookkeeping outlives a cancelled request context.
		s.setStatus(context.WithoutCancel(ctx), log, organizationID, models.SyncStatusError, result.RunID, &msg)
		return result
	}

	log.Debug("stage", zap.String("stage", string(stageDone)))
	log.Info("hubspot sync complete",
		zap.Int("synced", result.SyncedCount),
		zap.Int("inserted", result.Inserted),
		zap.Int("updated", result.Updated),
		zap.Int("batches", result.BatchesProcessed),
	)
	if s.state != nil {
		if err := s.state.MarkSyncComplete(context.WithoutCancel(ctx), organizationID, models.ServiceHubSpotContacts, result.RunID, result.SyncedCount); err != nil {
			log.Warn("failed to record sync completion", zap.Error(err))
		}
	}

	return result
}

func (s *Syncer) run(ctx context.Context, log *zap.Logger, organizationID, actorID string, result *models.SyncResult) error {
	var updateErrs []error
	after := ""

	for page := 1; ; page++ {
		pageLog := log.With(zap.Int("page", page))

		if page > 1 {
			if err := pause(ctx, s.pageDelay); err != nil {
				return fmt.Errorf("page %d: %w", page, err)
			}
		} else if err := ctx.Err(); err != nil {
			return fmt.Errorf("page %d: %w", page, err)
		}

		pageLog.Debug("stage", zap.String("stage", string(stageFetching)))
		contacts, err := s.source.FetchPage(ctx, after)
		if err != nil {
			return &RemoteFetchError{Page: page, Err: err}
		}
		if contacts == nil {
			contacts = &models.ContactPage{}
		}

		pageLog.Debug("stage", zap.String("stage", string(stageTransforming)), zap.Int("records", len(contacts.Records)))
		candidates := make([]*models.Candidate, 0, len(contacts.Records))
		for _, remote := range contacts.Records {
			c, err := s.transformer.Transform(remote, organizationID, actorID)
			if err != nil {
				return fmt.Errorf("transform page %d: %w", page, err)
			}
			candidates = append(candidates, c)
		}

		pageLog.Debug("stage", zap.String("stage", string(stageReconciling)))
		rec, err := s.reconciler.Reconcile(ctx, candidates, organizationID)
		if err != nil {
			return &ReconciliationQueryError{Page: page, Err: err}
		}
		result.SkippedDuplicates += len(rec.Superseded)

		pageLog.Debug("stage", zap.String("stage", string(stagePersisting)),
			zap.Int("to_insert", len(rec.ToInsert)),
			zap.Int("to_update", len(rec.ToUpdate)),
		)
		outcome := s.persister.Persist(ctx, rec.ToInsert, rec.ToUpdate)
		if outcome.InsertErr != nil {
			outcome.InsertErr.Page = page
			result.Failed += len(rec.ToInsert) + len(outcome.Failed)
			return outcome.InsertErr
		}
		for _, f := range outcome.Failed {
			f.Page = page
			updateErrs = append(updateErrs, f)
		}

		result.Inserted += len(outcome.Inserted)
		result.Updated += len(outcome.Updated)
		result.Failed += len(outcome.Failed)
		result.SyncedCount = result.Inserted + result.Updated

		pageLog.Debug("stage", zap.String("stage", string(stageRecording)))
		persisted := make([]*models.Candidate, 0, len(outcome.Inserted)+len(outcome.Updated))
		ops := make(map[string]string, cap(persisted))
		for _, c := range outcome.Inserted {
			persisted = append(persisted, c)
			ops[c.ID] = models.OperationInserted
		}
		for _, c := range outcome.Updated {
			persisted = append(persisted, c)
			ops[c.ID] = models.OperationUpdated
		}
		// The page's writes have committed, so its activities are recorded even if ctx is done.
		if err := s.recorder.Record(context.WithoutCancel(ctx), persisted, ops, organizationID, actorID, result.RunID); err != nil {
			var awe *ActivityWriteError
			if errors.As(err, &awe) {
				awe.Page = page
			}
			pageLog.Warn("failed to record sync activities", zap.Error(err))
		}

		result.BatchesProcessed++

		if contacts.NextPageToken == "" {
			break
		}
		after = contacts.NextPageToken
	}

	if len(updateErrs) > 0 {
		return errors.Join(updateErrs...)
	}
	return nil
}

func (s *Syncer) finish(result models.SyncResult, err error) models.SyncResult {
	result.FinishedAt = s.now().UTC()
	result.Success = err == nil
	result.InProgress = errors.Is(err, ErrSyncInProgress)
	if err != nil {
		result.Error = err.Error()
	}
	return result
}

// pause waits d, returning early with ctx's error if it is done first. d <= 0 returns at once.
func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (s *Syncer) setStatus(ctx context.Context, log *zap.Logger, organizationID, status, runID string, msg *string) {
	if s.state == nil {
		return
	}
	if err := s.state.UpdateSyncStatus(ctx, organizationID, models.ServiceHubSpotContacts, status, runID, msg); err != nil {
		log.Warn("failed to update sync status", zap.String("status", status), zap.Error(err))
	}
}

func (s *Syncer) acquire(organizationID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active[organizationID] {
		return false
	}
	s.active[organizationID] = true
	return true
}

func (s *Syncer) release(organizationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.active, organizationID)
}
