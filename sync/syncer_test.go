package sync

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/clear-match/clearmatch/db"
	"github.com/clear-match/clearmatch/hubspot"
	"github.com/clear-match/clearmatch/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSyncer(source ContactSource, store *memStore) *Syncer {
	return New(source, store, store, store, Options{PageDelay: -1, Clock: fixedClock})
}

func TestSyncAnnScenario(t *testing.T) {
	store := newMemStore()
	source := &pageSource{pages: pagesOf([]models.RemoteContact{{
		ID:         "42",
		Properties: map[string]string{"firstname": "Ann", "email": "ann@x.com", "jobtitle": "Engineer"},
	}})}

	result := newTestSyncer(source, store).Sync(context.Background(), "org", "actor")

	require.True(t, result.Success, result.Error)
	assert.Equal(t, 1, result.SyncedCount)
	assert.Equal(t, 1, result.Inserted)
	assert.Equal(t, 1, result.BatchesProcessed)
	assert.NotEmpty(t, result.RunID)

	require.Len(t, store.activities, 1)
	act := store.activities[0]
	assert.Equal(t, models.ActivityTypeSync, act.Type)
	assert.Equal(t, models.EntityTypeCandidate, act.EntityType)
	assert.Equal(t, models.OperationInserted, act.Metadata.Operation)
	assert.Equal(t, result.RunID, act.Metadata.RunID)
	assert.Equal(t, "actor", act.CreatedBy)

	stored, ok := store.candidates[act.EntityID]
	require.True(t, ok, "activity must reference the new candidate id")
	assert.Equal(t, "Engineer", stored.CurrentJobTitle)
	assert.Equal(t, "42", stored.NurturingInfo.HubSpotID)

	assert.Equal(t, []string{models.SyncStatusSyncing, models.SyncStatusIdle}, store.statuses)
}

func TestSyncPaginationTerminates(t *testing.T) {
	store := newMemStore()
	source := &pageSource{pages: pagesOf(
		[]models.RemoteContact{contact("1", "A", "a@x.com"), contact("2", "B", "b@x.com")},
		[]models.RemoteContact{contact("3", "C", "c@x.com")},
		[]models.RemoteContact{contact("4", "D", "")},
	)}

	result := newTestSyncer(source, store).Sync(context.Background(), "org", "actor")

	require.True(t, result.Success, result.Error)
	assert.Equal(t, 3, result.BatchesProcessed)
	assert.Equal(t, 4, result.SyncedCount)
	assert.Equal(t, []string{"", "page-1", "page-2"}, source.fetched)
}

func TestSyncEmptyRemote(t *testing.T) {
	store := newMemStore()
	result := newTestSyncer(&pageSource{}, store).Sync(context.Background(), "org", "actor")

	require.True(t, result.Success)
	assert.Equal(t, 0, result.SyncedCount)
	assert.Equal(t, 1, result.BatchesProcessed)
	assert.Empty(t, store.activities)
}

func TestSyncDuplicateAcrossPagesUpdates(t *testing.T) {
	store := newMemStore()
	source := &pageSource{pages: pagesOf(
		[]models.RemoteContact{contact("1", "A", "a@x.com")},
		[]models.RemoteContact{contact("2", "A again", "A@x.com")},
	)}

	result := newTestSyncer(source, store).Sync(context.Background(), "org", "actor")

	require.True(t, result.Success, result.Error)
	assert.Equal(t, 1, result.Inserted)
	assert.Equal(t, 1, result.Updated)
	assert.Equal(t, 1, store.count())
}

func TestSyncIntraBatchDuplicateCounted(t *testing.T) {
	store := newMemStore()
	source := &pageSource{pages: pagesOf([]models.RemoteContact{
		contact("1", "First", "dup@x.com"),
		contact("2", "Second", "dup@x.com"),
	})}

	result := newTestSyncer(source, store).Sync(context.Background(), "org", "actor")

	require.True(t, result.Success, result.Error)
	assert.Equal(t, 1, result.SyncedCount)
	assert.Equal(t, 1, result.SkippedDuplicates)
	require.Equal(t, 1, store.count())
	for _, c := range store.candidates {
		assert.Equal(t, "Second", c.FirstName)
	}
}

func TestSyncFetchErrorFails(t *testing.T) {
	store := newMemStore()
	apiErr := &hubspot.APIError{StatusCode: 401, Body: "unauthorized"}
	source := &pageSource{
		pages:  pagesOf([]models.RemoteContact{contact("1", "A", "a@x.com")}, nil),
		failAt: 2,
		err:    apiErr,
	}

	result := newTestSyncer(source, store).Sync(context.Background(), "org", "actor")

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "fetch page 2")
	assert.Contains(t, result.Error, "401")
	assert.Equal(t, 1, result.SyncedCount, "counts from completed pages are kept")
	assert.Equal(t, []string{models.SyncStatusSyncing, models.SyncStatusError}, store.statuses)
}

func TestSyncReconcileErrorFails(t *testing.T) {
	store := newMemStore()
	store.failLookup = errors.New("timeout")
	source := &pageSource{pages: pagesOf([]models.RemoteContact{contact("1", "A", "a@x.com")})}

	result := newTestSyncer(source, store).Sync(context.Background(), "org", "actor")

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "reconcile page 1")
	assert.Equal(t, 0, store.count())
}

func TestSyncInsertBatchFailureWritesNoActivities(t *testing.T) {
	store := newMemStore()
	store.failInsert = errors.New("constraint")
	store.seed(&models.Candidate{OrganizationID: "org", FirstName: "Old", PersonalEmail: "c@x.com"})
	source := &pageSource{pages: pagesOf([]models.RemoteContact{
		contact("1", "A", "a@x.com"),
		contact("2", "B", "b@x.com"),
		contact("3", "C", "c@x.com"),
	})}

	result := newTestSyncer(source, store).Sync(context.Background(), "org", "actor")

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "insert batch of 2 on page 1")
	assert.Equal(t, 3, result.Failed, "skipped updates count as failed")
	assert.Equal(t, 0, result.SyncedCount)
	assert.Empty(t, store.activities)
}

func TestSyncUpdateFailureContinuesPaging(t *testing.T) {
	store := newMemStore()
	store.seed(&models.Candidate{OrganizationID: "org", FirstName: "Old", PersonalEmail: "bad@x.com"})
	store.failUpdateFor = map[string]error{"bad@x.com": errors.New("row locked")}

	source := &pageSource{pages: pagesOf(
		[]models.RemoteContact{contact("1", "Bad", "bad@x.com"), contact("2", "Good", "good@x.com")},
		[]models.RemoteContact{contact("3", "Later", "later@x.com")},
	)}

	result := newTestSyncer(source, store).Sync(context.Background(), "org", "actor")

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "row locked")
	assert.Equal(t, 2, result.BatchesProcessed)
	assert.Equal(t, 2, result.SyncedCount)
	assert.Equal(t, 1, result.Failed)
	assert.Len(t, store.activities, 2, "only persisted candidates get activities")
}

func TestSyncActivityFailureStillSucceeds(t *testing.T) {
	store := newMemStore()
	store.failActivities = errors.New("activities table full")
	source := &pageSource{pages: pagesOf([]models.RemoteContact{contact("1", "A", "a@x.com")})}

	result := newTestSyncer(source, store).Sync(context.Background(), "org", "actor")

	assert.True(t, result.Success, result.Error)
	assert.Equal(t, 1, result.SyncedCount)
}

func TestSyncValidatesIDs(t *testing.T) {
	store := newMemStore()
	s := newTestSyncer(&pageSource{}, store)

	result := s.Sync(context.Background(), "", "actor")
	assert.False(t, result.Success)
	assert.Equal(t, ErrMissingOrganization.Error(), result.Error)

	result = s.Sync(context.Background(), "org", "")
	assert.False(t, result.Success)
	assert.Equal(t, ErrMissingActor.Error(), result.Error)

	assert.Empty(t, store.statuses)
}

type blockingSource struct {
	entered chan struct{}
	release chan struct{}
}

func (b *blockingSource) FetchPage(ctx context.Context, after string) (*models.ContactPage, error) {
	close(b.entered)
	<-b.release
	return &models.ContactPage{}, nil
}

func TestSyncRejectsConcurrentRunForSameOrganization(t *testing.T) {
	store := newMemStore()
	source := &blockingSource{entered: make(chan struct{}), release: make(chan struct{})}
	s := newTestSyncer(source, store)

	done := make(chan models.SyncResult)
	go func() { done <- s.Sync(context.Background(), "org", "actor") }()
	<-source.entered

	second := s.Sync(context.Background(), "org", "actor")
	assert.False(t, second.Success)
	assert.True(t, second.InProgress)
	assert.Equal(t, ErrSyncInProgress.Error(), second.Error)

	close(source.release)
	first := <-done
	assert.True(t, first.Success, first.Error)
	assert.False(t, first.InProgress)

	s.mu.Lock()
	defer s.mu.Unlock()
	assert.Empty(t, s.active, "guard is released when the run finishes")
}

func TestSyncCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := newTestSyncer(&pageSource{}, newMemStore()).Sync(ctx, "org", "actor")
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, context.Canceled.Error())
}

func TestSyncPageDelay(t *testing.T) {
	store := newMemStore()
	source := &pageSource{pages: pagesOf(nil, nil, nil)}
	s := New(source, store, store, store, Options{PageDelay: 20 * time.Millisecond})

	start := time.Now()
	result := s.Sync(context.Background(), "org", "actor")
	elapsed := time.Since(start)

	require.True(t, result.Success, result.Error)
	assert.GreaterOrEqual(t, elapsed, 35*time.Millisecond, "two inter-page delays expected")
}

// slowSource delays every fetch to stand in for a slow page.
type slowSource struct {
	inner ContactSource
	delay time.Duration
}

func (s *slowSource) FetchPage(ctx context.Context, after string) (*models.ContactPage, error) {
	time.Sleep(s.delay)
	return s.inner.FetchPage(ctx, after)
}

func TestSyncPageDelayFollowsSlowPages(t *testing.T) {
	store := newMemStore()
	source := &slowSource{inner: &pageSource{pages: pagesOf(nil, nil, nil)}, delay: 30 * time.Millisecond}
	s := New(source, store, store, store, Options{PageDelay: 20 * time.Millisecond})

	start := time.Now()
	result := s.Sync(context.Background(), "org", "actor")
	elapsed := time.Since(start)

	require.True(t, result.Success, result.Error)
	assert.GreaterOrEqual(t, elapsed, 3*30*time.Millisecond+2*20*time.Millisecond, "the pause is added after each page, not absorbed by slow fetches")
}

func TestPause(t *testing.T) {
	assert.NoError(t, pause(context.Background(), 0))
	assert.NoError(t, pause(context.Background(), -time.Second))
	assert.NoError(t, pause(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, pause(ctx, time.Hour), context.Canceled)
}

// cancelAfterInsert cancels the run's context once a candidate batch commits.
type cancelAfterInsert struct {
	*db.Store
	cancel context.CancelFunc
}

func (c *cancelAfterInsert) InsertCandidates(ctx context.Context, candidates []*models.Candidate) error {
	err := c.Store.InsertCandidates(ctx, candidates)
	c.cancel()
	return err
}

func TestSyncRecordsActivitiesWhenCancelledAfterInsert(t *testing.T) {
	store, err := db.Open(db.DriverSQLite, filepath.Join(t.TempDir(), "cancel.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	candidates := &cancelAfterInsert{Store: store, cancel: cancel}

	source := &pageSource{pages: pagesOf([]models.RemoteContact{contact("1", "Ann", "ann@x.com")})}
	s := New(source, candidates, store, store, Options{PageDelay: -1, Clock: fixedClock})

	result := s.Sync(ctx, "org", "actor")
	require.True(t, result.Success, result.Error)
	assert.Equal(t, 1, result.SyncedCount)

	bg := context.Background()
	count, err := store.CountActivities(bg, "org", models.ActivityTypeSync)
	require.NoError(t, err)
	assert.Equal(t, result.SyncedCount, count, "every synced candidate has its activity")
}

func TestSyncIdempotentAgainstSQLite(t *testing.T) {
	store, err := db.Open(db.DriverSQLite, filepath.Join(t.TempDir(), "sync.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	source := &pageSource{pages: pagesOf(
		[]models.RemoteContact{contact("1", "Ann", "ann@x.com"), contact("2", "Bob", "BOB@x.com")},
		[]models.RemoteContact{contact("3", "Cy", "cy@x.com")},
	)}
	s := New(source, store, store, store, Options{PageDelay: -1, Clock: fixedClock})
	ctx := context.Background()

	first := s.Sync(ctx, "org", "actor")
	require.True(t, first.Success, first.Error)
	assert.Equal(t, 3, first.Inserted)

	second := s.Sync(ctx, "org", "actor")
	require.True(t, second.Success, second.Error)
	assert.Equal(t, 0, second.Inserted)
	assert.Equal(t, 3, second.Updated)

	count, err := store.CountCandidates(ctx, "org")
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	activities, err := store.CountActivities(ctx, "org", models.ActivityTypeSync)
	require.NoError(t, err)
	assert.Equal(t, 6, activities, "one activity per persisted candidate per run")

	bob, err := store.FindCandidateByEmail(ctx, "org", "bob@x.com")
	require.NoError(t, err)
	timeline, err := store.ListActivities(ctx, "org", bob.ID)
	require.NoError(t, err)
	assert.Len(t, timeline, 2)

	state, err := store.GetSyncState(ctx, "org", models.ServiceHubSpotContacts)
	require.NoError(t, err)
	assert.Equal(t, models.SyncStatusIdle, state.Status)
	assert.Equal(t, second.RunID, state.LastRunID)
	assert.Equal(t, 3, state.LastSyncedCount)
}
