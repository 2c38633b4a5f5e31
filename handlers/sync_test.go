// ABOUTME: Tests for HubSpot sync MCP tool handlers
// ABOUTME: Uses a temp SQLite store and a canned syncer
package handlers

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/clear-match/clearmatch/db"
	"github.com/clear-match/clearmatch/models"
)

type cannedSyncer struct {
	result    models.SyncResult
	gotOrg    string
	gotActor  string
	gotCtxErr error
}

func (c *cannedSyncer) Sync(ctx context.Context, organizationID, actorID string) models.SyncResult {
	c.gotCtxErr = ctx.Err()
	c.gotOrg = organizationID
	c.gotActor = actorID
	return c.result
}

func setupTestStore(t *testing.T) *db.Store {
	t.Helper()
	store, err := db.Open(db.DriverSQLite, filepath.Join(t.TempDir(), "handlers.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSyncContactsUsesDefaults(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	syncer := &cannedSyncer{result: models.SyncResult{
		Success:     true,
		SyncedCount: 4,
		RunID:       "run-1",
		StartedAt:   start,
		FinishedAt:  start.Add(2 * time.Second),
	}}
	h := NewSyncHandlers(syncer, setupTestStore(t), "org-1", "assistant")

	_, out, err := h.SyncContacts(context.Background(), nil, SyncContactsInput{})
	if err != nil {
		t.Fatalf("SyncContacts failed: %v", err)
	}

	if syncer.gotOrg != "org-1" || syncer.gotActor != "assistant" {
		t.Errorf("expected defaults org-1/assistant, got %s/%s", syncer.gotOrg, syncer.gotActor)
	}
	if !out.Success || out.SyncedCount != 4 {
		t.Errorf("unexpected output: %+v", out)
	}
	if out.Duration != "2s" {
		t.Errorf("expected duration 2s, got %s", out.Duration)
	}
}

func TestSyncContactsRequiresOrganization(t *testing.T) {
	h := NewSyncHandlers(&cannedSyncer{}, setupTestStore(t), "", "assistant")

	if _, _, err := h.SyncContacts(context.Background(), nil, SyncContactsInput{}); err == nil {
		t.Error("expected error without organization")
	}
}

func TestSyncContactsReportsFailure(t *testing.T) {
	syncer := &cannedSyncer{result: models.SyncResult{Success: false, Error: "fetch page 1: boom"}}
	h := NewSyncHandlers(syncer, setupTestStore(t), "org-1", "assistant")

	_, out, err := h.SyncContacts(context.Background(), nil, SyncContactsInput{ActorID: "user-9"})
	if err != nil {
		t.Fatalf("a failed sync should still produce a tool result: %v", err)
	}
	if out.Success || out.Error == "" {
		t.Errorf("expected failure output, got %+v", out)
	}
	if syncer.gotActor != "user-9" {
		t.Errorf("expected explicit actor, got %s", syncer.gotActor)
	}
}

func TestSyncContactsIgnoresCallCancellation(t *testing.T) {
	syncer := &cannedSyncer{result: models.SyncResult{Success: true}}
	h := NewSyncHandlers(syncer, setupTestStore(t), "org-1", "assistant")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, _, err := h.SyncContacts(ctx, nil, SyncContactsInput{}); err != nil {
		t.Fatalf("SyncContacts failed: %v", err)
	}
	if syncer.gotCtxErr != nil {
		t.Errorf("expected the run context to outlive the call, got %v", syncer.gotCtxErr)
	}
}

func TestGetSyncStatus(t *testing.T) {
	store := setupTestStore(t)
	h := NewSyncHandlers(&cannedSyncer{}, store, "org-1", "assistant")
	ctx := context.Background()

	_, out, err := h.GetSyncStatus(ctx, nil, SyncStatusInput{})
	if err != nil {
		t.Fatalf("GetSyncStatus failed: %v", err)
	}
	if out.Status != models.SyncStatusIdle || out.LastSyncTime != nil {
		t.Errorf("expected idle status with no sync time before any run, got %+v", out)
	}

	if err := store.MarkSyncComplete(ctx, "org-1", models.ServiceHubSpotContacts, "run-5", 9); err != nil {
		t.Fatalf("MarkSyncComplete failed: %v", err)
	}

	_, out, err = h.GetSyncStatus(ctx, nil, SyncStatusInput{})
	if err != nil {
		t.Fatalf("GetSyncStatus failed: %v", err)
	}
	if out.LastRunID != "run-5" || out.LastSyncedCount != 9 || out.LastSyncTime == nil {
		t.Errorf("unexpected status: %+v", out)
	}
}

func TestFindCandidateByEmail(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	c := &models.Candidate{
		OrganizationID: "org-1",
		FirstName:      "Ann",
		PersonalEmail:  "ann@x.com",
		TechStack:      []string{"Go"},
		NurturingInfo:  models.NurturingInfo{Source: models.SourceHubSpot, HubSpotID: "42"},
	}
	if err := store.InsertCandidates(ctx, []*models.Candidate{c}); err != nil {
		t.Fatalf("InsertCandidates failed: %v", err)
	}

	h := NewSyncHandlers(&cannedSyncer{}, store, "org-1", "assistant")

	_, out, err := h.FindCandidateByEmail(ctx, nil, FindCandidateInput{Email: "ANN@x.com"})
	if err != nil {
		t.Fatalf("FindCandidateByEmail failed: %v", err)
	}
	if out.ID != c.ID || out.HubSpotID != "42" {
		t.Errorf("unexpected candidate: %+v", out)
	}

	if _, _, err := h.FindCandidateByEmail(ctx, nil, FindCandidateInput{Email: "nobody@x.com"}); err == nil {
		t.Error("expected error for unknown email")
	}
	if _, _, err := h.FindCandidateByEmail(ctx, nil, FindCandidateInput{}); err == nil {
		t.Error("expected error for missing email")
	}
}
