package sync

import (
	"context"
	"errors"
	"fmt"
	"strings"
	stdsync "sync"
	"time"

	"github.com/clear-match/clearmatch/models"
	"github.com/google/uuid"
)

var fixedNow = time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

// pageSource serves canned pages keyed by cursor. The first page has cursor "".
type pageSource struct {
	mu      stdsync.Mutex
	pages   []models.ContactPage
	failAt  int // 1-based page that fails; 0 never
	err     error
	fetched []string
}

func (p *pageSource) FetchPage(ctx context.Context, after string) (*models.ContactPage, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.fetched = append(p.fetched, after)
	idx := 0
	if after != "" {
		if _, err := fmt.Sscanf(after, "page-%d", &idx); err != nil {
			return nil, fmt.Errorf("bad cursor %q", after)
		}
	}
	if p.failAt == idx+1 {
		return nil, p.err
	}
	if idx >= len(p.pages) {
		return &models.ContactPage{}, nil
	}
	page := p.pages[idx]
	return &page, nil
}

// pagesOf builds chained pages so page i points at "page-(i+1)".
func pagesOf(batches ...[]models.RemoteContact) []models.ContactPage {
	pages := make([]models.ContactPage, len(batches))
	for i, b := range batches {
		pages[i] = models.ContactPage{Records: b}
		if i < len(batches)-1 {
			pages[i].NextPageToken = fmt.Sprintf("page-%d", i+1)
		}
	}
	return pages
}

func contact(id, first, email string) models.RemoteContact {
	return models.RemoteContact{
		ID:         id,
		Properties: map[string]string{"firstname": first, "email": email},
	}
}

// memStore is an in-memory CandidateStore, ActivityStore, and StateStore.
type memStore struct {
	mu         stdsync.Mutex
	candidates map[string]*models.Candidate
	activities []*models.Activity
	statuses   []string
	lookups    int

	failLookup     error
	failInsert     error
	failActivities error
	failUpdateFor  map[string]error // keyed by email
}

func newMemStore() *memStore {
	return &memStore{candidates: make(map[string]*models.Candidate)}
}

func (m *memStore) FindCandidateIDsByEmails(ctx context.Context, organizationID string, emails []string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lookups++
	if m.failLookup != nil {
		return nil, m.failLookup
	}

	want := make(map[string]bool, len(emails))
	for _, e := range emails {
		want[strings.ToLower(e)] = true
	}
	out := make(map[string]string)
	for id, c := range m.candidates {
		email := strings.ToLower(c.PersonalEmail)
		if c.OrganizationID == organizationID && email != "" && want[email] {
			out[email] = id
		}
	}
	return out, nil
}

func (m *memStore) InsertCandidates(ctx context.Context, candidates []*models.Candidate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failInsert != nil {
		return m.failInsert
	}
	for _, c := range candidates {
		c.ID = uuid.New().String()
		copied := *c
		m.candidates[c.ID] = &copied
	}
	return nil
}

func (m *memStore) UpdateCandidate(ctx context.Context, id string, c *models.Candidate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failUpdateFor[c.PersonalEmail]; err != nil {
		return err
	}
	if _, ok := m.candidates[id]; !ok {
		return errors.New("not found")
	}
	copied := *c
	copied.ID = id
	m.candidates[id] = &copied
	return nil
}

func (m *memStore) InsertActivities(ctx context.Context, activities []*models.Activity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failActivities != nil {
		return m.failActivities
	}
	m.activities = append(m.activities, activities...)
	return nil
}

func (m *memStore) UpdateSyncStatus(ctx context.Context, organizationID, service, status, runID string, errorMsg *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses = append(m.statuses, status)
	return nil
}

func (m *memStore) MarkSyncComplete(ctx context.Context, organizationID, service, runID string, syncedCount int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses = append(m.statuses, models.SyncStatusIdle)
	return nil
}

func (m *memStore) seed(c *models.Candidate) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New().String()
	copied := *c
	copied.ID = id
	m.candidates[id] = &copied
	return id
}

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.candidates)
}
