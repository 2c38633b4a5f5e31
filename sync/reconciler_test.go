package sync

import (
	"context"
	"errors"
	"testing"

	"github.com/clear-match/clearmatch/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cand(first, email string) *models.Candidate {
	return &models.Candidate{OrganizationID: "org", FirstName: first, PersonalEmail: email}
}

func TestReconcileRoutesByEmail(t *testing.T) {
	store := newMemStore()
	existingID := store.seed(cand("Old", "Ann@X.com"))

	r := NewReconciler(store, nil)
	ann := cand("Ann", "ann@x.com ")
	bob := cand("Bob", "bob@x.com")
	anon := cand("Anon", "")

	rec, err := r.Reconcile(context.Background(), []*models.Candidate{ann, bob, anon}, "org")
	require.NoError(t, err)

	require.Len(t, rec.ToUpdate, 1)
	assert.Same(t, ann, rec.ToUpdate[0])
	assert.Equal(t, existingID, ann.ID)
	assert.Equal(t, []*models.Candidate{bob, anon}, rec.ToInsert)
	assert.Empty(t, rec.Superseded)
	assert.Equal(t, 1, store.lookups, "one lookup per batch")
}

func TestReconcileScopesToOrganization(t *testing.T) {
	store := newMemStore()
	other := cand("Ann", "ann@x.com")
	other.OrganizationID = "other"
	store.seed(other)

	rec, err := NewReconciler(store, nil).Reconcile(context.Background(), []*models.Candidate{cand("Ann", "ann@x.com")}, "org")
	require.NoError(t, err)

	assert.Len(t, rec.ToInsert, 1)
	assert.Empty(t, rec.ToUpdate)
}

func TestReconcileIntraBatchDuplicatesLastWins(t *testing.T) {
	store := newMemStore()
	first := cand("First", "dup@x.com")
	second := cand("Second", "DUP@x.com")

	rec, err := NewReconciler(store, nil).Reconcile(context.Background(), []*models.Candidate{first, second}, "org")
	require.NoError(t, err)

	assert.Equal(t, []*models.Candidate{second}, rec.ToInsert)
	assert.Equal(t, []*models.Candidate{first}, rec.Superseded)
}

func TestReconcileWithoutEmailsSkipsLookup(t *testing.T) {
	store := newMemStore()

	rec, err := NewReconciler(store, nil).Reconcile(context.Background(), []*models.Candidate{cand("A", ""), cand("B", " ")}, "org")
	require.NoError(t, err)

	assert.Len(t, rec.ToInsert, 2)
	assert.Equal(t, 0, store.lookups)
}

func TestReconcileEmptyBatch(t *testing.T) {
	rec, err := NewReconciler(newMemStore(), nil).Reconcile(context.Background(), nil, "org")
	require.NoError(t, err)
	assert.Empty(t, rec.ToInsert)
	assert.Empty(t, rec.ToUpdate)
}

func TestReconcileLookupFailure(t *testing.T) {
	store := newMemStore()
	store.failLookup = errors.New("db down")

	_, err := NewReconciler(store, nil).Reconcile(context.Background(), []*models.Candidate{cand("A", "a@x.com")}, "org")
	assert.ErrorIs(t, err, store.failLookup)
}
