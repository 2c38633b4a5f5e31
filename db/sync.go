// ABOUTME: Database operations for the sync_state table
// ABOUTME: Tracks per-organization sync status, last run, and error messages
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/clear-match/clearmatch/models"
)

// GetSyncState retrieves the sync state for an organization and service, or ErrNotFound.
func (s *Store) GetSyncState(ctx context.Context, organizationID, service string) (*models.SyncState, error) {
	var state models.SyncState
	var lastSyncTime sql.NullTime
	var errorMessage sql.NullString

	err := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT organization_id, service, status, last_sync_time, last_run_id, last_synced_count, error_message, updated_at
		FROM sync_state
		WHERE organization_id = ? AND service = ?
	`), organizationID, service).Scan(
		&state.OrganizationID,
		&state.Service,
		&state.Status,
		&lastSyncTime,
		&state.LastRunID,
		&state.LastSyncedCount,
		&errorMessage,
		&state.UpdatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sync state: %w", err)
	}

	if lastSyncTime.Valid {
		state.LastSyncTime = &lastSyncTime.Time
	}
	if errorMessage.Valid {
		state.ErrorMessage = errorMessage.String
	}

	return &state, nil
}

// UpdateSyncStatus sets the status for a service, recording the run id and error message.
func (s *Store) UpdateSyncStatus(ctx context.Context, organizationID, service, status, runID string, errorMsg *string) error {
	var errorMsgVal sql.NullString
	if errorMsg != nil {
		errorMsgVal = sql.NullString{String: *errorMsg, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO sync_state (organization_id, service, status, last_run_id, error_message, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(organization_id, service) DO UPDATE SET
			status = excluded.status,
			last_run_id = excluded.last_run_id,
			error_message = excluded.error_message,
			updated_at = excluded.updated_at
	`), organizationID, service, status, runID, errorMsgVal, time.Now().UTC())

	if err != nil {
		return fmt.Errorf("failed to update sync status: %w", err)
	}

	return nil
}

// MarkSyncComplete records a successful run and returns the service to idle.
func (s *Store) MarkSyncComplete(ctx context.Context, organizationID, service, runID string, syncedCount int) error {
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO sync_state (organization_id, service, status, last_sync_time, last_run_id, last_synced_count, updated_at)
		VALUES (?, ?, 'idle', ?, ?, ?, ?)
		ON CONFLICT(organization_id, service) DO UPDATE SET
			status = 'idle',
			last_sync_time = excluded.last_sync_time,
			last_run_id = excluded.last_run_id,
			last_synced_count = excluded.last_synced_count,
			error_message = NULL,
			updated_at = excluded.updated_at
	`), organizationID, service, now, runID, syncedCount, now)

	if err != nil {
		return fmt.Errorf("failed to mark sync complete: %w", err)
	}

	return nil
}
