// ABOUTME: Activity database operations
// ABOUTME: Append-only batched inserts and per-entity timeline lookups
package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/clear-match/clearmatch/models"
	"github.com/google/uuid"
)

// InsertActivities writes all activities in one transaction.
func (s *Store) InsertActivities(ctx context.Context, activities []*models.Activity) error {
	if len(activities) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback() // Safe even after commit
	}()

	stmt, err := tx.PrepareContext(ctx, s.rebind(`
		INSERT INTO activities (id, organization_id, entity_id, entity_type, type, description, metadata, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`))
	if err != nil {
		return fmt.Errorf("failed to prepare activity insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, a := range activities {
		if a.ID == "" {
			a.ID = uuid.New().String()
		}
		if a.CreatedAt.IsZero() {
			a.CreatedAt = time.Now().UTC()
		}

		metadata, err := json.Marshal(a.Metadata)
		if err != nil {
			return fmt.Errorf("failed to encode activity metadata: %w", err)
		}

		if _, err := stmt.ExecContext(ctx,
			a.ID, a.OrganizationID, a.EntityID, a.EntityType, a.Type, a.Description,
			string(metadata), a.CreatedBy, a.CreatedAt,
		); err != nil {
			return fmt.Errorf("failed to insert activity: %w", err)
		}
	}

	return tx.Commit()
}

// ListActivities returns an entity's activities, newest first.
func (s *Store) ListActivities(ctx context.Context, organizationID, entityID string) ([]models.Activity, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT id, organization_id, entity_id, entity_type, type, description, metadata, created_by, created_at
		FROM activities
		WHERE organization_id = ? AND entity_id = ?
		ORDER BY created_at DESC
	`), organizationID, entityID)
	if err != nil {
		return nil, fmt.Errorf("failed to query activities: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var activities []models.Activity
	for rows.Next() {
		var a models.Activity
		var metadata []byte
		if err := rows.Scan(&a.ID, &a.OrganizationID, &a.EntityID, &a.EntityType, &a.Type,
			&a.Description, &metadata, &a.CreatedBy, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &a.Metadata); err != nil {
				return nil, fmt.Errorf("failed to decode activity metadata: %w", err)
			}
		}
		activities = append(activities, a)
	}

	return activities, rows.Err()
}

// CountActivities returns the number of activities of the given type for the organization.
func (s *Store) CountActivities(ctx context.Context, organizationID, activityType string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT COUNT(*) FROM activities WHERE organization_id = ? AND type = ?
	`), organizationID, activityType).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count activities: %w", err)
	}
	return count, nil
}
