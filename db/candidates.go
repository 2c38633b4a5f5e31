// ABOUTME: Candidate database operations
// ABOUTME: Handles email lookups, batched transactional inserts, and per-record updates
package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/clear-match/clearmatch/models"
	"github.com/google/uuid"
)

// emailLookupChunk keeps IN lists below SQLite's bound variable limit.
const emailLookupChunk = 500

const candidateColumns = `id, organization_id, first_name, last_name, personal_email, work_email, phone,
	linkedin_url, github_url, current_job_title, current_company, industry, location, tech_stack,
	past_titles, remote_created_at, remote_updated_at, nurturing_info, created_by, updated_by,
	created_at, updated_at`

// FindCandidateIDsByEmails returns a map of normalized personal email to candidate id for the
// organization. Emails are matched case-insensitively; empty emails are ignored.
func (s *Store) FindCandidateIDsByEmails(ctx context.Context, organizationID string, emails []string) (map[string]string, error) {
	result := make(map[string]string)

	normalized := make([]string, 0, len(emails))
	seen := make(map[string]bool, len(emails))
	for _, e := range emails {
		n := strings.ToLower(strings.TrimSpace(e))
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		normalized = append(normalized, n)
	}

	for start := 0; start < len(normalized); start += emailLookupChunk {
		end := start + emailLookupChunk
		if end > len(normalized) {
			end = len(normalized)
		}
		chunk := normalized[start:end]

		args := make([]interface{}, 0, len(chunk)+1)
		args = append(args, organizationID)
		for _, e := range chunk {
			args = append(args, e)
		}

		query := s.rebind(`
			SELECT id, LOWER(personal_email)
			FROM candidates
			WHERE organization_id = ? AND personal_email <> '' AND LOWER(personal_email) IN (` + placeholders(len(chunk)) + `)
		`)

		if err := s.scanEmailIDs(ctx, query, args, result); err != nil {
			return nil, err
		}
	}

	return result, nil
}

func (s *Store) scanEmailIDs(ctx context.Context, query string, args []interface{}, into map[string]string) error {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to query candidates by email: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var id, email string
		if err := rows.Scan(&id, &email); err != nil {
			return fmt.Errorf("failed to scan candidate email: %w", err)
		}
		into[email] = id
	}

	return rows.Err()
}

// InsertCandidates inserts all candidates in one transaction. Either every row commits or none do.
// Candidates without an ID are assigned one.
func (s *Store) InsertCandidates(ctx context.Context, candidates []*models.Candidate) error {
	if len(candidates) == 0 {
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
		INSERT INTO candidates (`+candidateColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`))
	if err != nil {
		return fmt.Errorf("failed to prepare candidate insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	now := time.Now().UTC()
	assigned := make([]string, len(candidates))
	for i, c := range candidates {
		assigned[i] = c.ID
		if c.ID == "" {
			c.ID = uuid.New().String()
		}
		c.CreatedAt = now
		c.UpdatedAt = now

		row, err := candidateRow(c)
		if err != nil {
			resetIDs(candidates, assigned)
			return err
		}

		args := append([]interface{}{c.ID, c.OrganizationID}, row...)
		args = append(args, c.CreatedBy, c.UpdatedBy, c.CreatedAt, c.UpdatedAt)
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			resetIDs(candidates, assigned)
			return fmt.Errorf("failed to insert candidate %d of %d: %w", i+1, len(candidates), err)
		}
	}

	if err := tx.Commit(); err != nil {
		resetIDs(candidates, assigned)
		return fmt.Errorf("failed to commit candidate insert: %w", err)
	}

	return nil
}

// resetIDs restores the caller's IDs after a rolled back insert so no candidate
// carries an id that was never persisted.
func resetIDs(candidates []*models.Candidate, ids []string) {
	for i := range candidates {
		candidates[i].ID = ids[i]
	}
}

// UpdateCandidate overwrites the synced fields of an existing candidate. Organization id and
// creator are never changed. Returns ErrNotFound when no row matches.
func (s *Store) UpdateCandidate(ctx context.Context, id string, c *models.Candidate) error {
	if id == "" {
		return fmt.Errorf("candidate id is required")
	}

	row, err := candidateRow(c)
	if err != nil {
		return err
	}

	updatedAt := time.Now().UTC()
	args := append(row, c.UpdatedBy, updatedAt, id, c.OrganizationID)

	res, err := s.db.ExecContext(ctx, s.rebind(`
		UPDATE candidates
		SET first_name = ?, last_name = ?, personal_email = ?, work_email = ?, phone = ?,
			linkedin_url = ?, github_url = ?, current_job_title = ?, current_company = ?, industry = ?,
			location = ?, tech_stack = ?, past_titles = ?, remote_created_at = ?, remote_updated_at = ?,
			nurturing_info = ?, updated_by = ?, updated_at = ?
		WHERE id = ? AND organization_id = ?
	`), args...)
	if err != nil {
		return fmt.Errorf("failed to update candidate %s: %w", id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("candidate %s: %w", id, ErrNotFound)
	}

	c.ID = id
	c.UpdatedAt = updatedAt
	return nil
}

// GetCandidate returns a candidate scoped to the organization, or ErrNotFound.
func (s *Store) GetCandidate(ctx context.Context, organizationID, id string) (*models.Candidate, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT `+candidateColumns+`
		FROM candidates WHERE organization_id = ? AND id = ?
	`), organizationID, id)

	return scanCandidate(row)
}

// FindCandidateByEmail returns the organization's candidate with the given personal email, or ErrNotFound.
func (s *Store) FindCandidateByEmail(ctx context.Context, organizationID, email string) (*models.Candidate, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT `+candidateColumns+`
		FROM candidates
		WHERE organization_id = ? AND personal_email <> '' AND LOWER(personal_email) = ?
	`), organizationID, strings.ToLower(strings.TrimSpace(email)))

	return scanCandidate(row)
}

// CountCandidates returns how many candidates the organization has.
func (s *Store) CountCandidates(ctx context.Context, organizationID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT COUNT(*) FROM candidates WHERE organization_id = ?`), organizationID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count candidates: %w", err)
	}
	return count, nil
}

// candidateRow returns the column values from first_name through nurturing_info.
func candidateRow(c *models.Candidate) ([]interface{}, error) {
	var location sql.NullString
	if c.Location != nil {
		data, err := json.Marshal(c.Location)
		if err != nil {
			return nil, fmt.Errorf("failed to encode location: %w", err)
		}
		location = sql.NullString{String: string(data), Valid: true}
	}

	techStack, err := encodeStrings(c.TechStack)
	if err != nil {
		return nil, fmt.Errorf("failed to encode tech_stack: %w", err)
	}
	pastTitles, err := encodeStrings(c.PastTitles)
	if err != nil {
		return nil, fmt.Errorf("failed to encode past_titles: %w", err)
	}

	info, err := json.Marshal(c.NurturingInfo)
	if err != nil {
		return nil, fmt.Errorf("failed to encode nurturing_info: %w", err)
	}

	return []interface{}{
		c.FirstName, c.LastName, c.PersonalEmail, c.WorkEmail, c.Phone,
		c.LinkedInURL, c.GitHubURL, c.CurrentJobTitle, c.CurrentCompany, c.Industry,
		location, techStack, pastTitles, nullString(c.RemoteCreatedAt), nullString(c.RemoteUpdatedAt),
		string(info),
	}, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCandidate(row rowScanner) (*models.Candidate, error) {
	var c models.Candidate
	var location sql.NullString
	var techStack, pastTitles, info []byte
	var remoteCreated, remoteUpdated sql.NullString

	err := row.Scan(
		&c.ID, &c.OrganizationID, &c.FirstName, &c.LastName, &c.PersonalEmail, &c.WorkEmail, &c.Phone,
		&c.LinkedInURL, &c.GitHubURL, &c.CurrentJobTitle, &c.CurrentCompany, &c.Industry, &location, &techStack,
		&pastTitles, &remoteCreated, &remoteUpdated, &info, &c.CreatedBy, &c.UpdatedBy,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan candidate: %w", err)
	}

	if location.Valid && location.String != "" {
		c.Location = &models.Location{}
		if err := json.Unmarshal([]byte(location.String), c.Location); err != nil {
			return nil, fmt.Errorf("failed to decode location: %w", err)
		}
	}
	if c.TechStack, err = decodeStrings(techStack); err != nil {
		return nil, fmt.Errorf("failed to decode tech_stack: %w", err)
	}
	if c.PastTitles, err = decodeStrings(pastTitles); err != nil {
		return nil, fmt.Errorf("failed to decode past_titles: %w", err)
	}
	if len(info) > 0 {
		if err := json.Unmarshal(info, &c.NurturingInfo); err != nil {
			return nil, fmt.Errorf("failed to decode nurturing_info: %w", err)
		}
	}
	if remoteCreated.Valid {
		c.RemoteCreatedAt = &remoteCreated.String
	}
	if remoteUpdated.Valid {
		c.RemoteUpdatedAt = &remoteUpdated.String
	}

	return &c, nil
}

func encodeStrings(values []string) (string, error) {
	if values == nil {
		values = []string{}
	}
	data, err := json.Marshal(values)
	return string(data), err
}

func decodeStrings(data []byte) ([]string, error) {
	values := []string{}
	if len(data) == 0 {
		return values, nil
	}
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, err
	}
	if values == nil {
		values = []string{}
	}
	return values, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
