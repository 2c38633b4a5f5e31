// ABOUTME: HubSpot sync MCP tool handlers
// ABOUTME: Implements sync_hubspot_contacts, get_sync_status, and find_candidate_by_email tools
package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/clear-match/clearmatch/db"
	"github.com/clear-match/clearmatch/models"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// SyncRunner runs one sync for an organization.
type SyncRunner interface {
	Sync(ctx context.Context, organizationID, actorID string) models.SyncResult
}

// Store is the read side used by the lookup tools.
type Store interface {
	GetSyncState(ctx context.Context, organizationID, service string) (*models.SyncState, error)
	FindCandidateByEmail(ctx context.Context, organizationID, email string) (*models.Candidate, error)
}

type SyncHandlers struct {
	syncer       SyncRunner
	store        Store
	defaultOrg   string
	defaultActor string
}

// NewSyncHandlers builds the tool handlers. defaultOrg and defaultActor fill inputs that omit them.
func NewSyncHandlers(syncer SyncRunner, store Store, defaultOrg, defaultActor string) *SyncHandlers {
	return &SyncHandlers{syncer: syncer, store: store, defaultOrg: defaultOrg, defaultActor: defaultActor}
}

type SyncContactsInput struct {
	OrganizationID string `json:"organization_id,omitempty" jsonschema:"Organization to sync into (defaults to the configured organization)"`
	ActorID        string `json:"actor_id,omitempty" jsonschema:"User the sync is attributed to"`
}

type SyncContactsOutput struct {
	Success           bool   `json:"success"`
	SyncedCount       int    `json:"synced_count"`
	BatchesProcessed  int    `json:"batches_processed"`
	Inserted          int    `json:"inserted"`
	Updated           int    `json:"updated"`
	Failed            int    `json:"failed"`
	SkippedDuplicates int    `json:"skipped_duplicates"`
	Error             string `json:"error,omitempty"`
	RunID             string `json:"run_id"`
	Duration          string `json:"duration"`
}

func (h *SyncHandlers) SyncContacts(ctx context.Context, request *mcp.CallToolRequest, input SyncContactsInput) (*mcp.CallToolResult, SyncContactsOutput, error) {
	orgID := h.organization(input.OrganizationID)
	if orgID == "" {
		return nil, SyncContactsOutput{}, fmt.Errorf("organization_id is required")
	}
	actorID := strings.TrimSpace(input.ActorID)
	if actorID == "" {
		actorID = h.defaultActor
	}
	if actorID == "" {
		return nil, SyncContactsOutput{}, fmt.Errorf("actor_id is required")
	}

	// The run completes even if the MCP call is abandoned.
	result := h.syncer.Sync(context.WithoutCancel(ctx), orgID, actorID)

	// A failed sync is still a tool result; the error field carries the reason.
	return nil, SyncContactsOutput{
		Success:           result.Success,
		SyncedCount:       result.SyncedCount,
		BatchesProcessed:  result.BatchesProcessed,
		Inserted:          result.Inserted,
		Updated:           result.Updated,
		Failed:            result.Failed,
		SkippedDuplicates: result.SkippedDuplicates,
		Error:             result.Error,
		RunID:             result.RunID,
		Duration:          result.FinishedAt.Sub(result.StartedAt).String(),
	}, nil
}

type SyncStatusInput struct {
	OrganizationID string `json:"organization_id,omitempty" jsonschema:"Organization to inspect (defaults to the configured organization)"`
}

type SyncStatusOutput struct {
	OrganizationID  string  `json:"organization_id"`
	Status          string  `json:"status"`
	LastSyncTime    *string `json:"last_sync_time,omitempty"`
	LastRunID       string  `json:"last_run_id,omitempty"`
	LastSyncedCount int     `json:"last_synced_count"`
	ErrorMessage    string  `json:"error_message,omitempty"`
}

func (h *SyncHandlers) GetSyncStatus(ctx context.Context, request *mcp.CallToolRequest, input SyncStatusInput) (*mcp.CallToolResult, SyncStatusOutput, error) {
	orgID := h.organization(input.OrganizationID)
	if orgID == "" {
		return nil, SyncStatusOutput{}, fmt.Errorf("organization_id is required")
	}

	state, err := h.store.GetSyncState(ctx, orgID, models.ServiceHubSpotContacts)
	if errors.Is(err, db.ErrNotFound) {
		return nil, SyncStatusOutput{OrganizationID: orgID, Status: models.SyncStatusIdle}, nil
	}
	if err != nil {
		return nil, SyncStatusOutput{}, fmt.Errorf("failed to get sync status: %w", err)
	}

	out := SyncStatusOutput{
		OrganizationID:  state.OrganizationID,
		Status:          state.Status,
		LastRunID:       state.LastRunID,
		LastSyncedCount: state.LastSyncedCount,
		ErrorMessage:    state.ErrorMessage,
	}
	if state.LastSyncTime != nil {
		ts := state.LastSyncTime.UTC().Format(time.RFC3339)
		out.LastSyncTime = &ts
	}
	return nil, out, nil
}

type FindCandidateInput struct {
	OrganizationID string `json:"organization_id,omitempty" jsonschema:"Organization to search (defaults to the configured organization)"`
	Email          string `json:"email" jsonschema:"Personal email address (required, case-insensitive)"`
}

type CandidateOutput struct {
	ID              string   `json:"id"`
	FirstName       string   `json:"first_name"`
	LastName        string   `json:"last_name"`
	PersonalEmail   string   `json:"personal_email"`
	CurrentJobTitle string   `json:"current_job_title,omitempty"`
	CurrentCompany  string   `json:"current_company,omitempty"`
	TechStack       []string `json:"tech_stack"`
	HubSpotID       string   `json:"hubspot_id,omitempty"`
	LastSyncedAt    string   `json:"last_synced_at,omitempty"`
	UpdatedAt       string   `json:"updated_at"`
}

func (h *SyncHandlers) FindCandidateByEmail(ctx context.Context, request *mcp.CallToolRequest, input FindCandidateInput) (*mcp.CallToolResult, CandidateOutput, error) {
	orgID := h.organization(input.OrganizationID)
	if orgID == "" {
		return nil, CandidateOutput{}, fmt.Errorf("organization_id is required")
	}
	if strings.TrimSpace(input.Email) == "" {
		return nil, CandidateOutput{}, fmt.Errorf("email is required")
	}

	c, err := h.store.FindCandidateByEmail(ctx, orgID, input.Email)
	if errors.Is(err, db.ErrNotFound) {
		return nil, CandidateOutput{}, fmt.Errorf("no candidate with email %s", input.Email)
	}
	if err != nil {
		return nil, CandidateOutput{}, fmt.Errorf("failed to find candidate: %w", err)
	}

	return nil, candidateToOutput(c), nil
}

func (h *SyncHandlers) organization(requested string) string {
	if org := strings.TrimSpace(requested); org != "" {
		return org
	}
	return h.defaultOrg
}

func candidateToOutput(c *models.Candidate) CandidateOutput {
	return CandidateOutput{
		ID:              c.ID,
		FirstName:       c.FirstName,
		LastName:        c.LastName,
		PersonalEmail:   c.PersonalEmail,
		CurrentJobTitle: c.CurrentJobTitle,
		CurrentCompany:  c.CurrentCompany,
		TechStack:       c.TechStack,
		HubSpotID:       c.NurturingInfo.HubSpotID,
		LastSyncedAt:    c.NurturingInfo.LastSyncedAt,
		UpdatedAt:       c.UpdatedAt.Format(time.RFC3339),
	}
}

// Register adds the sync tools to server.
func (h *SyncHandlers) Register(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "sync_hubspot_contacts",
		Description: "Pull all HubSpot contacts into candidates, deduplicating by personal email",
	}, h.SyncContacts)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_sync_status",
		Description: "Show the last HubSpot sync status, time, and synced count for an organization",
	}, h.GetSyncStatus)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "find_candidate_by_email",
		Description: "Look up a candidate by personal email",
	}, h.FindCandidateByEmail)
}
