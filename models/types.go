// ABOUTME: Data models for the Clear Match candidate sync pipeline
// ABOUTME: Defines RemoteContact, Candidate, provenance, Activity, SyncResult, and SyncState structs
package models

import (
	"errors"
	"fmt"
	"time"
)

// Provenance source constants.
const (
	SourceHubSpot = "hubspot"
)

// Activity type and entity constants.
const (
	ActivityTypeSync    = "sync"
	EntityTypeCandidate = "candidate"
)

// Persistence operations recorded in activity metadata.
const (
	OperationInserted = "inserted"
	OperationUpdated  = "updated"
)

// Sync status constants.
const (
	SyncStatusIdle    = "idle"
	SyncStatusSyncing = "syncing"
	SyncStatusError   = "error"
)

// ServiceHubSpotContacts names the sync_state row for HubSpot contact syncs.
const ServiceHubSpotContacts = "hubspot_contacts"

// RemoteContact is a contact as returned by the HubSpot CRM API.
type RemoteContact struct {
	ID         string            `json:"id"`
	Properties map[string]string `json:"properties"`
	CreatedAt  string            `json:"createdAt,omitempty"`
	UpdatedAt  string            `json:"updatedAt,omitempty"`
	Archived   bool              `json:"archived,omitempty"`
}

// ContactPage is one page of remote contacts. An empty NextPageToken marks the last page.
type ContactPage struct {
	Records       []RemoteContact
	NextPageToken string
}

// Location is a composite location built from discrete city/region/country fields.
type Location struct {
	City    string `json:"city" mapstructure:"city"`
	Region  string `json:"region,omitempty" mapstructure:"region"`
	Country string `json:"country,omitempty" mapstructure:"country"`
}

// NurturingInfo records where a candidate came from.
type NurturingInfo struct {
	Source            string            `json:"source"`
	HubSpotID         string            `json:"hubspot_id,omitempty"`
	LastSyncedAt      string            `json:"last_synced_at,omitempty"`
	HubSpotProperties map[string]string `json:"hubspot_properties,omitempty"`
}

// Validate checks the provenance shape for the known sources.
func (n NurturingInfo) Validate() error {
	switch n.Source {
	case SourceHubSpot:
		if n.HubSpotID == "" {
			return errors.New("hubspot provenance requires hubspot_id")
		}
		return nil
	case "":
		return errors.New("provenance source is required")
	default:
		return fmt.Errorf("unknown provenance source %q", n.Source)
	}
}

type Candidate struct {
	ID              string        `json:"id,omitempty" mapstructure:"-"`
	OrganizationID  string        `json:"organization_id" mapstructure:"organization_id"`
	FirstName       string        `json:"first_name,omitempty" mapstructure:"first_name"`
	LastName        string        `json:"last_name,omitempty" mapstructure:"last_name"`
	PersonalEmail   string        `json:"personal_email,omitempty" mapstructure:"personal_email"`
	WorkEmail       string        `json:"work_email,omitempty" mapstructure:"work_email"`
	Phone           string        `json:"phone,omitempty" mapstructure:"phone"`
	LinkedInURL     string        `json:"linkedin_url,omitempty" mapstructure:"linkedin_url"`
	GitHubURL       string        `json:"github_url,omitempty" mapstructure:"github_url"`
	CurrentJobTitle string        `json:"current_job_title,omitempty" mapstructure:"current_job_title"`
	CurrentCompany  string        `json:"current_company,omitempty" mapstructure:"current_company"`
	Industry        string        `json:"industry,omitempty" mapstructure:"industry"`
	Location        *Location     `json:"location,omitempty" mapstructure:"-"`
	TechStack       []string      `json:"tech_stack" mapstructure:"tech_stack"`
	PastTitles      []string      `json:"past_titles" mapstructure:"past_titles"`
	RemoteCreatedAt *string       `json:"remote_created_at,omitempty" mapstructure:"remote_created_at"`
	RemoteUpdatedAt *string       `json:"remote_updated_at,omitempty" mapstructure:"remote_updated_at"`
	NurturingInfo   NurturingInfo `json:"nurturing_info" mapstructure:"-"`
	CreatedBy       string        `json:"created_by,omitempty" mapstructure:"created_by"`
	UpdatedBy       string        `json:"updated_by,omitempty" mapstructure:"updated_by"`
	CreatedAt       time.Time     `json:"created_at" mapstructure:"-"`
	UpdatedAt       time.Time     `json:"updated_at" mapstructure:"-"`
}

// ActivityMetadata is the provenance payload of a sync activity.
type ActivityMetadata struct {
	Source    string `json:"source"`
	SyncedAt  string `json:"synced_at"`
	RunID     string `json:"run_id,omitempty"`
	Operation string `json:"operation,omitempty"`
}

// Activity is an append-only audit entry about a candidate.
type Activity struct {
	ID             string           `json:"id"`
	OrganizationID string           `json:"organization_id"`
	EntityID       string           `json:"entity_id"`
	EntityType     string           `json:"entity_type"`
	Type           string           `json:"type"`
	Description    string           `json:"description"`
	Metadata       ActivityMetadata `json:"metadata"`
	CreatedBy      string           `json:"created_by"`
	CreatedAt      time.Time        `json:"created_at"`
}

// SyncResult summarises one sync invocation. It is never persisted.
type SyncResult struct {
	Success           bool      `json:"success"`
	SyncedCount       int       `json:"syncedCount"`
	BatchesProcessed  int       `json:"batchesProcessed"`
	Inserted          int       `json:"inserted"`
	Updated           int       `json:"updated"`
	Failed            int       `json:"failed"`
	SkippedDuplicates int       `json:"skippedDuplicates"`
	Error             string    `json:"error,omitempty"`
	// InProgress is set when the run was refused because another is active for the organization.
	InProgress        bool      `json:"inProgress,omitempty"`
	RunID             string    `json:"runId,omitempty"`
	StartedAt         time.Time `json:"startedAt"`
	FinishedAt        time.Time `json:"finishedAt"`
}

type SyncState struct {
	OrganizationID  string     `json:"organization_id"`
	Service         string     `json:"service"`
	Status          string     `json:"status"`
	LastSyncTime    *time.Time `json:"last_sync_time,omitempty"`
	LastRunID       string     `json:"last_run_id,omitempty"`
	LastSyncedCount int        `json:"last_synced_count"`
	ErrorMessage    string     `json:"error_message,omitempty"`
	UpdatedAt       time.Time  `json:"updated_at"`
}
