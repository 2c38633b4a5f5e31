// ABOUTME: SQLite schema definitions for candidates, activities, and sync state
// ABOUTME: Postgres uses the embedded migrations in db/migrations instead
package db

import (
	"database/sql"
)

const schema = `
CREATE TABLE IF NOT EXISTS candidates (
	id TEXT PRIMARY KEY,
	organization_id TEXT NOT NULL,
	first_name TEXT NOT NULL DEFAULT '',
	last_name TEXT NOT NULL DEFAULT '',
	personal_email TEXT NOT NULL DEFAULT '',
	work_email TEXT NOT NULL DEFAULT '',
	phone TEXT NOT NULL DEFAULT '',
	linkedin_url TEXT NOT NULL DEFAULT '',
	github_url TEXT NOT NULL DEFAULT '',
	current_job_title TEXT NOT NULL DEFAULT '',
	current_company TEXT NOT NULL DEFAULT '',
	industry TEXT NOT NULL DEFAULT '',
	location TEXT,
	tech_stack TEXT NOT NULL DEFAULT '[]',
	past_titles TEXT NOT NULL DEFAULT '[]',
	remote_created_at TEXT,
	remote_updated_at TEXT,
	nurturing_info TEXT NOT NULL DEFAULT '{}',
	created_by TEXT NOT NULL DEFAULT '',
	updated_by TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_candidates_org ON candidates(organization_id);
CREATE UNIQUE INDEX IF NOT EXISTS idx_candidates_org_email
	ON candidates(organization_id, LOWER(personal_email))
	WHERE personal_email <> '';

CREATE TABLE IF NOT EXISTS activities (
	id TEXT PRIMARY KEY,
	organization_id TEXT NOT NULL,
	entity_id TEXT NOT NULL,
	entity_type TEXT NOT NULL,
	type TEXT NOT NULL,
	description TEXT NOT NULL,
	metadata TEXT NOT NULL DEFAULT '{}',
	created_by TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_activities_entity ON activities(organization_id, entity_id);
CREATE INDEX IF NOT EXISTS idx_activities_created_at ON activities(created_at DESC);

CREATE TABLE IF NOT EXISTS sync_state (
	organization_id TEXT NOT NULL,
	service TEXT NOT NULL,
	status TEXT NOT NULL CHECK(status IN ('idle', 'syncing', 'error')),
	last_sync_time DATETIME,
	last_run_id TEXT NOT NULL DEFAULT '',
	last_synced_count INTEGER NOT NULL DEFAULT 0,
	error_message TEXT,
	updated_at DATETIME NOT NULL,
	PRIMARY KEY (organization_id, service)
);
`

func InitSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}
