// ABOUTME: Database schema definitions for the local interaction store
// ABOUTME: Creates organization, contact, opportunity and interaction tables
package db

import (
	"database/sql"
)

const schema = `
CREATE TABLE IF NOT EXISTS organizations (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	domain TEXT,
	industry TEXT,
	city TEXT,
	created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_organizations_name ON organizations(name);

CREATE TABLE IF NOT EXISTS contacts (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	email TEXT,
	phone TEXT,
	title TEXT,
	organization_id TEXT,
	created_at DATETIME NOT NULL,
	FOREIGN KEY (organization_id) REFERENCES organizations(id)
);

CREATE INDEX IF NOT EXISTS idx_contacts_name ON contacts(name);
CREATE INDEX IF NOT EXISTS idx_contacts_organization_id ON contacts(organization_id);

CREATE TABLE IF NOT EXISTS opportunities (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	stage TEXT NOT NULL,
	amount INTEGER,
	organization_id TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	FOREIGN KEY (organization_id) REFERENCES organizations(id)
);

CREATE INDEX IF NOT EXISTS idx_opportunities_organization_id ON opportunities(organization_id);

CREATE TABLE IF NOT EXISTS interactions (
	id TEXT PRIMARY KEY,
	type TEXT NOT NULL,
	title TEXT NOT NULL,
	status TEXT NOT NULL,
	outcome TEXT NOT NULL DEFAULT '',
	rating INTEGER NOT NULL DEFAULT 0 CHECK(rating BETWEEN 0 AND 5),
	notes TEXT NOT NULL DEFAULT '',
	duration_minutes INTEGER NOT NULL DEFAULT 0 CHECK(duration_minutes BETWEEN 0 AND 480),
	location TEXT NOT NULL DEFAULT '',
	contact_method TEXT NOT NULL DEFAULT '',
	interaction_date DATETIME NOT NULL,
	participants TEXT NOT NULL DEFAULT '[]',
	tags TEXT NOT NULL DEFAULT '[]',
	follow_up_required INTEGER NOT NULL DEFAULT 0,
	follow_up_date DATETIME,
	follow_up_notes TEXT NOT NULL DEFAULT '',
	follow_up_next_action TEXT NOT NULL DEFAULT '',
	organization_id TEXT NOT NULL DEFAULT '',
	organization_name TEXT NOT NULL DEFAULT '',
	opportunity_id TEXT NOT NULL DEFAULT '',
	opportunity_name TEXT NOT NULL DEFAULT '',
	contact_id TEXT NOT NULL DEFAULT '',
	contact_name TEXT NOT NULL DEFAULT '',
	principal_id TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_interactions_date ON interactions(interaction_date DESC);
CREATE INDEX IF NOT EXISTS idx_interactions_status ON interactions(status);
CREATE INDEX IF NOT EXISTS idx_interactions_type ON interactions(type);
CREATE INDEX IF NOT EXISTS idx_interactions_organization_id ON interactions(organization_id);
CREATE INDEX IF NOT EXISTS idx_interactions_follow_up ON interactions(follow_up_required, follow_up_date);
`

func InitSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}
