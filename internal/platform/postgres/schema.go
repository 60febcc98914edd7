package postgres

// Schema is the DDL for both collections. Applied by deploy tooling and by the
// integration test harness; the service itself never migrates.
const Schema = `
CREATE TABLE IF NOT EXISTS compliance_records (
	client_id        TEXT PRIMARY KEY,
	preferred_region TEXT NOT NULL,
	backup_region    TEXT NOT NULL DEFAULT '',
	dpa_status       TEXT NOT NULL,
	dpa_expiration   TIMESTAMPTZ NOT NULL,
	next_audit       TIMESTAMPTZ NOT NULL,
	compliance_score INT NOT NULL,
	next_review      TIMESTAMPTZ NOT NULL,
	doc              JSONB NOT NULL,
	version          BIGINT NOT NULL DEFAULT 1,
	created_at       TIMESTAMPTZ NOT NULL,
	updated_at       TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_compliance_records_region
	ON compliance_records (preferred_region, backup_region);
CREATE INDEX IF NOT EXISTS idx_compliance_records_dpa
	ON compliance_records (dpa_status, dpa_expiration);
CREATE INDEX IF NOT EXISTS idx_compliance_records_next_audit
	ON compliance_records (next_audit);

CREATE TABLE IF NOT EXISTS audit_events (
	id                    TEXT PRIMARY KEY,
	event_type            TEXT NOT NULL,
	user_id               TEXT NOT NULL DEFAULT '',
	resource_type         TEXT NOT NULL DEFAULT '',
	resource_id           TEXT NOT NULL DEFAULT '',
	action                TEXT NOT NULL,
	description           TEXT NOT NULL,
	request_id            TEXT NOT NULL DEFAULT '',
	ip_address            TEXT NOT NULL DEFAULT '',
	user_agent            TEXT NOT NULL DEFAULT '',
	threat_level          TEXT NOT NULL DEFAULT 'low',
	success               BOOLEAN NOT NULL,
	failure_reason        TEXT NOT NULL DEFAULT '',
	old_value             JSONB,
	new_value             JSONB,
	changes               JSONB,
	regulation            TEXT NOT NULL DEFAULT '',
	compliance_required   BOOLEAN NOT NULL DEFAULT FALSE,
	timestamp             TIMESTAMPTZ NOT NULL,
	retention_period_days INT NOT NULL,
	archived              BOOLEAN NOT NULL DEFAULT FALSE,
	archived_at           TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_audit_events_type_time
	ON audit_events (event_type, timestamp DESC);
CREATE INDEX IF NOT EXISTS idx_audit_events_user
	ON audit_events (user_id, timestamp DESC);
CREATE INDEX IF NOT EXISTS idx_audit_events_time
	ON audit_events (timestamp DESC);
`
