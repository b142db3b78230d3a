package history

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS routing_events (
	id             TEXT PRIMARY KEY,
	occurred_at    DATETIME NOT NULL,
	action         TEXT NOT NULL CHECK(action IN ('classify', 'forward')),
	subject        TEXT NOT NULL DEFAULT '',
	classification TEXT NOT NULL DEFAULT '',
	department     TEXT NOT NULL DEFAULT '',
	recipient      TEXT NOT NULL DEFAULT '',
	outcome        TEXT NOT NULL CHECK(outcome IN ('ok', 'error')),
	error_kind     TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_routing_events_department ON routing_events(department);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
}
