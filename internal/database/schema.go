package database

// Schema contains all SQL statements for creating tables and indexes
const Schema = `
-- Integrations table: one row per connected athlete
CREATE TABLE IF NOT EXISTS integrations (
    athlete_id INTEGER PRIMARY KEY,

    -- Webhook reconciliation state
    callback_url TEXT,
    webhook_subscription_id INTEGER,

    -- OAuth scope granted by the athlete (comma separated)
    granted_scope TEXT NOT NULL DEFAULT '',

    -- Per-integration options (JSON)
    options_json TEXT,

    -- Metadata
    created_at INTEGER NOT NULL DEFAULT (unixepoch()),
    updated_at INTEGER NOT NULL DEFAULT (unixepoch())
);

-- OAuth tokens, maintained by the auth collaborator
CREATE TABLE IF NOT EXISTS tokens (
    athlete_id INTEGER PRIMARY KEY,
    token_json TEXT NOT NULL,
    updated_at INTEGER NOT NULL DEFAULT (unixepoch()),

    FOREIGN KEY (athlete_id) REFERENCES integrations(athlete_id) ON DELETE CASCADE
);

-- Image rotation cache, one versioned blob per athlete
CREATE TABLE IF NOT EXISTS image_cache (
    athlete_id INTEGER PRIMARY KEY,
    version INTEGER NOT NULL,
    data BLOB NOT NULL,
    updated_at INTEGER NOT NULL DEFAULT (unixepoch()),

    FOREIGN KEY (athlete_id) REFERENCES integrations(athlete_id) ON DELETE CASCADE
);

-- Domain event log (gear assignments, webhook deliveries)
CREATE TABLE IF NOT EXISTS events (
    event_id INTEGER PRIMARY KEY AUTOINCREMENT,
    event_type TEXT NOT NULL,
    athlete_id INTEGER NOT NULL,
    activity_id INTEGER,
    payload_json TEXT,
    created_at INTEGER NOT NULL DEFAULT (unixepoch())
);

CREATE INDEX IF NOT EXISTS idx_events_athlete ON events(athlete_id, event_id);
CREATE INDEX IF NOT EXISTS idx_events_type ON events(event_type, event_id);
`
