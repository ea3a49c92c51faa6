package database

import "database/sql"

// Migration represents a single schema migration step.
type Migration struct {
	Version     int
	Description string
	Up          func(tx *sql.Tx) error
}

// migrations is the ordered list of all schema migrations.
// Append new migrations to the end with incrementing Version numbers.
var migrations = []Migration{
	{
		Version:     1,
		Description: "initial schema",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS politicians (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    uuid TEXT UNIQUE NOT NULL,
    first_name TEXT NOT NULL DEFAULT '',
    last_name TEXT NOT NULL DEFAULT '',
    full_name TEXT NOT NULL DEFAULT '',
    first_name_key TEXT NOT NULL DEFAULT '',
    last_name_key TEXT NOT NULL DEFAULT '',
    full_name_key TEXT NOT NULL DEFAULT '',
    active INTEGER NOT NULL DEFAULT 1,
    email TEXT,
    phone TEXT,
    gender TEXT,
    date_of_birth TEXT,
    parliament_seniority REAL,
    total_time_seconds INTEGER,
    profiles_required INTEGER NOT NULL DEFAULT 0 CHECK(profiles_required >= 0),
    profiles_already_profiled INTEGER NOT NULL DEFAULT 0 CHECK(profiles_already_profiled >= 0),
    created_at TEXT DEFAULT (datetime('now')),
    updated_at TEXT DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS factions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    uuid TEXT UNIQUE NOT NULL,
    name TEXT NOT NULL DEFAULT '',
    created_at TEXT DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS politician_factions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    politician_id INTEGER NOT NULL REFERENCES politicians(id) ON DELETE CASCADE,
    faction_id INTEGER NOT NULL REFERENCES factions(id) ON DELETE CASCADE,
    start_date TEXT NOT NULL DEFAULT '',
    end_date TEXT,
    created_at TEXT DEFAULT (datetime('now')),
    UNIQUE (politician_id, faction_id, start_date)
);

CREATE TABLE IF NOT EXISTS plenary_sessions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    membership INTEGER NOT NULL,
    plenary_session INTEGER NOT NULL,
    date TEXT NOT NULL,
    title TEXT NOT NULL DEFAULT '',
    title_en TEXT,
    title_ru TEXT,
    edited INTEGER NOT NULL DEFAULT 0,
    is_incomplete INTEGER NOT NULL DEFAULT 0,
    created_at TEXT DEFAULT (datetime('now')),
    UNIQUE (membership, plenary_session, date)
);

CREATE TABLE IF NOT EXISTS agenda_items (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    uuid TEXT UNIQUE NOT NULL,
    plenary_session_id INTEGER NOT NULL REFERENCES plenary_sessions(id) ON DELETE CASCADE,
    date TEXT NOT NULL,
    title TEXT NOT NULL DEFAULT '',
    title_en TEXT,
    title_ru TEXT,
    total_time_seconds INTEGER,
    is_incomplete INTEGER NOT NULL DEFAULT 0,
    created_at TEXT DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS speeches (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    uuid TEXT UNIQUE NOT NULL,
    agenda_item_id INTEGER NOT NULL REFERENCES agenda_items(id) ON DELETE CASCADE,
    politician_id INTEGER REFERENCES politicians(id) ON DELETE SET NULL,
    event_type TEXT NOT NULL DEFAULT 'SPEECH'
        CHECK(event_type IN ('SPEECH', 'VOTING_RESULT', 'PRESENCE_CHECK', 'SESSION_END')),
    date TEXT NOT NULL,
    speaker TEXT NOT NULL,
    text TEXT NOT NULL,
    link TEXT,
    ai_summary TEXT,
    is_incomplete INTEGER NOT NULL DEFAULT 0,
    parsed_at TEXT,
    created_at TEXT DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS agenda_summaries (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    agenda_item_id INTEGER UNIQUE NOT NULL REFERENCES agenda_items(id) ON DELETE CASCADE,
    summary_text TEXT NOT NULL,
    is_incomplete INTEGER NOT NULL DEFAULT 0,
    generated_at TEXT DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS agenda_decisions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    agenda_item_id INTEGER NOT NULL REFERENCES agenda_items(id) ON DELETE CASCADE,
    politician_id INTEGER REFERENCES politicians(id) ON DELETE CASCADE,
    decision_text TEXT NOT NULL,
    is_incomplete INTEGER NOT NULL DEFAULT 0,
    generated_at TEXT DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS agenda_active_politicians (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    agenda_item_id INTEGER UNIQUE NOT NULL REFERENCES agenda_items(id) ON DELETE CASCADE,
    politician_id INTEGER REFERENCES politicians(id) ON DELETE CASCADE,
    activity_description TEXT NOT NULL,
    is_incomplete INTEGER NOT NULL DEFAULT 0,
    generated_at TEXT DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS politician_profile_parts (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    politician_id INTEGER NOT NULL REFERENCES politicians(id) ON DELETE CASCADE,
    category TEXT NOT NULL,
    period_type TEXT NOT NULL
        CHECK(period_type IN ('AGENDA', 'PLENARY_SESSION', 'MONTH', 'YEAR', 'ALL')),
    agenda_item_id INTEGER REFERENCES agenda_items(id) ON DELETE CASCADE,
    plenary_session_id INTEGER REFERENCES plenary_sessions(id) ON DELETE CASCADE,
    month TEXT,
    year INTEGER,
    analysis TEXT NOT NULL DEFAULT '',
    is_incomplete INTEGER NOT NULL DEFAULT 0,
    generated_at TEXT DEFAULT (datetime('now')),
    CHECK (
        (period_type = 'AGENDA' AND agenda_item_id IS NOT NULL AND plenary_session_id IS NULL AND month IS NULL AND year IS NULL) OR
        (period_type = 'PLENARY_SESSION' AND plenary_session_id IS NOT NULL AND agenda_item_id IS NULL AND month IS NULL AND year IS NULL) OR
        (period_type = 'MONTH' AND month IS NOT NULL AND agenda_item_id IS NULL AND plenary_session_id IS NULL AND year IS NULL) OR
        (period_type = 'YEAR' AND year IS NOT NULL AND agenda_item_id IS NULL AND plenary_session_id IS NULL AND month IS NULL) OR
        (period_type = 'ALL' AND agenda_item_id IS NULL AND plenary_session_id IS NULL AND month IS NULL AND year IS NULL)
    )
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_profile_parts_key ON politician_profile_parts(
    politician_id, category, period_type,
    ifnull(agenda_item_id, 0), ifnull(plenary_session_id, 0), ifnull(month, ''), ifnull(year, 0)
);

CREATE TABLE IF NOT EXISTS parse_errors (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    error_type TEXT NOT NULL DEFAULT 'OTHER',
    error_message TEXT NOT NULL,
    error_details TEXT,
    entity_type TEXT,
    entity_id TEXT,
    entity_name TEXT,
    year INTEGER,
    created_at TEXT DEFAULT (strftime('%Y-%m-%d %H:%M:%f', 'now'))
);
`)
			return err
		},
	},
	{
		Version:     2,
		Description: "lookup indexes",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
CREATE INDEX IF NOT EXISTS idx_politicians_full_name_key ON politicians(full_name_key);
CREATE INDEX IF NOT EXISTS idx_politicians_name_keys ON politicians(first_name_key, last_name_key);
CREATE INDEX IF NOT EXISTS idx_sessions_date ON plenary_sessions(date);
CREATE INDEX IF NOT EXISTS idx_agenda_items_session ON agenda_items(plenary_session_id);
CREATE INDEX IF NOT EXISTS idx_speeches_agenda ON speeches(agenda_item_id, event_type, date);
CREATE INDEX IF NOT EXISTS idx_speeches_politician ON speeches(politician_id, event_type, date);
CREATE INDEX IF NOT EXISTS idx_speeches_incomplete ON speeches(is_incomplete) WHERE is_incomplete = 1;
CREATE INDEX IF NOT EXISTS idx_decisions_agenda ON agenda_decisions(agenda_item_id);
CREATE INDEX IF NOT EXISTS idx_profile_parts_politician ON politician_profile_parts(politician_id);
CREATE INDEX IF NOT EXISTS idx_parse_errors_year ON parse_errors(year, error_type);
`)
			return err
		},
	},
}

// latestVersion returns the highest migration version number.
func latestVersion() int {
	if len(migrations) == 0 {
		return 0
	}
	return migrations[len(migrations)-1].Version
}
