package storage

import (
	_ "github.com/mattn/go-sqlite3"
)

const sqliteSchema = `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		subject TEXT NOT NULL UNIQUE,
		email TEXT NOT NULL,
		name TEXT NOT NULL,
		picture TEXT,
		created_at DATETIME NOT NULL,
		last_active DATETIME NOT NULL,
		total_sessions INTEGER NOT NULL DEFAULT 0,
		total_focus_minutes INTEGER NOT NULL DEFAULT 0,
		notifications_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		status TEXT NOT NULL,
		task TEXT NOT NULL DEFAULT '',
		mood TEXT NOT NULL DEFAULT '',
		start_time DATETIME NOT NULL,
		end_time DATETIME,
		duration_sec INTEGER NOT NULL DEFAULT 0,
		average_score REAL NOT NULL DEFAULT 0,
		max_score REAL NOT NULL DEFAULT 0,
		min_score REAL NOT NULL DEFAULT 100,
		points_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_user_status ON sessions(user_id, status);
	CREATE INDEX IF NOT EXISTS idx_sessions_end_time ON sessions(end_time);

	CREATE TABLE IF NOT EXISTS focus_data (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		session_id TEXT NOT NULL DEFAULT '',
		ts DATETIME NOT NULL,
		typing_speed REAL NOT NULL,
		idle_time REAL NOT NULL,
		tab_switches REAL NOT NULL,
		focus_score REAL NOT NULL,
		focus_label TEXT NOT NULL,
		ai_message TEXT NOT NULL DEFAULT '',
		voice_url TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_focus_data_user_ts ON focus_data(user_id, ts);
	CREATE INDEX IF NOT EXISTS idx_focus_data_session_ts ON focus_data(session_id, ts);
`

func NewSQLiteRepository(dbPath string) (*SQLRepository, error) {
	return openSQL(dialect{driver: "sqlite3", schema: sqliteSchema}, dbPath)
}
