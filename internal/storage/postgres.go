package storage

import (
	"strconv"

	_ "github.com/lib/pq"
)

const postgresSchema = `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		subject TEXT NOT NULL UNIQUE,
		email TEXT NOT NULL,
		name TEXT NOT NULL,
		picture TEXT,
		created_at TIMESTAMPTZ NOT NULL,
		last_active TIMESTAMPTZ NOT NULL,
		total_sessions BIGINT NOT NULL DEFAULT 0,
		total_focus_minutes BIGINT NOT NULL DEFAULT 0,
		notifications_json JSONB NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		status TEXT NOT NULL,
		task TEXT NOT NULL DEFAULT '',
		mood TEXT NOT NULL DEFAULT '',
		start_time TIMESTAMPTZ NOT NULL,
		end_time TIMESTAMPTZ,
		duration_sec BIGINT NOT NULL DEFAULT 0,
		average_score DOUBLE PRECISION NOT NULL DEFAULT 0,
		max_score DOUBLE PRECISION NOT NULL DEFAULT 0,
		min_score DOUBLE PRECISION NOT NULL DEFAULT 100,
		points_json JSONB NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_user_status ON sessions(user_id, status);
	CREATE INDEX IF NOT EXISTS idx_sessions_end_time ON sessions(end_time);

	CREATE TABLE IF NOT EXISTS focus_data (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		session_id TEXT NOT NULL DEFAULT '',
		ts TIMESTAMPTZ NOT NULL,
		typing_speed DOUBLE PRECISION NOT NULL,
		idle_time DOUBLE PRECISION NOT NULL,
		tab_switches DOUBLE PRECISION NOT NULL,
		focus_score DOUBLE PRECISION NOT NULL,
		focus_label TEXT NOT NULL,
		ai_message TEXT NOT NULL DEFAULT '',
		voice_url TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_focus_data_user_ts ON focus_data(user_id, ts DESC);
	CREATE INDEX IF NOT EXISTS idx_focus_data_session_ts ON focus_data(session_id, ts DESC);
`

func NewPostgresRepository(connStr string) (*SQLRepository, error) {
	return openSQL(dialect{
		driver: "postgres",
		schema: postgresSchema,
		placeholder: func(n int) string {
			return "$" + strconv.Itoa(n)
		},
	}, connStr)
}
