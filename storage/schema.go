package storage

// schemaStatements bootstraps the relational schema. Identifiers are stored
// as UUID strings and timestamps as unix nanoseconds, which keeps the DDL
// identical across SQLite and PostgreSQL. Sessions exclusively own runs and
// runs exclusively own steps; deletes cascade down the chain.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS agent_configs (
		id            TEXT PRIMARY KEY,
		name          TEXT NOT NULL,
		system_prompt TEXT NOT NULL,
		llm_config    TEXT NOT NULL,
		tools         TEXT,
		created_at    BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS sessions (
		id              TEXT PRIMARY KEY,
		agent_config_id TEXT NOT NULL REFERENCES agent_configs(id) ON DELETE CASCADE,
		user_id         TEXT NOT NULL,
		created_at      BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS runs (
		id         TEXT PRIMARY KEY,
		session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
		status     TEXT NOT NULL,
		error      TEXT,
		created_at BIGINT NOT NULL,
		updated_at BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS run_steps (
		id           TEXT PRIMARY KEY,
		run_id       TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		role         TEXT NOT NULL,
		content      TEXT,
		tool_calls   TEXT,
		tool_call_id TEXT,
		created_at   BIGINT NOT NULL,
		seq          BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_runs_session ON runs(session_id)`,
	`CREATE INDEX IF NOT EXISTS idx_run_steps_run ON run_steps(run_id)`,
	`CREATE INDEX IF NOT EXISTS idx_run_steps_order ON run_steps(created_at, seq)`,
}
