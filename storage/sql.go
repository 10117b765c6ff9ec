package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"        // postgres driver
	_ "modernc.org/sqlite"       // embedded sqlite driver (pure Go)

	"github.com/truss-ai/truss/model"
)

// DefaultDatabaseURL is the embedded single-file database used for local
// development when DATABASE_URL is not set.
const DefaultDatabaseURL = "file:truss.db"

// SQLStore implements Store on database/sql. Timestamps are stored as unix
// nanoseconds so chronological ordering is exact and portable across
// dialects; a per-process sequence column breaks equal-timestamp ties.
type SQLStore struct {
	db  *sql.DB
	seq atomic.Int64
}

// Open connects to the database named by url and bootstraps the schema.
// URLs with a postgres:// or postgresql:// scheme use the PostgreSQL driver;
// everything else is treated as a SQLite DSN.
func Open(ctx context.Context, url string) (*SQLStore, error) {
	if url == "" {
		url = DefaultDatabaseURL
	}
	driver, dsn := driverFor(url)
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if driver == "sqlite" {
		// Single writer connection keeps the embedded database free of
		// SQLITE_BUSY under concurrent activity executions.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &SQLStore{db: db}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func driverFor(url string) (driver, dsn string) {
	if strings.HasPrefix(url, "postgres://") || strings.HasPrefix(url, "postgresql://") {
		return "postgres", url
	}
	dsn = url
	if !strings.Contains(dsn, "_pragma") {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + "_pragma=foreign_keys(1)"
	}
	return "sqlite", dsn
}

// Close releases the database handle.
func (s *SQLStore) Close() error { return s.db.Close() }

func (s *SQLStore) migrate(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

// CreateAgentConfig upserts an agent configuration keyed by id. A zero id is
// assigned server-side.
func (s *SQLStore) CreateAgentConfig(ctx context.Context, cfg model.AgentConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.ID == "" {
		cfg.ID = uuid.NewString()
	}
	if _, err := uuid.Parse(cfg.ID); err != nil {
		return fmt.Errorf("%w: agent config id must be a UUID", ErrInvalidInput)
	}
	llm, err := json.Marshal(cfg.LLMConfig)
	if err != nil {
		return fmt.Errorf("encode llm config: %w", err)
	}
	var tools []byte
	if cfg.Tools != nil {
		if tools, err = json.Marshal(cfg.Tools); err != nil {
			return fmt.Errorf("encode tools: %w", err)
		}
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO agent_configs (id, name, system_prompt, llm_config, tools, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO UPDATE SET
		   name = EXCLUDED.name,
		   system_prompt = EXCLUDED.system_prompt,
		   llm_config = EXCLUDED.llm_config,
		   tools = EXCLUDED.tools`,
		cfg.ID, cfg.Name, cfg.SystemPrompt, string(llm), nullableString(tools), time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("insert agent config: %w", err)
	}
	return nil
}

// LoadAgentConfig fetches an agent configuration by id.
func (s *SQLStore) LoadAgentConfig(ctx context.Context, agentID uuid.UUID) (*model.AgentConfig, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, system_prompt, llm_config, tools FROM agent_configs WHERE id = $1`,
		agentID.String())
	var (
		cfg   model.AgentConfig
		llm   string
		tools sql.NullString
	)
	if err := row.Scan(&cfg.ID, &cfg.Name, &cfg.SystemPrompt, &llm, &tools); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("agent config %s: %w", agentID, ErrNotFound)
		}
		return nil, fmt.Errorf("load agent config: %w", err)
	}
	if err := json.Unmarshal([]byte(llm), &cfg.LLMConfig); err != nil {
		return nil, fmt.Errorf("decode llm config: %w", err)
	}
	if tools.Valid && tools.String != "" {
		if err := json.Unmarshal([]byte(tools.String), &cfg.Tools); err != nil {
			return nil, fmt.Errorf("decode tools: %w", err)
		}
	}
	return &cfg, nil
}

// CreateSession inserts a session after verifying the agent config exists,
// which yields a NotFound instead of a foreign-key violation.
func (s *SQLStore) CreateSession(ctx context.Context, agentConfigID uuid.UUID, userID string) (*model.Session, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	sess := &model.Session{
		ID:            uuid.New(),
		AgentConfigID: agentConfigID,
		UserID:        userID,
		CreatedAt:     time.Now().UTC(),
	}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := rowExists(ctx, tx, `SELECT 1 FROM agent_configs WHERE id = $1`, agentConfigID.String()); err != nil {
			return fmt.Errorf("agent config %s: %w", agentConfigID, err)
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO sessions (id, agent_config_id, user_id, created_at) VALUES ($1, $2, $3, $4)`,
			sess.ID.String(), agentConfigID.String(), userID, sess.CreatedAt.UnixNano())
		return err
	})
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// GetSession returns the session row or ErrNotFound.
func (s *SQLStore) GetSession(ctx context.Context, sessionID uuid.UUID) (*model.Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, agent_config_id, user_id, created_at FROM sessions WHERE id = $1`,
		sessionID.String())
	var (
		sess      model.Session
		id, agent string
		createdAt int64
	)
	if err := row.Scan(&id, &agent, &sess.UserID, &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("session %s: %w", sessionID, ErrNotFound)
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	var err error
	if sess.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("corrupt session id %q: %w", id, err)
	}
	if sess.AgentConfigID, err = uuid.Parse(agent); err != nil {
		return nil, fmt.Errorf("corrupt agent config id %q: %w", agent, err)
	}
	sess.CreatedAt = time.Unix(0, createdAt).UTC()
	return &sess, nil
}

// CreateRun inserts a pending run for the session.
func (s *SQLStore) CreateRun(ctx context.Context, sessionID uuid.UUID) (uuid.UUID, error) {
	runID := uuid.New()
	now := time.Now().UnixNano()
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := rowExists(ctx, tx, `SELECT 1 FROM sessions WHERE id = $1`, sessionID.String()); err != nil {
			return fmt.Errorf("session %s: %w", sessionID, err)
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO runs (id, session_id, status, error, created_at, updated_at)
			 VALUES ($1, $2, $3, NULL, $4, $4)`,
			runID.String(), sessionID.String(), string(model.RunPending), now)
		return err
	})
	if err != nil {
		return uuid.Nil, err
	}
	return runID, nil
}

// CreateRunStep persists a message as a run step. The existence check and the
// insert share one transaction so a missing run surfaces as NotFound rather
// than a foreign-key violation.
func (s *SQLStore) CreateRunStep(ctx context.Context, runID uuid.UUID, msg model.Message) (uuid.UUID, error) {
	if err := msg.Validate(); err != nil {
		return uuid.Nil, err
	}
	var toolCalls []byte
	if len(msg.ToolCalls) > 0 {
		var err error
		if toolCalls, err = json.Marshal(msg.ToolCalls); err != nil {
			return uuid.Nil, fmt.Errorf("encode tool calls: %w", err)
		}
	}
	stepID := uuid.New()
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := rowExists(ctx, tx, `SELECT 1 FROM runs WHERE id = $1`, runID.String()); err != nil {
			return fmt.Errorf("run %s: %w", runID, err)
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO run_steps (id, run_id, role, content, tool_calls, tool_call_id, created_at, seq)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			stepID.String(), runID.String(), string(msg.Role), nullablePtr(msg.Content),
			nullableString(toolCalls), nullableEmpty(msg.ToolCallID),
			time.Now().UnixNano(), s.seq.Add(1))
		return err
	})
	if err != nil {
		return uuid.Nil, err
	}
	return stepID, nil
}

// StepsForSession joins run steps through their runs and returns the
// session's full conversation in chronological order.
func (s *SQLStore) StepsForSession(ctx context.Context, sessionID uuid.UUID) ([]model.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT rs.role, rs.content, rs.tool_calls, rs.tool_call_id
		 FROM run_steps rs
		 JOIN runs r ON rs.run_id = r.id
		 WHERE r.session_id = $1
		 ORDER BY rs.created_at, rs.seq`,
		sessionID.String())
	if err != nil {
		return nil, fmt.Errorf("query steps: %w", err)
	}
	defer rows.Close()

	var msgs []model.Message
	for rows.Next() {
		var (
			role                 string
			content, tc, tcID    sql.NullString
		)
		if err := rows.Scan(&role, &content, &tc, &tcID); err != nil {
			return nil, fmt.Errorf("scan step: %w", err)
		}
		msg := model.Message{Role: model.Role(role), ToolCallID: tcID.String}
		if content.Valid {
			msg.Content = model.String(content.String)
		}
		if tc.Valid && tc.String != "" {
			if err := json.Unmarshal([]byte(tc.String), &msg.ToolCalls); err != nil {
				return nil, fmt.Errorf("decode tool calls: %w", err)
			}
		}
		msgs = append(msgs, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate steps: %w", err)
	}
	return msgs, nil
}

// UpdateRunStatus transitions a run's status and error message.
func (s *SQLStore) UpdateRunStatus(ctx context.Context, runID uuid.UUID, status model.RunStatus, errMsg *string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = $1, error = $2, updated_at = $3 WHERE id = $4`,
		string(status), nullablePtr(errMsg), time.Now().UnixNano(), runID.String())
	if err != nil {
		return fmt.Errorf("update run status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update run status: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("run %s: %w", runID, ErrNotFound)
	}
	return nil
}

// GetRun returns a run row or ErrNotFound.
func (s *SQLStore) GetRun(ctx context.Context, runID uuid.UUID) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, session_id, status, error, created_at, updated_at FROM runs WHERE id = $1`,
		runID.String())
	var (
		run                  model.Run
		id, sessID, status   string
		errMsg               sql.NullString
		createdAt, updatedAt int64
	)
	if err := row.Scan(&id, &sessID, &status, &errMsg, &createdAt, &updatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("run %s: %w", runID, ErrNotFound)
		}
		return nil, fmt.Errorf("get run: %w", err)
	}
	var err error
	if run.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("corrupt run id %q: %w", id, err)
	}
	if run.SessionID, err = uuid.Parse(sessID); err != nil {
		return nil, fmt.Errorf("corrupt session id %q: %w", sessID, err)
	}
	run.Status = model.RunStatus(status)
	if errMsg.Valid {
		run.Error = model.String(errMsg.String)
	}
	run.CreatedAt = time.Unix(0, createdAt).UTC()
	run.UpdatedAt = time.Unix(0, updatedAt).UTC()
	return &run, nil
}

// DeleteSession removes a session; runs and steps cascade.
func (s *SQLStore) DeleteSession(ctx context.Context, sessionID uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, sessionID.String())
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("session %s: %w", sessionID, ErrNotFound)
	}
	return nil
}

func (s *SQLStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func rowExists(ctx context.Context, tx *sql.Tx, query string, args ...any) error {
	var one int
	if err := tx.QueryRowContext(ctx, query, args...).Scan(&one); err != nil {
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		return err
	}
	return nil
}

func nullablePtr(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func nullableEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableString(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
