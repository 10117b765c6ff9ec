// Package storage defines the persistence contract for sessions, runs, run
// steps and agent configurations, together with a database/sql implementation
// that speaks SQLite (embedded default) and PostgreSQL. All writes are
// transactional and all methods are safe for concurrent use from distinct
// activity executions.
package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/truss-ai/truss/model"
)

// Sentinel errors returned by Store implementations. Activities translate
// them into the engine's error kinds (NotFound and InvalidInput are
// non-retryable, everything else retries as StorageError).
var (
	// ErrNotFound indicates a referenced session, run or agent config row
	// does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates a constraint violation such as a broken
	// foreign-key reference.
	ErrInvalidInput = errors.New("invalid input")
)

// Store is the storage contract consumed by the activities and the API.
type Store interface {
	// CreateSession inserts a session owned by the given agent config.
	// Returns ErrNotFound when the agent config does not exist.
	CreateSession(ctx context.Context, agentConfigID uuid.UUID, userID string) (*model.Session, error)

	// GetSession returns a session or ErrNotFound.
	GetSession(ctx context.Context, sessionID uuid.UUID) (*model.Session, error)

	// CreateRun inserts a pending run for the session and returns its id.
	// Returns ErrNotFound when the session does not exist.
	CreateRun(ctx context.Context, sessionID uuid.UUID) (uuid.UUID, error)

	// CreateRunStep persists a message as an immutable run step and
	// returns the step id. Returns ErrNotFound when the run does not
	// exist. The write is atomic: a subsequent StepsForSession observes
	// the step once CreateRunStep returns.
	CreateRunStep(ctx context.Context, runID uuid.UUID, msg model.Message) (uuid.UUID, error)

	// StepsForSession returns every message persisted across the
	// session's runs, chronologically ordered (ties broken by insertion
	// sequence).
	StepsForSession(ctx context.Context, sessionID uuid.UUID) ([]model.Message, error)

	// UpdateRunStatus transitions a run's status, optionally recording an
	// error message. Returns ErrNotFound when the run does not exist.
	UpdateRunStatus(ctx context.Context, runID uuid.UUID, status model.RunStatus, errMsg *string) error

	// CreateAgentConfig upserts an agent configuration.
	CreateAgentConfig(ctx context.Context, cfg model.AgentConfig) error

	// LoadAgentConfig returns an agent configuration or ErrNotFound.
	LoadAgentConfig(ctx context.Context, agentID uuid.UUID) (*model.AgentConfig, error)

	// Close releases the underlying database handle.
	Close() error
}
