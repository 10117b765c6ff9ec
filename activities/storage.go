package activities

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.temporal.io/sdk/temporal"
	"goa.design/clue/log"

	"github.com/truss-ai/truss/model"
	"github.com/truss-ai/truss/storage"
	"github.com/truss-ai/truss/telemetry"
)

// StorageActivities exposes the persistence operations invoked by the
// workflow. The underlying store is process-wide and thread-safe; each
// method is one short transactional call.
type StorageActivities struct {
	store   storage.Store
	metrics *telemetry.Metrics
}

// NewStorageActivities builds the storage activity set.
func NewStorageActivities(store storage.Store, metrics *telemetry.Metrics) *StorageActivities {
	return &StorageActivities{store: store, metrics: metrics}
}

// CreateRun inserts a pending run for the session and returns its id.
func (a *StorageActivities) CreateRun(ctx context.Context, sessionID string) (string, error) {
	sid, err := uuid.Parse(sessionID)
	if err != nil {
		return "", temporal.NewNonRetryableApplicationError(
			fmt.Sprintf("session id %q is not a valid UUID", sessionID), ErrTypeInvalidInput, err)
	}
	runID, err := a.store.CreateRun(ctx, sid)
	if err != nil {
		return "", translateStorageError("create run", err)
	}
	a.metrics.RunStarted(ctx)
	log.Info(ctx, log.KV{K: "msg", V: "run created"}, log.KV{K: "run_id", V: runID.String()}, log.KV{K: "session_id", V: sessionID})
	return runID.String(), nil
}

// CreateRunStep persists one message as an immutable run step.
func (a *StorageActivities) CreateRunStep(ctx context.Context, runID string, msg model.Message) (string, error) {
	rid, err := uuid.Parse(runID)
	if err != nil {
		return "", temporal.NewNonRetryableApplicationError(
			fmt.Sprintf("run id %q is not a valid UUID", runID), ErrTypeInvalidInput, err)
	}
	stepID, err := a.store.CreateRunStep(ctx, rid, msg)
	if err != nil {
		return "", translateStorageError("create run step", err)
	}
	return stepID.String(), nil
}

// GetRunMemory reconstructs the session's conversation from persisted run
// steps, in chronological order.
func (a *StorageActivities) GetRunMemory(ctx context.Context, sessionID string) (model.AgentMemory, error) {
	sid, err := uuid.Parse(sessionID)
	if err != nil {
		return model.AgentMemory{}, temporal.NewNonRetryableApplicationError(
			fmt.Sprintf("session id %q is not a valid UUID", sessionID), ErrTypeInvalidInput, err)
	}
	msgs, err := a.store.StepsForSession(ctx, sid)
	if err != nil {
		return model.AgentMemory{}, translateStorageError("get run memory", err)
	}
	return model.AgentMemory{Messages: msgs}, nil
}

// LoadAgentConfig resolves the agent configuration owning the session.
func (a *StorageActivities) LoadAgentConfig(ctx context.Context, sessionID string) (*model.AgentConfig, error) {
	sid, err := uuid.Parse(sessionID)
	if err != nil {
		return nil, temporal.NewNonRetryableApplicationError(
			fmt.Sprintf("session id %q is not a valid UUID", sessionID), ErrTypeInvalidInput, err)
	}
	sess, err := a.store.GetSession(ctx, sid)
	if err != nil {
		return nil, translateStorageError("get session", err)
	}
	cfg, err := a.store.LoadAgentConfig(ctx, sess.AgentConfigID)
	if err != nil {
		return nil, translateStorageError("load agent config", err)
	}
	return cfg, nil
}

// FinalizeRun records the run's terminal verdict. Workflow statuses map onto
// run statuses: completed becomes succeeded, errored becomes failed.
func (a *StorageActivities) FinalizeRun(ctx context.Context, runID, status string, errMsg *string) error {
	rid, err := uuid.Parse(runID)
	if err != nil {
		return temporal.NewNonRetryableApplicationError(
			fmt.Sprintf("run id %q is not a valid UUID", runID), ErrTypeInvalidInput, err)
	}
	runStatus, err := runStatusFor(status)
	if err != nil {
		return temporal.NewNonRetryableApplicationError(err.Error(), ErrTypeInvalidInput, err)
	}
	if err := a.store.UpdateRunStatus(ctx, rid, runStatus, errMsg); err != nil {
		return translateStorageError("finalize run", err)
	}
	a.metrics.RunFinalized(ctx, status)
	log.Info(ctx, log.KV{K: "msg", V: "run finalized"}, log.KV{K: "run_id", V: runID}, log.KV{K: "status", V: status})
	return nil
}

func runStatusFor(workflowStatus string) (model.RunStatus, error) {
	switch workflowStatus {
	case model.WorkflowStatusCompleted:
		return model.RunSucceeded, nil
	case model.WorkflowStatusErrored:
		return model.RunFailed, nil
	case model.WorkflowStatusCancelled:
		return model.RunCancelled, nil
	case model.WorkflowStatusRunning:
		return model.RunRunning, nil
	}
	return "", fmt.Errorf("unknown workflow status %q", workflowStatus)
}
