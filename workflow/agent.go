// Package workflow implements the durable agent execution workflow. The
// workflow body is deterministic: every side effect (storage writes, the LLM
// stream, tool invocations) happens inside activities, and parallel tool
// fan-out uses the engine's futures rather than goroutines, so a replacement
// worker replays history to the same outcome after a crash.
package workflow

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/truss-ai/truss/activities"
	"github.com/truss-ai/truss/model"
)

// Name is the registered workflow type. Callers start it with an
// AgentWorkflowInput and read back an AgentWorkflowOutput.
const Name = "TemporalAgentExecutionWorkflow"

// External interaction points.
const (
	// SignalRequestCancellation asks the workflow to stop at the next
	// loop boundary. In-flight activities complete; their results are
	// discarded.
	SignalRequestCancellation = "request_cancellation"

	// QueryGetStatus returns the current status string (initialising,
	// thinking, executing N tools, completed, errored, cancelled).
	QueryGetStatus = "get_status"
)

// Per-activity execution policies. Finalization retries hardest because a
// reliable terminal run status is a critical invariant.
var (
	storageOptions = workflow.ActivityOptions{
		StartToCloseTimeout: 10 * time.Second,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 3},
	}
	memoryOptions = workflow.ActivityOptions{
		StartToCloseTimeout: 15 * time.Second,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 3},
	}
	llmOptions = workflow.ActivityOptions{
		StartToCloseTimeout: 3 * time.Minute,
		HeartbeatTimeout:    30 * time.Second,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 5},
	}
	toolOptions = workflow.ActivityOptions{
		StartToCloseTimeout: time.Minute,
	}
	finalizeOptions = workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 10},
	}
)

// AgentExecution drives one reason-act run: persist the user message, then
// alternate LLM turns and parallel tool execution until the model produces a
// terminal answer. The terminal verdict is recorded in the returned output;
// FinalizeRun executes on every exit path once a run row exists.
func AgentExecution(ctx workflow.Context, input model.AgentWorkflowInput) (model.AgentWorkflowOutput, error) {
	logger := workflow.GetLogger(ctx)

	cancellationRequested := false
	currentStatus := "initialising"
	if err := workflow.SetQueryHandler(ctx, QueryGetStatus, func() (string, error) {
		return currentStatus, nil
	}); err != nil {
		return model.AgentWorkflowOutput{}, fmt.Errorf("register status query: %w", err)
	}
	workflow.Go(ctx, func(gctx workflow.Context) {
		ch := workflow.GetSignalChannel(gctx, SignalRequestCancellation)
		for {
			if more := ch.Receive(gctx, nil); !more {
				return
			}
			cancellationRequested = true
		}
	})

	sessionID, err := input.Validate()
	if err != nil {
		// No run row exists yet, so there is nothing to finalize.
		return model.AgentWorkflowOutput{}, temporal.NewNonRetryableApplicationError(
			err.Error(), activities.ErrTypeInvalidInput, err)
	}

	var (
		runID       = input.RunID
		finalStatus = model.WorkflowStatusErrored
		errMsg      *string
	)
	// Finalization runs on every exit path once a run exists. It uses a
	// disconnected context so it still executes when the workflow itself
	// is being cancelled; a finalize failure is swallowed because the
	// activity has already exhausted its own retries.
	defer func() {
		if runID == "" {
			return
		}
		dctx, cancel := workflow.NewDisconnectedContext(ctx)
		defer cancel()
		fctx := workflow.WithActivityOptions(dctx, finalizeOptions)
		if err := workflow.ExecuteActivity(fctx, activities.NameFinalizeRun, runID, finalStatus, errMsg).Get(fctx, nil); err != nil {
			logger.Error("finalize run failed", "run_id", runID, "error", err)
		}
	}()

	storageCtx := workflow.WithActivityOptions(ctx, storageOptions)
	if runID == "" {
		if err := workflow.ExecuteActivity(storageCtx, activities.NameCreateRun, sessionID.String()).Get(storageCtx, &runID); err != nil {
			return errored(&finalStatus, &errMsg, runID, err)
		}
	}
	if err := workflow.ExecuteActivity(storageCtx, activities.NameCreateRunStep, runID, input.UserMessage).Get(storageCtx, nil); err != nil {
		return errored(&finalStatus, &errMsg, runID, err)
	}

	memoryCtx := workflow.WithActivityOptions(ctx, memoryOptions)
	var agentConfig *model.AgentConfig
	if err := workflow.ExecuteActivity(memoryCtx, activities.NameLoadAgentConfig, sessionID.String()).Get(memoryCtx, &agentConfig); err != nil {
		return errored(&finalStatus, &errMsg, runID, err)
	}

	llmCtx := workflow.WithActivityOptions(ctx, llmOptions)
	toolCtx := workflow.WithActivityOptions(ctx, toolOptions)

	currentStatus = "thinking"
	for {
		if cancellationRequested {
			finalStatus = model.WorkflowStatusCancelled
			currentStatus = model.WorkflowStatusCancelled
			errMsg = model.String("run cancelled by request_cancellation signal")
			logger.Info("run cancelled", "run_id", runID)
			return model.AgentWorkflowOutput{
				RunID:  runID,
				Status: model.WorkflowStatusCancelled,
				Error:  *errMsg,
			}, nil
		}

		var memory model.AgentMemory
		if err := workflow.ExecuteActivity(memoryCtx, activities.NameGetRunMemory, sessionID.String()).Get(memoryCtx, &memory); err != nil {
			return errored(&finalStatus, &errMsg, runID, err)
		}

		prompt := buildPrompt(agentConfig, memory)

		var assistant model.Message
		if err := workflow.ExecuteActivity(llmCtx, activities.NameLLMStreamPublish,
			agentConfig, prompt, sessionID.String(), runID).Get(llmCtx, &assistant); err != nil {
			return errored(&finalStatus, &errMsg, runID, err)
		}

		if len(assistant.ToolCalls) == 0 {
			finalStatus = model.WorkflowStatusCompleted
			currentStatus = model.WorkflowStatusCompleted
			logger.Info("run completed", "run_id", runID)
			return model.AgentWorkflowOutput{
				RunID:        runID,
				Status:       model.WorkflowStatusCompleted,
				FinalMessage: &assistant,
			}, nil
		}

		// Fan out every tool call before awaiting any result: one
		// parallel barrier per assistant turn.
		currentStatus = fmt.Sprintf("executing %d tools", len(assistant.ToolCalls))
		futures := make([]workflow.Future, len(assistant.ToolCalls))
		for i, call := range assistant.ToolCalls {
			futures[i] = workflow.ExecuteActivity(toolCtx, activities.NameExecuteTool, call)
		}
		results := make([]model.ToolCallResult, len(futures))
		for i, fut := range futures {
			if err := fut.Get(toolCtx, &results[i]); err != nil {
				return errored(&finalStatus, &errMsg, runID, err)
			}
		}

		// Persist sequentially in request order so memory reconstruction
		// and replay stay deterministic.
		for _, result := range results {
			step := model.NewToolMessage(result.ToolCallID, result.Content.String())
			if err := workflow.ExecuteActivity(storageCtx, activities.NameCreateRunStep, runID, step).Get(storageCtx, nil); err != nil {
				return errored(&finalStatus, &errMsg, runID, err)
			}
		}
		currentStatus = "thinking"
	}
}

// buildPrompt prepends the agent's system prompt (when a configuration is
// available) to the reconstructed memory.
func buildPrompt(cfg *model.AgentConfig, memory model.AgentMemory) []model.Message {
	prompt := make([]model.Message, 0, len(memory.Messages)+1)
	if cfg != nil {
		prompt = append(prompt, model.Message{Role: model.RoleSystem, Content: model.String(cfg.SystemPrompt)})
	}
	return append(prompt, memory.Messages...)
}

// errored records a failure verdict and returns the terminal output. The
// deferred finalization picks up the status and message through the shared
// pointers.
func errored(finalStatus *string, errMsg **string, runID string, err error) (model.AgentWorkflowOutput, error) {
	status := model.WorkflowStatusErrored
	if isCancellation(err) {
		status = model.WorkflowStatusCancelled
	}
	*finalStatus = status
	*errMsg = model.String(err.Error())
	return model.AgentWorkflowOutput{
		RunID:  runID,
		Status: status,
		Error:  err.Error(),
	}, nil
}

// isCancellation classifies an error as cancellation when it carries the
// Cancelled application type or mentions cancellation in its message.
func isCancellation(err error) bool {
	var appErr *temporal.ApplicationError
	if errors.As(err, &appErr) && appErr.Type() == activities.ErrTypeCancelled {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "cancelled")
}

// ValidateSessionID reports whether a raw session id parses as a UUID. The
// API uses it before starting a workflow so malformed requests fail fast.
func ValidateSessionID(raw string) error {
	if _, err := uuid.Parse(raw); err != nil {
		return fmt.Errorf("%w: session_id %q is not a valid UUID", model.ErrInvalidInput, raw)
	}
	return nil
}
