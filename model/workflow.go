package model

import (
	"fmt"

	"github.com/google/uuid"
)

// Terminal workflow statuses reported in AgentWorkflowOutput. They are
// distinct from RunStatus: the run row records succeeded/failed while the
// workflow output records completed/errored.
const (
	WorkflowStatusRunning   = "running"
	WorkflowStatusCompleted = "completed"
	WorkflowStatusErrored   = "errored"
	WorkflowStatusCancelled = "cancelled"
)

type (
	// AgentWorkflowInput starts an agent execution workflow. RunID is
	// optional: callers that want to adopt a pre-generated identifier set
	// it, otherwise the workflow creates one through storage.
	AgentWorkflowInput struct {
		SessionID   string  `json:"session_id"`
		UserMessage Message `json:"user_message"`
		RunID       string  `json:"run_id,omitempty"`
	}

	// AgentWorkflowOutput is the terminal verdict of a workflow execution.
	AgentWorkflowOutput struct {
		RunID        string   `json:"run_id"`
		Status       string   `json:"status"`
		FinalMessage *Message `json:"final_message,omitempty"`
		Error        string   `json:"error,omitempty"`
	}
)

// Validate checks the input payload: the session id must be a UUID and the
// user message must satisfy the message invariants.
func (in AgentWorkflowInput) Validate() (uuid.UUID, error) {
	sessionID, err := uuid.Parse(in.SessionID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: session_id %q is not a valid UUID", ErrInvalidInput, in.SessionID)
	}
	if err := in.UserMessage.Validate(); err != nil {
		return uuid.Nil, fmt.Errorf("user message: %w", err)
	}
	return sessionID, nil
}
