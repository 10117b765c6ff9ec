package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// RunStatus is the lifecycle state of a run row. Exactly one transition to a
// terminal state (succeeded, failed, cancelled) happens per run.
type RunStatus string

const (
	RunPending   RunStatus = "pending"
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
	RunCancelled RunStatus = "cancelled"
)

// Terminal reports whether the status ends the run lifecycle.
func (s RunStatus) Terminal() bool {
	return s == RunSucceeded || s == RunFailed || s == RunCancelled
}

type (
	// Session groups the runs of one conversation. Created by the API and
	// referenced by every run started within it. A session exclusively
	// owns its runs; deleting it cascades.
	Session struct {
		ID            uuid.UUID `json:"id"`
		AgentConfigID uuid.UUID `json:"agent_config_id"`
		UserID        string    `json:"user_id"`
		CreatedAt     time.Time `json:"created_at"`
	}

	// Run is one execution attempt of an agent within a session.
	Run struct {
		ID        uuid.UUID `json:"id"`
		SessionID uuid.UUID `json:"session_id"`
		Status    RunStatus `json:"status"`
		Error     *string   `json:"error,omitempty"`
		CreatedAt time.Time `json:"created_at"`
		UpdatedAt time.Time `json:"updated_at"`
	}

	// RunStep is one immutable persisted message in a run's conversation
	// log. ToolCalls stores the raw provider tool_calls array for full
	// fidelity.
	RunStep struct {
		ID         uuid.UUID       `json:"id"`
		RunID      uuid.UUID       `json:"run_id"`
		Role       Role            `json:"role"`
		Content    *string         `json:"content,omitempty"`
		ToolCalls  json.RawMessage `json:"tool_calls,omitempty"`
		ToolCallID string          `json:"tool_call_id,omitempty"`
		CreatedAt  time.Time       `json:"created_at"`
	}
)

// Message reconstructs the chat message a step was persisted from.
func (s RunStep) Message() (Message, error) {
	msg := Message{
		Role:       s.Role,
		Content:    s.Content,
		ToolCallID: s.ToolCallID,
	}
	if len(s.ToolCalls) > 0 {
		if err := json.Unmarshal(s.ToolCalls, &msg.ToolCalls); err != nil {
			return Message{}, err
		}
	}
	return msg, nil
}
