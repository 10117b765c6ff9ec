// Package model defines the data types shared by the Truss runtime: chat
// messages, tool calls and their results, agent configuration, and the
// workflow input/output payloads. All types validate at construction time and
// serialize to stable JSON so they can cross the Temporal payload boundary
// and be persisted as run steps without loss.
package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidInput marks validation failures. Callers translate it to a
// non-retryable application error at the activity or API boundary.
var ErrInvalidInput = errors.New("invalid input")

// Role identifies the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Valid reports whether the role is one of the four known values. Role
// comparison is case-sensitive.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant, RoleTool:
		return true
	}
	return false
}

type (
	// Message is a single chat message, optionally carrying tool-call
	// requests (assistant role) or a tool-call correlation id (tool role).
	// Content is a pointer so "no content" and "empty content" stay
	// distinguishable across serialization.
	Message struct {
		Role       Role       `json:"role"`
		Content    *string    `json:"content,omitempty"`
		ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
		ToolCallID string     `json:"tool_call_id,omitempty"`
	}

	// ToolCall is a single tool invocation requested by the model. ID is
	// assigned by the provider stream (or synthesized during accumulation)
	// and must be preserved end-to-end so results correlate. Arguments
	// holds the raw JSON payload: providers emit either an object or a
	// JSON-encoded string of an object; normalization happens at dispatch.
	ToolCall struct {
		ID        string          `json:"id"`
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments,omitempty"`
	}

	// ToolCallResult is the payload produced by executing one tool call.
	ToolCallResult struct {
		ToolCallID string            `json:"tool_call_id"`
		Content    ToolResultContent `json:"content"`
	}

	// AgentMemory is the ordered conversation history reconstructed from
	// persisted run steps.
	AgentMemory struct {
		Messages []Message `json:"messages"`
	}
)

// String returns a pointer to s. Convenience for building Message values.
func String(s string) *string { return &s }

// NewUserMessage builds a validated user message.
func NewUserMessage(content string) Message {
	return Message{Role: RoleUser, Content: &content}
}

// NewToolMessage builds the tool-role message persisted for a tool result.
func NewToolMessage(toolCallID, content string) Message {
	return Message{Role: RoleTool, Content: &content, ToolCallID: toolCallID}
}

// Validate enforces the per-role invariants:
//   - tool messages carry both a tool_call_id and content
//   - assistant messages carry content, tool calls, or both
//   - system and user messages carry content and no tool fields
func (m Message) Validate() error {
	if !m.Role.Valid() {
		return fmt.Errorf("%w: unknown message role %q", ErrInvalidInput, m.Role)
	}
	switch m.Role {
	case RoleTool:
		if m.ToolCallID == "" {
			return fmt.Errorf("%w: tool message requires tool_call_id", ErrInvalidInput)
		}
		if m.Content == nil {
			return fmt.Errorf("%w: tool message requires content", ErrInvalidInput)
		}
	case RoleAssistant:
		if m.Content == nil && len(m.ToolCalls) == 0 {
			return fmt.Errorf("%w: assistant message requires content or tool_calls", ErrInvalidInput)
		}
	default:
		if m.Content == nil {
			return fmt.Errorf("%w: %s message requires content", ErrInvalidInput, m.Role)
		}
		if len(m.ToolCalls) > 0 || m.ToolCallID != "" {
			return fmt.Errorf("%w: %s message must not carry tool fields", ErrInvalidInput, m.Role)
		}
	}
	for i, tc := range m.ToolCalls {
		if err := tc.Validate(); err != nil {
			return fmt.Errorf("tool call %d: %w", i, err)
		}
	}
	return nil
}

// UnmarshalMessage decodes a message from JSON, rejecting unknown fields and
// validating role invariants. Use it at trust boundaries; the plain
// json.Unmarshal path stays lenient for engine payload decoding.
func UnmarshalMessage(data []byte) (Message, error) {
	var msg Message
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&msg); err != nil {
		return Message{}, fmt.Errorf("%w: decode message: %v", ErrInvalidInput, err)
	}
	if err := msg.Validate(); err != nil {
		return Message{}, err
	}
	return msg, nil
}

// NewToolCall builds a tool call from a name and an argument map.
func NewToolCall(id, name string, args map[string]any) (ToolCall, error) {
	raw, err := json.Marshal(args)
	if err != nil {
		return ToolCall{}, fmt.Errorf("%w: encode tool arguments: %v", ErrInvalidInput, err)
	}
	tc := ToolCall{ID: id, Name: name, Arguments: raw}
	if err := tc.Validate(); err != nil {
		return ToolCall{}, err
	}
	return tc, nil
}

// Validate checks the structural invariants of a tool call.
func (t ToolCall) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("%w: tool call requires an id", ErrInvalidInput)
	}
	if t.Name == "" {
		return fmt.Errorf("%w: tool call requires a name", ErrInvalidInput)
	}
	return nil
}

// ArgumentsMap normalizes the raw arguments payload into a map. It accepts
// either a JSON object or a JSON string containing an encoded object, the two
// shapes providers are known to emit. An empty payload yields an empty map.
func (t ToolCall) ArgumentsMap() (map[string]any, error) {
	if len(t.Arguments) == 0 {
		return map[string]any{}, nil
	}
	args := map[string]any{}
	if err := json.Unmarshal(t.Arguments, &args); err == nil {
		return args, nil
	}
	var encoded string
	if err := json.Unmarshal(t.Arguments, &encoded); err != nil {
		return nil, fmt.Errorf("%w: tool arguments are neither an object nor a string", ErrInvalidInput)
	}
	if encoded == "" {
		return map[string]any{}, nil
	}
	if err := json.Unmarshal([]byte(encoded), &args); err != nil {
		return nil, fmt.Errorf("%w: parse tool argument string: %v", ErrInvalidInput, err)
	}
	return args, nil
}

// Add appends a message, preserving order.
func (m *AgentMemory) Add(msg Message) {
	m.Messages = append(m.Messages, msg)
}

// Validate requires the memory to hold at least one message.
func (m AgentMemory) Validate() error {
	if len(m.Messages) == 0 {
		return fmt.Errorf("%w: agent memory must contain at least one message", ErrInvalidInput)
	}
	return nil
}
