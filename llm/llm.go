// Package llm defines the provider-neutral streaming contract used by the
// LLM activity. Providers normalize their wire format into chat-completion
// chunks (the shape subscribers receive verbatim on the session stream) and
// the accumulator assembles those chunks into a single assistant message.
package llm

import (
	"context"

	"github.com/truss-ai/truss/model"
)

type (
	// Chunk is one normalized streaming chat-completion fragment. The JSON
	// encoding of a Chunk is exactly what gets published to subscribers,
	// so field names follow the provider wire format.
	Chunk struct {
		ID      string   `json:"id,omitempty"`
		Object  string   `json:"object,omitempty"`
		Created int64    `json:"created,omitempty"`
		Model   string   `json:"model,omitempty"`
		Choices []Choice `json:"choices"`
	}

	// Choice is one completion choice within a chunk. The runtime only
	// consumes choice zero but the full array is preserved on the wire.
	Choice struct {
		Index        int    `json:"index"`
		Delta        Delta  `json:"delta"`
		FinishReason string `json:"finish_reason,omitempty"`
	}

	// Delta carries the incremental payload of a chunk.
	Delta struct {
		Role      string          `json:"role,omitempty"`
		Content   string          `json:"content,omitempty"`
		ToolCalls []ToolCallDelta `json:"tool_calls,omitempty"`
	}

	// ToolCallDelta is an incremental tool-call fragment. The provider
	// sends the id and function name on the first fragment of a call and
	// argument string fragments on subsequent ones, correlated by Index.
	ToolCallDelta struct {
		Index    *int          `json:"index,omitempty"`
		ID       string        `json:"id,omitempty"`
		Type     string        `json:"type,omitempty"`
		Function FunctionDelta `json:"function"`
	}

	// FunctionDelta is the function fragment of a tool-call delta.
	FunctionDelta struct {
		Name      string `json:"name,omitempty"`
		Arguments string `json:"arguments,omitempty"`
	}

	// Stream yields chunks in generation order. Recv returns io.EOF after
	// the final chunk. Close releases the underlying connection and is
	// safe to call after Recv errors.
	Stream interface {
		Recv() (Chunk, error)
		Close() error
	}

	// Streamer opens a streaming completion against a provider using the
	// sampling parameters from the agent configuration.
	Streamer interface {
		StreamCompletion(ctx context.Context, cfg model.AgentConfig, conversation []model.Message) (Stream, error)
	}
)
