package activities

import (
	"context"
	"encoding/json"
	"errors"
	"io"

	"github.com/google/uuid"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"
	"goa.design/clue/log"

	"github.com/truss-ai/truss/llm"
	"github.com/truss-ai/truss/model"
	"github.com/truss-ai/truss/storage"
	"github.com/truss-ai/truss/stream"
	"github.com/truss-ai/truss/telemetry"
)

// LLMActivities hosts the streaming LLM activity. Each invocation opens a
// dedicated publisher so concurrent activity executions never share a
// pub/sub connection.
type LLMActivities struct {
	streamer   llm.Streamer
	store      storage.Store
	publishers stream.PublisherFactory
	defaultLLM model.LLMConfig
	metrics    *telemetry.Metrics
}

// LLMOptions configures the LLM activity set.
type LLMOptions struct {
	// Streamer opens provider completions. Required.
	Streamer llm.Streamer

	// Store persists the accumulated assistant message. Required.
	Store storage.Store

	// Publishers opens one publisher per invocation. Required.
	Publishers stream.PublisherFactory

	// DefaultLLM is the fallback sampling configuration applied when a
	// run has no resolved agent configuration.
	DefaultLLM model.LLMConfig

	// Metrics counts published chunks. Optional.
	Metrics *telemetry.Metrics
}

// NewLLMActivities builds the LLM activity set.
func NewLLMActivities(opts LLMOptions) (*LLMActivities, error) {
	if opts.Streamer == nil {
		return nil, errors.New("streamer is required")
	}
	if opts.Store == nil {
		return nil, errors.New("store is required")
	}
	if opts.Publishers == nil {
		return nil, errors.New("publisher factory is required")
	}
	return &LLMActivities{
		streamer:   opts.Streamer,
		store:      opts.Store,
		publishers: opts.Publishers,
		defaultLLM: opts.DefaultLLM,
		metrics:    opts.Metrics,
	}, nil
}

// LLMStreamPublish streams an assistant completion, publishing every provider
// chunk verbatim to stream:{session_id} while accumulating the full message.
// The assembled message is persisted as a run step before it is returned:
// persistence and return are inseparable, so a failed write fails the
// activity and the engine retries.
func (a *LLMActivities) LLMStreamPublish(ctx context.Context, cfg *model.AgentConfig, messages []model.Message, sessionID, runID string) (model.Message, error) {
	runUUID, err := uuid.Parse(runID)
	if err != nil {
		return model.Message{}, temporal.NewNonRetryableApplicationError(
			"run id is not a valid UUID", ErrTypeInvalidInput, err)
	}

	agentCfg := model.AgentConfig{LLMConfig: a.defaultLLM}
	if cfg != nil {
		agentCfg = *cfg
	}

	pub, err := a.publishers(ctx)
	if err != nil {
		return model.Message{}, temporal.NewApplicationError("open publisher: "+err.Error(), ErrTypeProviderError)
	}
	// Close on every exit path; a close failure is logged, never allowed
	// to mask the streaming outcome.
	defer func() {
		if cerr := pub.Close(); cerr != nil {
			telemetry.Errorf(ctx, cerr, "close stream publisher", log.KV{K: "session_id", V: sessionID})
		}
	}()

	providerStream, err := a.streamer.StreamCompletion(ctx, agentCfg, messages)
	if err != nil {
		return model.Message{}, temporal.NewApplicationError("stream completion: "+err.Error(), ErrTypeProviderError)
	}
	defer func() {
		if cerr := providerStream.Close(); cerr != nil {
			telemetry.Errorf(ctx, cerr, "close provider stream", log.KV{K: "session_id", V: sessionID})
		}
	}()

	// Heartbeats are meaningful only under an activity runtime; unit tests
	// invoke this function directly.
	heartbeats := activity.IsActivity(ctx)
	channel := stream.Channel(sessionID)
	acc := llm.NewAccumulator()
	chunks := 0

	for {
		chunk, err := providerStream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			return model.Message{}, temporal.NewApplicationError("receive chunk: "+err.Error(), ErrTypeProviderError)
		}
		if heartbeats {
			activity.RecordHeartbeat(ctx)
		}
		payload, err := json.Marshal(chunk)
		if err != nil {
			return model.Message{}, temporal.NewApplicationError("encode chunk: "+err.Error(), ErrTypeProviderError)
		}
		if err := pub.Publish(ctx, channel, payload); err != nil {
			return model.Message{}, err
		}
		a.metrics.ChunkPublished(ctx)
		chunks++
		acc.Add(chunk)
	}
	if chunks == 0 {
		return model.Message{}, temporal.NewApplicationError("provider returned no chunks", ErrTypeEmptyCompletion)
	}

	msg := acc.Message()
	if _, err := a.store.CreateRunStep(ctx, runUUID, msg); err != nil {
		return model.Message{}, translateStorageError("persist assistant step", err)
	}
	log.Info(ctx, log.KV{K: "msg", V: "assistant turn streamed"},
		log.KV{K: "run_id", V: runID},
		log.KV{K: "chunks", V: chunks},
		log.KV{K: "tool_calls", V: len(msg.ToolCalls)})
	return msg, nil
}
