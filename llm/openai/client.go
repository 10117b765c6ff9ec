// Package openai provides an llm.Streamer backed by the OpenAI Chat
// Completions API. It translates the agent configuration and conversation
// into a streaming ChatCompletion request using
// github.com/sashabaranov/go-openai and normalizes the response stream into
// llm.Chunk values.
package openai

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/truss-ai/truss/llm"
	"github.com/truss-ai/truss/model"
	"github.com/truss-ai/truss/tools"
)

type (
	// StreamClient captures the subset of the go-openai client used by the
	// adapter.
	StreamClient interface {
		CreateChatCompletionStream(ctx context.Context, request openai.ChatCompletionRequest) (*openai.ChatCompletionStream, error)
	}

	// DefinitionSource resolves provider-facing tool definitions for the
	// tool names listed in an agent configuration. *tools.Registry
	// satisfies it.
	DefinitionSource interface {
		Definition(name string) (tools.Definition, bool)
	}

	// Options configures the adapter.
	Options struct {
		// Client is the go-openai client (or a test double). Required.
		Client StreamClient

		// Tools resolves tool definitions so the model can request
		// calls. Optional; without it no tools are advertised.
		Tools DefinitionSource
	}

	// Client implements llm.Streamer via the OpenAI Chat Completions API.
	Client struct {
		client StreamClient
		tools  DefinitionSource
	}

	chunkStream struct {
		stream *openai.ChatCompletionStream
	}
)

// New builds the adapter from the provided options.
func New(opts Options) (*Client, error) {
	if opts.Client == nil {
		return nil, errors.New("openai client is required")
	}
	return &Client{client: opts.Client, tools: opts.Tools}, nil
}

// NewFromAPIKey constructs an adapter using the default go-openai HTTP
// client.
func NewFromAPIKey(apiKey string, toolDefs DefinitionSource) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("api key is required")
	}
	return New(Options{Client: openai.NewClient(apiKey), Tools: toolDefs})
}

// StreamCompletion opens a streaming chat completion derived from the agent's
// LLM configuration. Optional parameters that are unset are omitted from the
// request.
func (c *Client) StreamCompletion(ctx context.Context, cfg model.AgentConfig, conversation []model.Message) (llm.Stream, error) {
	req, err := c.buildRequest(cfg, conversation)
	if err != nil {
		return nil, err
	}
	stream, err := c.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("openai stream completion: %w", err)
	}
	return &chunkStream{stream: stream}, nil
}

func (c *Client) buildRequest(cfg model.AgentConfig, conversation []model.Message) (openai.ChatCompletionRequest, error) {
	if len(conversation) == 0 {
		return openai.ChatCompletionRequest{}, errors.New("conversation must not be empty")
	}
	llmCfg := cfg.LLMConfig
	req := openai.ChatCompletionRequest{
		Model:            llmCfg.ModelName,
		Messages:         encodeMessages(conversation),
		Temperature:      float32(llmCfg.Temperature),
		TopP:             float32(llmCfg.TopP),
		FrequencyPenalty: float32(llmCfg.FrequencyPenalty),
		PresencePenalty:  float32(llmCfg.PresencePenalty),
		Stream:           true,
	}
	if llmCfg.MaxTokens != nil {
		req.MaxTokens = *llmCfg.MaxTokens
	}
	if c.tools != nil {
		for _, name := range cfg.Tools {
			def, ok := c.tools.Definition(name)
			if !ok {
				continue
			}
			req.Tools = append(req.Tools, openai.Tool{
				Type: openai.ToolTypeFunction,
				Function: &openai.FunctionDefinition{
					Name:        def.Name,
					Description: def.Description,
					Parameters:  def.Parameters,
				},
			})
		}
	}
	return req, nil
}

func encodeMessages(conversation []model.Message) []openai.ChatCompletionMessage {
	encoded := make([]openai.ChatCompletionMessage, 0, len(conversation))
	for _, msg := range conversation {
		m := openai.ChatCompletionMessage{
			Role:       string(msg.Role),
			ToolCallID: msg.ToolCallID,
		}
		if msg.Content != nil {
			m.Content = *msg.Content
		}
		for _, tc := range msg.ToolCalls {
			m.ToolCalls = append(m.ToolCalls, openai.ToolCall{
				ID:   tc.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      tc.Name,
					Arguments: string(tc.Arguments),
				},
			})
		}
		encoded = append(encoded, m)
	}
	return encoded
}

// Recv translates the next provider chunk into the normalized shape.
func (s *chunkStream) Recv() (llm.Chunk, error) {
	resp, err := s.stream.Recv()
	if err != nil {
		return llm.Chunk{}, err
	}
	chunk := llm.Chunk{
		ID:      resp.ID,
		Object:  resp.Object,
		Created: resp.Created,
		Model:   resp.Model,
	}
	for _, choice := range resp.Choices {
		delta := llm.Delta{
			Role:    choice.Delta.Role,
			Content: choice.Delta.Content,
		}
		for _, tc := range choice.Delta.ToolCalls {
			delta.ToolCalls = append(delta.ToolCalls, llm.ToolCallDelta{
				Index: tc.Index,
				ID:    tc.ID,
				Type:  string(tc.Type),
				Function: llm.FunctionDelta{
					Name:      tc.Function.Name,
					Arguments: tc.Function.Arguments,
				},
			})
		}
		chunk.Choices = append(chunk.Choices, llm.Choice{
			Index:        choice.Index,
			Delta:        delta,
			FinishReason: string(choice.FinishReason),
		})
	}
	return chunk, nil
}

// Close releases the provider stream.
func (s *chunkStream) Close() error {
	s.stream.Close()
	return nil
}
