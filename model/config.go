package model

import "fmt"

type (
	// LLMConfig holds the provider sampling parameters for an agent.
	// Construct via NewLLMConfig so defaults and range checks apply; treat
	// values as immutable afterwards.
	LLMConfig struct {
		ModelName        string   `json:"model_name"`
		Temperature      float64  `json:"temperature"`
		MaxTokens        *int     `json:"max_tokens,omitempty"`
		TopP             float64  `json:"top_p"`
		FrequencyPenalty float64  `json:"frequency_penalty"`
		PresencePenalty  float64  `json:"presence_penalty"`
	}

	// AgentConfig describes an autonomous agent: its system prompt, LLM
	// parameters, and the tool names it may invoke (nil means no tools).
	AgentConfig struct {
		ID           string    `json:"id"`
		Name         string    `json:"name"`
		SystemPrompt string    `json:"system_prompt"`
		LLMConfig    LLMConfig `json:"llm_config"`
		Tools        []string  `json:"tools,omitempty"`
	}

	// LLMOption customizes a config built by NewLLMConfig.
	LLMOption func(*LLMConfig)
)

// Sampling defaults applied by NewLLMConfig.
const (
	DefaultTemperature = 0.7
	DefaultTopP        = 1.0
)

// WithTemperature sets the sampling temperature, valid range [0, 2].
func WithTemperature(t float64) LLMOption {
	return func(c *LLMConfig) { c.Temperature = t }
}

// WithMaxTokens caps the completion length. Must be positive.
func WithMaxTokens(n int) LLMOption {
	return func(c *LLMConfig) { c.MaxTokens = &n }
}

// WithTopP sets the nucleus sampling parameter, valid range [0, 1].
func WithTopP(p float64) LLMOption {
	return func(c *LLMConfig) { c.TopP = p }
}

// WithFrequencyPenalty sets the frequency penalty, must be non-negative.
func WithFrequencyPenalty(p float64) LLMOption {
	return func(c *LLMConfig) { c.FrequencyPenalty = p }
}

// WithPresencePenalty sets the presence penalty, must be non-negative.
func WithPresencePenalty(p float64) LLMOption {
	return func(c *LLMConfig) { c.PresencePenalty = p }
}

// NewLLMConfig builds a validated LLM configuration with defaults of 0.7
// temperature, 1.0 top_p and zero penalties.
func NewLLMConfig(modelName string, opts ...LLMOption) (LLMConfig, error) {
	cfg := LLMConfig{
		ModelName:   modelName,
		Temperature: DefaultTemperature,
		TopP:        DefaultTopP,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.Validate(); err != nil {
		return LLMConfig{}, err
	}
	return cfg, nil
}

// Validate checks the parameter ranges.
func (c LLMConfig) Validate() error {
	if c.ModelName == "" {
		return fmt.Errorf("%w: model name is required", ErrInvalidInput)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("%w: temperature %v outside [0, 2]", ErrInvalidInput, c.Temperature)
	}
	if c.MaxTokens != nil && *c.MaxTokens <= 0 {
		return fmt.Errorf("%w: max_tokens must be positive", ErrInvalidInput)
	}
	if c.TopP < 0 || c.TopP > 1 {
		return fmt.Errorf("%w: top_p %v outside [0, 1]", ErrInvalidInput, c.TopP)
	}
	if c.FrequencyPenalty < 0 {
		return fmt.Errorf("%w: frequency_penalty must be non-negative", ErrInvalidInput)
	}
	if c.PresencePenalty < 0 {
		return fmt.Errorf("%w: presence_penalty must be non-negative", ErrInvalidInput)
	}
	return nil
}

// Validate checks the agent configuration and its nested LLM parameters.
func (a AgentConfig) Validate() error {
	if a.Name == "" {
		return fmt.Errorf("%w: agent name is required", ErrInvalidInput)
	}
	if err := a.LLMConfig.Validate(); err != nil {
		return fmt.Errorf("agent %q: %w", a.Name, err)
	}
	return nil
}
