// Package config loads process configuration from the environment and
// optional agent definitions from a YAML seed file.
package config

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/truss-ai/truss/model"
	"github.com/truss-ai/truss/storage"
	"github.com/truss-ai/truss/stream"
	"github.com/truss-ai/truss/worker"
)

// Config is the process configuration shared by the worker and API binaries.
type Config struct {
	// DatabaseURL selects the relational store. file: and :memory: DSNs
	// open SQLite, postgres:// URLs open PostgreSQL.
	DatabaseURL string

	// RedisURL is the pub/sub endpoint chunks are published to.
	RedisURL string

	// TemporalURL is the Temporal frontend host:port.
	TemporalURL string

	// TaskQueue is the Temporal task queue for agent runs.
	TaskQueue string

	// TemporalTLS enables TLS on the Temporal client connection.
	TemporalTLS bool

	// HTTPAddr is the API listen address.
	HTTPAddr string

	// OpenAIAPIKey authenticates the completion provider.
	OpenAIAPIKey string

	// OpenAIModel is the fallback model for sessions whose agent has no
	// stored configuration.
	OpenAIModel string

	// SerperAPIKey authenticates live web search. Empty selects the
	// deterministic stub.
	SerperAPIKey string

	// StockAPIKey authenticates live stock quotes. Empty selects the
	// deterministic stub.
	StockAPIKey string

	// AgentsFile optionally points at a YAML file of agent definitions
	// seeded into storage at startup.
	AgentsFile string
}

// Load reads a .env file when present, then the environment. Missing
// variables fall back to local-development defaults.
func Load() Config {
	// A missing .env file is the normal production case.
	_ = godotenv.Load()
	return Config{
		DatabaseURL:  envOr("DATABASE_URL", storage.DefaultDatabaseURL),
		RedisURL:     envOr("REDIS_URL", stream.DefaultRedisURL),
		TemporalURL:  envOr("TEMPORAL_URL", "localhost:7233"),
		TaskQueue:    envOr("TEMPORAL_TASK_QUEUE", worker.DefaultTaskQueue),
		TemporalTLS:  envBool("TEMPORAL_TLS_ENABLED"),
		HTTPAddr:     envOr("HTTP_ADDR", ":8080"),
		OpenAIAPIKey: os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:  envOr("OPENAI_MODEL", "gpt-4o"),
		SerperAPIKey: os.Getenv("SERPER_API_KEY"),
		StockAPIKey:  os.Getenv("STOCK_API_KEY"),
		AgentsFile:   os.Getenv("AGENTS_FILE"),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	return err == nil && v
}

// AgentSeed is one agent definition in the AGENTS_FILE document.
type AgentSeed struct {
	ID           string   `yaml:"id"`
	Name         string   `yaml:"name"`
	SystemPrompt string   `yaml:"system_prompt"`
	Model        string   `yaml:"model"`
	Temperature  *float64 `yaml:"temperature"`
	MaxTokens    *int     `yaml:"max_tokens"`
	Tools        []string `yaml:"tools"`
}

type agentsDocument struct {
	Agents []AgentSeed `yaml:"agents"`
}

// SeedAgents loads agent definitions from path and upserts them into the
// store. Seeds without an explicit id get a fresh one; pinning ids in the
// file makes reseeding an update instead of a duplicate insert. It returns
// the configurations as stored.
func SeedAgents(ctx context.Context, store storage.Store, path string) ([]model.AgentConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read agents file: %w", err)
	}
	var doc agentsDocument
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse agents file: %w", err)
	}

	seeded := make([]model.AgentConfig, 0, len(doc.Agents))
	for _, seed := range doc.Agents {
		cfg, err := seed.AgentConfig()
		if err != nil {
			return nil, fmt.Errorf("agent %q: %w", seed.Name, err)
		}
		if err := store.CreateAgentConfig(ctx, cfg); err != nil {
			return nil, fmt.Errorf("seed agent %q: %w", seed.Name, err)
		}
		seeded = append(seeded, cfg)
	}
	return seeded, nil
}

// AgentConfig converts the YAML seed into a validated model configuration.
func (s AgentSeed) AgentConfig() (model.AgentConfig, error) {
	var opts []model.LLMOption
	if s.Temperature != nil {
		opts = append(opts, model.WithTemperature(*s.Temperature))
	}
	if s.MaxTokens != nil {
		opts = append(opts, model.WithMaxTokens(*s.MaxTokens))
	}
	llmCfg, err := model.NewLLMConfig(s.Model, opts...)
	if err != nil {
		return model.AgentConfig{}, err
	}
	id := s.ID
	if id == "" {
		id = uuid.NewString()
	}
	cfg := model.AgentConfig{
		ID:           id,
		Name:         s.Name,
		SystemPrompt: s.SystemPrompt,
		LLMConfig:    llmCfg,
		Tools:        s.Tools,
	}
	if err := cfg.Validate(); err != nil {
		return model.AgentConfig{}, err
	}
	return cfg, nil
}
