package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/truss-ai/truss/storage"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"DATABASE_URL", "REDIS_URL", "TEMPORAL_URL", "TEMPORAL_TASK_QUEUE",
		"TEMPORAL_TLS_ENABLED", "HTTP_ADDR", "OPENAI_MODEL", "AGENTS_FILE",
	} {
		t.Setenv(key, "")
	}

	cfg := Load()
	assert.Equal(t, storage.DefaultDatabaseURL, cfg.DatabaseURL)
	assert.Equal(t, "redis://localhost:6379/0", cfg.RedisURL)
	assert.Equal(t, "localhost:7233", cfg.TemporalURL)
	assert.Equal(t, "truss-agent-queue", cfg.TaskQueue)
	assert.False(t, cfg.TemporalTLS)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "gpt-4o", cfg.OpenAIModel)
	assert.Empty(t, cfg.AgentsFile)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/truss")
	t.Setenv("TEMPORAL_URL", "temporal.internal:7233")
	t.Setenv("TEMPORAL_TASK_QUEUE", "custom-queue")
	t.Setenv("TEMPORAL_TLS_ENABLED", "true")
	t.Setenv("OPENAI_MODEL", "gpt-4o-mini")

	cfg := Load()
	assert.Equal(t, "postgres://localhost/truss", cfg.DatabaseURL)
	assert.Equal(t, "temporal.internal:7233", cfg.TemporalURL)
	assert.Equal(t, "custom-queue", cfg.TaskQueue)
	assert.True(t, cfg.TemporalTLS)
	assert.Equal(t, "gpt-4o-mini", cfg.OpenAIModel)
}

const agentsYAML = `
agents:
  - id: "6f1f9d1e-8a3c-4a87-9d3d-111111111111"
    name: researcher
    system_prompt: "You research things."
    model: gpt-4o
    temperature: 0.3
    max_tokens: 512
    tools: [web_search]
  - name: quant
    system_prompt: "You watch markets."
    model: gpt-4o-mini
    tools: [get_stock_price, web_search]
`

func writeAgentsFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "agents.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestSeedAgents(t *testing.T) {
	ctx := context.Background()
	store, err := storage.Open(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	seeded, err := SeedAgents(ctx, store, writeAgentsFile(t, agentsYAML))
	require.NoError(t, err)
	require.Len(t, seeded, 2)

	assert.Equal(t, "6f1f9d1e-8a3c-4a87-9d3d-111111111111", seeded[0].ID)
	assert.Equal(t, "researcher", seeded[0].Name)
	assert.Equal(t, 0.3, seeded[0].LLMConfig.Temperature)
	require.NotNil(t, seeded[0].LLMConfig.MaxTokens)
	assert.Equal(t, 512, *seeded[0].LLMConfig.MaxTokens)

	// The second seed had no id; one was assigned.
	_, err = uuid.Parse(seeded[1].ID)
	assert.NoError(t, err)

	got, err := store.LoadAgentConfig(ctx, uuid.MustParse(seeded[0].ID))
	require.NoError(t, err)
	assert.Equal(t, "You research things.", got.SystemPrompt)
	assert.Equal(t, []string{"web_search"}, got.Tools)
}

func TestSeedAgentsIsIdempotentForPinnedIDs(t *testing.T) {
	ctx := context.Background()
	store, err := storage.Open(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	path := writeAgentsFile(t, agentsYAML)

	first, err := SeedAgents(ctx, store, path)
	require.NoError(t, err)
	second, err := SeedAgents(ctx, store, path)
	require.NoError(t, err)
	assert.Equal(t, first[0].ID, second[0].ID)
}

func TestSeedAgentsRejectsInvalidConfig(t *testing.T) {
	ctx := context.Background()
	store, err := storage.Open(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	bad := `
agents:
  - name: hot
    model: gpt-4o
    temperature: 3.0
`
	_, err = SeedAgents(ctx, store, writeAgentsFile(t, bad))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hot")
}

func TestSeedAgentsMissingFile(t *testing.T) {
	ctx := context.Background()
	store, err := storage.Open(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	_, err = SeedAgents(ctx, store, filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
