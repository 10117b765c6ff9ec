package tools

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoHandler(ctx context.Context, args map[string]any) (any, error) {
	return args, nil
}

func TestRegistryRegisterAndLookup(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("echo", echoHandler, WithDescription("echoes arguments")))

	h, ok := r.Lookup("echo")
	require.True(t, ok)
	out, err := h(context.Background(), map[string]any{"k": "v"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"k": "v"}, out)

	_, ok = r.Lookup("missing")
	assert.False(t, ok)

	def, ok := r.Definition("echo")
	require.True(t, ok)
	assert.Equal(t, "echo", def.Name)
	assert.Equal(t, "echoes arguments", def.Description)
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("echo", echoHandler))
	err := r.Register("echo", echoHandler)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")
}

func TestRegistryRejectsBadRegistrations(t *testing.T) {
	r := NewRegistry()
	assert.Error(t, r.Register("", echoHandler))
	assert.Error(t, r.Register("echo", nil))
	assert.Error(t, r.Register("echo", echoHandler, WithArgumentSchema(map[string]any{
		"type": 42,
	})))
}

func TestRegistryNamesSorted(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("zeta", echoHandler))
	require.NoError(t, r.Register("alpha", echoHandler))
	assert.Equal(t, []string{"alpha", "zeta"}, r.Names())
}

func TestValidateArguments(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("search", echoHandler, WithArgumentSchema(map[string]any{
		"type":                 "object",
		"properties":           map[string]any{"query": map[string]any{"type": "string"}},
		"required":             []any{"query"},
		"additionalProperties": false,
	})))

	assert.NoError(t, r.ValidateArguments("search", map[string]any{"query": "go"}))
	assert.Error(t, r.ValidateArguments("search", map[string]any{}))
	assert.Error(t, r.ValidateArguments("search", map[string]any{"query": 7}))
	assert.Error(t, r.ValidateArguments("search", map[string]any{"query": "go", "extra": true}))

	// Tools without a schema accept anything.
	require.NoError(t, r.Register("free", echoHandler))
	assert.NoError(t, r.ValidateArguments("free", map[string]any{"anything": "goes"}))
}
