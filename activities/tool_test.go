package activities

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/temporal"

	"github.com/truss-ai/truss/model"
	"github.com/truss-ai/truss/tools"
)

func appError(t *testing.T, err error) *temporal.ApplicationError {
	t.Helper()
	var appErr *temporal.ApplicationError
	require.ErrorAs(t, err, &appErr)
	return appErr
}

func testRegistry(t *testing.T) *tools.Registry {
	t.Helper()
	r := tools.NewRegistry()
	require.NoError(t, r.Register("echo", func(ctx context.Context, args map[string]any) (any, error) {
		return args, nil
	}))
	require.NoError(t, r.Register("fail", func(ctx context.Context, args map[string]any) (any, error) {
		return nil, errors.New("upstream timeout")
	}))
	require.NoError(t, r.Register("greet", func(ctx context.Context, args map[string]any) (any, error) {
		return "hello " + args["name"].(string), nil
	}, tools.WithArgumentSchema(map[string]any{
		"type":                 "object",
		"properties":           map[string]any{"name": map[string]any{"type": "string"}},
		"required":             []any{"name"},
		"additionalProperties": false,
	})))
	return r
}

func TestExecuteToolUnregistered(t *testing.T) {
	acts := NewToolActivities(testRegistry(t), nil)
	_, err := acts.ExecuteTool(context.Background(), model.ToolCall{ID: "c1", Name: "nonexistent"})
	appErr := appError(t, err)
	assert.Equal(t, ErrTypeToolUnregistered, appErr.Type())
	assert.True(t, appErr.NonRetryable())
}

func TestExecuteToolObjectArguments(t *testing.T) {
	acts := NewToolActivities(testRegistry(t), nil)
	res, err := acts.ExecuteTool(context.Background(), model.ToolCall{
		ID: "c1", Name: "greet", Arguments: json.RawMessage(`{"name":"world"}`),
	})
	require.NoError(t, err)
	assert.Equal(t, "c1", res.ToolCallID)
	assert.Equal(t, "hello world", res.Content.String())
}

func TestExecuteToolStringArguments(t *testing.T) {
	acts := NewToolActivities(testRegistry(t), nil)
	res, err := acts.ExecuteTool(context.Background(), model.ToolCall{
		ID: "c1", Name: "greet", Arguments: json.RawMessage(`"{\"name\":\"world\"}"`),
	})
	require.NoError(t, err)
	assert.Equal(t, "hello world", res.Content.String())
}

func TestExecuteToolUnparseableArguments(t *testing.T) {
	acts := NewToolActivities(testRegistry(t), nil)
	_, err := acts.ExecuteTool(context.Background(), model.ToolCall{
		ID: "c1", Name: "greet", Arguments: json.RawMessage(`"definitely not json"`),
	})
	appErr := appError(t, err)
	assert.Equal(t, ErrTypeInvalidInput, appErr.Type())
	assert.True(t, appErr.NonRetryable())
}

func TestExecuteToolSchemaViolation(t *testing.T) {
	acts := NewToolActivities(testRegistry(t), nil)
	_, err := acts.ExecuteTool(context.Background(), model.ToolCall{
		ID: "c1", Name: "greet", Arguments: json.RawMessage(`{"name":42}`),
	})
	appErr := appError(t, err)
	assert.Equal(t, ErrTypeInvalidInput, appErr.Type())
	assert.True(t, appErr.NonRetryable())
}

func TestExecuteToolHandlerFailureIsRetryable(t *testing.T) {
	acts := NewToolActivities(testRegistry(t), nil)
	_, err := acts.ExecuteTool(context.Background(), model.ToolCall{ID: "c1", Name: "fail"})
	appErr := appError(t, err)
	assert.Equal(t, ErrTypeToolExecutionFailed, appErr.Type())
	assert.False(t, appErr.NonRetryable())
	assert.Contains(t, appErr.Error(), "upstream timeout")
}

func TestExecuteToolSerializesStructuredResults(t *testing.T) {
	acts := NewToolActivities(testRegistry(t), nil)
	res, err := acts.ExecuteTool(context.Background(), model.ToolCall{
		ID: "c1", Name: "echo", Arguments: json.RawMessage(`{"k":"v","n":1}`),
	})
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(res.Content.String()), &decoded))
	assert.Equal(t, "v", decoded["k"])
	assert.Equal(t, float64(1), decoded["n"])
}

func TestSerializeResult(t *testing.T) {
	cases := []struct {
		name string
		in   any
		want string
	}{
		{"nil", nil, ""},
		{"string", "plain", "plain"},
		{"raw json", json.RawMessage(`{"a":1}`), `{"a":1}`},
		{"map", map[string]any{"a": 1}, `{"a":1}`},
		{"slice", []int{1, 2}, `[1,2]`},
		{"int", 42, "42"},
		{"bool", true, "true"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := serializeResult(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}
