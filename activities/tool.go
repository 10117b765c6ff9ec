package activities

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"

	"go.temporal.io/sdk/temporal"
	"goa.design/clue/log"

	"github.com/truss-ai/truss/model"
	"github.com/truss-ai/truss/telemetry"
	"github.com/truss-ai/truss/tools"
)

// ToolActivities routes model-requested tool calls to registered handlers.
type ToolActivities struct {
	registry *tools.Registry
	metrics  *telemetry.Metrics
}

// NewToolActivities builds the dispatch activity over a registry.
func NewToolActivities(registry *tools.Registry, metrics *telemetry.Metrics) *ToolActivities {
	return &ToolActivities{registry: registry, metrics: metrics}
}

// ExecuteTool resolves the tool by name, normalizes its arguments, invokes
// the handler and packages the result. Unregistered tools and unparseable
// arguments fail non-retryably; handler failures surface as retryable
// ToolExecutionFailed errors since handlers are safe under at-least-once
// execution.
func (a *ToolActivities) ExecuteTool(ctx context.Context, call model.ToolCall) (model.ToolCallResult, error) {
	handler, ok := a.registry.Lookup(call.Name)
	if !ok {
		return model.ToolCallResult{}, temporal.NewNonRetryableApplicationError(
			fmt.Sprintf("tool %q is not registered", call.Name), ErrTypeToolUnregistered, nil)
	}

	args, err := call.ArgumentsMap()
	if err != nil {
		return model.ToolCallResult{}, temporal.NewNonRetryableApplicationError(
			fmt.Sprintf("tool %q: %s", call.Name, err), ErrTypeInvalidInput, err)
	}
	if err := a.registry.ValidateArguments(call.Name, args); err != nil {
		return model.ToolCallResult{}, temporal.NewNonRetryableApplicationError(
			fmt.Sprintf("tool %q: arguments rejected by schema: %s", call.Name, err), ErrTypeInvalidInput, err)
	}

	result, err := handler(ctx, args)
	if err != nil {
		a.metrics.ToolExecuted(ctx, call.Name, false)
		return model.ToolCallResult{}, temporal.NewApplicationError(
			fmt.Sprintf("tool %q execution failed: %s", call.Name, err), ErrTypeToolExecutionFailed)
	}
	a.metrics.ToolExecuted(ctx, call.Name, true)

	content, err := serializeResult(result)
	if err != nil {
		return model.ToolCallResult{}, temporal.NewApplicationError(
			fmt.Sprintf("tool %q: serialize result: %s", call.Name, err), ErrTypeToolExecutionFailed)
	}
	log.Debug(ctx, log.KV{K: "msg", V: "tool executed"}, log.KV{K: "tool", V: call.Name}, log.KV{K: "tool_call_id", V: call.ID})
	return model.ToolCallResult{ToolCallID: call.ID, Content: model.TextContent(content)}, nil
}

// serializeResult renders a handler return value as the string persisted in
// the tool step: maps, slices and structs JSON-encode, scalars stringify.
func serializeResult(v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return t, nil
	case json.RawMessage:
		return string(t), nil
	case fmt.Stringer:
		return t.String(), nil
	}
	switch reflect.Indirect(reflect.ValueOf(v)).Kind() {
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Struct:
		raw, err := json.Marshal(v)
		if err != nil {
			return "", err
		}
		return string(raw), nil
	default:
		return fmt.Sprint(v), nil
	}
}
