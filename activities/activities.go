// Package activities implements the Temporal activities behind the agent
// execution workflow: the storage set (CreateRun, CreateRunStep,
// GetRunMemory, LoadAgentConfig, FinalizeRun), the streaming LLM activity
// (LLMStreamPublish) and tool dispatch (ExecuteTool). Activities run under
// at-least-once semantics; all side effects here tolerate duplicate
// execution.
package activities

import (
	"errors"

	"go.temporal.io/sdk/temporal"

	"github.com/truss-ai/truss/model"
	"github.com/truss-ai/truss/storage"
)

// Registered activity names. The workflow invokes activities by name so the
// wire contract stays stable across refactors.
const (
	NameCreateRun        = "CreateRun"
	NameCreateRunStep    = "CreateRunStep"
	NameGetRunMemory     = "GetRunMemory"
	NameLoadAgentConfig  = "LoadAgentConfig"
	NameFinalizeRun      = "FinalizeRun"
	NameLLMStreamPublish = "LLMStreamPublish"
	NameExecuteTool      = "ExecuteTool"
)

// Application error types surfaced to the workflow. Retryability follows the
// error-kind table: validation and lookup failures never retry, transient
// provider/storage failures do.
const (
	ErrTypeInvalidInput        = "InvalidInput"
	ErrTypeNotFound            = "NotFound"
	ErrTypeToolUnregistered    = "ToolUnregistered"
	ErrTypeToolExecutionFailed = "ToolExecutionFailed"
	ErrTypeEmptyCompletion     = "EmptyCompletion"
	ErrTypeProviderError       = "ProviderError"
	ErrTypeStorageError        = "StorageError"
	ErrTypeCancelled           = "Cancelled"
)

// translateStorageError maps storage sentinels onto application errors:
// NotFound and InvalidInput are non-retryable, anything else is a retryable
// StorageError.
func translateStorageError(op string, err error) error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return temporal.NewNonRetryableApplicationError(op+": "+err.Error(), ErrTypeNotFound, err)
	case errors.Is(err, storage.ErrInvalidInput), errors.Is(err, model.ErrInvalidInput):
		return temporal.NewNonRetryableApplicationError(op+": "+err.Error(), ErrTypeInvalidInput, err)
	default:
		return temporal.NewApplicationError(op+": "+err.Error(), ErrTypeStorageError)
	}
}
