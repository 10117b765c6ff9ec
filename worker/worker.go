// Package worker assembles the Temporal worker: it registers the agent
// execution workflow and every activity it invokes on a single task queue.
package worker

import (
	"errors"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/client"
	temporalworker "go.temporal.io/sdk/worker"
	sdkworkflow "go.temporal.io/sdk/workflow"

	"github.com/truss-ai/truss/activities"
	"github.com/truss-ai/truss/workflow"
)

// DefaultTaskQueue is used when TEMPORAL_TASK_QUEUE is unset.
const DefaultTaskQueue = "truss-agent-queue"

// Options carries the activity sets registered on the worker.
type Options struct {
	// TaskQueue names the queue the worker polls. Defaults to
	// DefaultTaskQueue when empty.
	TaskQueue string

	// Storage is the persistence activity set. Required.
	Storage *activities.StorageActivities

	// LLM is the streaming completion activity set. Required.
	LLM *activities.LLMActivities

	// Tools is the tool dispatch activity set. Required.
	Tools *activities.ToolActivities
}

// New builds a Temporal worker with the workflow and activities registered
// under their stable names. The caller runs it with Run(worker.InterruptCh())
// or Start/Stop.
func New(c client.Client, opts Options) (temporalworker.Worker, error) {
	if opts.Storage == nil {
		return nil, errors.New("storage activities are required")
	}
	if opts.LLM == nil {
		return nil, errors.New("llm activities are required")
	}
	if opts.Tools == nil {
		return nil, errors.New("tool activities are required")
	}
	queue := opts.TaskQueue
	if queue == "" {
		queue = DefaultTaskQueue
	}

	w := temporalworker.New(c, queue, temporalworker.Options{})
	w.RegisterWorkflowWithOptions(workflow.AgentExecution, sdkworkflow.RegisterOptions{Name: workflow.Name})

	register := func(name string, fn any) {
		w.RegisterActivityWithOptions(fn, activity.RegisterOptions{Name: name})
	}
	register(activities.NameCreateRun, opts.Storage.CreateRun)
	register(activities.NameCreateRunStep, opts.Storage.CreateRunStep)
	register(activities.NameGetRunMemory, opts.Storage.GetRunMemory)
	register(activities.NameLoadAgentConfig, opts.Storage.LoadAgentConfig)
	register(activities.NameFinalizeRun, opts.Storage.FinalizeRun)
	register(activities.NameLLMStreamPublish, opts.LLM.LLMStreamPublish)
	register(activities.NameExecuteTool, opts.Tools.ExecuteTool)
	return w, nil
}
