package activities

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/truss-ai/truss/model"
)

func TestCreateRunRejectsBadSessionID(t *testing.T) {
	acts := NewStorageActivities(newFakeStore(), nil)
	_, err := acts.CreateRun(context.Background(), "not-a-uuid")
	appErr := appError(t, err)
	assert.Equal(t, ErrTypeInvalidInput, appErr.Type())
	assert.True(t, appErr.NonRetryable())
}

func TestCreateRunAndFinalize(t *testing.T) {
	store := newFakeStore()
	acts := NewStorageActivities(store, nil)
	ctx := context.Background()

	runID, err := acts.CreateRun(ctx, uuid.NewString())
	require.NoError(t, err)
	rid := uuid.MustParse(runID)
	assert.Equal(t, model.RunPending, store.runs[rid])

	require.NoError(t, acts.FinalizeRun(ctx, runID, model.WorkflowStatusCompleted, nil))
	assert.Equal(t, model.RunSucceeded, store.runs[rid])
	assert.Nil(t, store.runErrs[rid])
}

func TestFinalizeRunStatusMapping(t *testing.T) {
	cases := []struct {
		workflowStatus string
		want           model.RunStatus
	}{
		{model.WorkflowStatusCompleted, model.RunSucceeded},
		{model.WorkflowStatusErrored, model.RunFailed},
		{model.WorkflowStatusCancelled, model.RunCancelled},
		{model.WorkflowStatusRunning, model.RunRunning},
	}
	for _, tc := range cases {
		t.Run(tc.workflowStatus, func(t *testing.T) {
			store := newFakeStore()
			acts := NewStorageActivities(store, nil)
			runID, err := acts.CreateRun(context.Background(), uuid.NewString())
			require.NoError(t, err)

			errMsg := model.String("boom")
			require.NoError(t, acts.FinalizeRun(context.Background(), runID, tc.workflowStatus, errMsg))
			rid := uuid.MustParse(runID)
			assert.Equal(t, tc.want, store.runs[rid])
			assert.Equal(t, errMsg, store.runErrs[rid])
		})
	}
}

func TestFinalizeRunRejectsUnknownStatus(t *testing.T) {
	acts := NewStorageActivities(newFakeStore(), nil)
	err := acts.FinalizeRun(context.Background(), uuid.NewString(), "exploded", nil)
	appErr := appError(t, err)
	assert.Equal(t, ErrTypeInvalidInput, appErr.Type())
}

func TestFinalizeRunMissingRunIsNotFound(t *testing.T) {
	acts := NewStorageActivities(newFakeStore(), nil)
	err := acts.FinalizeRun(context.Background(), uuid.NewString(), model.WorkflowStatusCompleted, nil)
	appErr := appError(t, err)
	assert.Equal(t, ErrTypeNotFound, appErr.Type())
	assert.True(t, appErr.NonRetryable())
}

func TestCreateRunStepPersists(t *testing.T) {
	store := newFakeStore()
	acts := NewStorageActivities(store, nil)

	stepID, err := acts.CreateRunStep(context.Background(), uuid.NewString(), model.NewUserMessage("hi"))
	require.NoError(t, err)
	assert.NotEmpty(t, stepID)
	require.Len(t, store.steps, 1)
	assert.Equal(t, model.RoleUser, store.steps[0].Role)
}

func TestGetRunMemory(t *testing.T) {
	store := newFakeStore()
	store.steps = []model.Message{
		model.NewUserMessage("hi"),
		{Role: model.RoleAssistant, Content: model.String("hello")},
	}
	acts := NewStorageActivities(store, nil)

	mem, err := acts.GetRunMemory(context.Background(), uuid.NewString())
	require.NoError(t, err)
	require.Len(t, mem.Messages, 2)
	assert.Equal(t, model.RoleUser, mem.Messages[0].Role)
}

func TestLoadAgentConfigThroughSession(t *testing.T) {
	store := newFakeStore()
	acts := NewStorageActivities(store, nil)
	ctx := context.Background()

	llmCfg, err := model.NewLLMConfig("gpt-4o")
	require.NoError(t, err)
	cfg := model.AgentConfig{ID: uuid.NewString(), Name: "researcher", LLMConfig: llmCfg}
	require.NoError(t, store.CreateAgentConfig(ctx, cfg))
	sess, err := store.CreateSession(ctx, uuid.MustParse(cfg.ID), "user-1")
	require.NoError(t, err)

	got, err := acts.LoadAgentConfig(ctx, sess.ID.String())
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "researcher", got.Name)
}

func TestLoadAgentConfigMissingSession(t *testing.T) {
	acts := NewStorageActivities(newFakeStore(), nil)
	_, err := acts.LoadAgentConfig(context.Background(), uuid.NewString())
	appErr := appError(t, err)
	assert.Equal(t, ErrTypeNotFound, appErr.Type())
	assert.True(t, appErr.NonRetryable())
}
