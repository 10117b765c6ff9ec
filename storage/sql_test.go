package storage

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/truss-ai/truss/model"
)

func newStore(t *testing.T) *SQLStore {
	t.Helper()
	s, err := Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedAgent(t *testing.T, s *SQLStore) model.AgentConfig {
	t.Helper()
	llm, err := model.NewLLMConfig("gpt-4o", model.WithTemperature(0.5))
	require.NoError(t, err)
	cfg := model.AgentConfig{
		ID:           uuid.NewString(),
		Name:         "researcher",
		SystemPrompt: "You research things.",
		LLMConfig:    llm,
		Tools:        []string{"web_search"},
	}
	require.NoError(t, s.CreateAgentConfig(context.Background(), cfg))
	return cfg
}

func seedSession(t *testing.T, s *SQLStore) *model.Session {
	t.Helper()
	cfg := seedAgent(t, s)
	sess, err := s.CreateSession(context.Background(), uuid.MustParse(cfg.ID), "user-1")
	require.NoError(t, err)
	return sess
}

func TestAgentConfigRoundTrip(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	cfg := seedAgent(t, s)

	got, err := s.LoadAgentConfig(ctx, uuid.MustParse(cfg.ID))
	require.NoError(t, err)
	assert.Equal(t, cfg.Name, got.Name)
	assert.Equal(t, cfg.SystemPrompt, got.SystemPrompt)
	assert.Equal(t, cfg.LLMConfig, got.LLMConfig)
	assert.Equal(t, cfg.Tools, got.Tools)

	// Re-creating with the same id updates in place.
	cfg.SystemPrompt = "You research faster."
	require.NoError(t, s.CreateAgentConfig(ctx, cfg))
	got, err = s.LoadAgentConfig(ctx, uuid.MustParse(cfg.ID))
	require.NoError(t, err)
	assert.Equal(t, "You research faster.", got.SystemPrompt)
}

func TestLoadAgentConfigNotFound(t *testing.T) {
	s := newStore(t)
	_, err := s.LoadAgentConfig(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateSessionUnknownAgent(t *testing.T) {
	s := newStore(t)
	_, err := s.CreateSession(context.Background(), uuid.New(), "user-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateSessionRequiresUser(t *testing.T) {
	s := newStore(t)
	cfg := seedAgent(t, s)
	_, err := s.CreateSession(context.Background(), uuid.MustParse(cfg.ID), "")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestGetSession(t *testing.T) {
	s := newStore(t)
	sess := seedSession(t, s)

	got, err := s.GetSession(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, got.ID)
	assert.Equal(t, sess.AgentConfigID, got.AgentConfigID)
	assert.Equal(t, "user-1", got.UserID)

	_, err = s.GetSession(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRunLifecycle(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	sess := seedSession(t, s)

	runID, err := s.CreateRun(ctx, sess.ID)
	require.NoError(t, err)

	run, err := s.GetRun(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, model.RunPending, run.Status)
	assert.Nil(t, run.Error)

	require.NoError(t, s.UpdateRunStatus(ctx, runID, model.RunFailed, model.String("provider exploded")))
	run, err = s.GetRun(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, model.RunFailed, run.Status)
	require.NotNil(t, run.Error)
	assert.Equal(t, "provider exploded", *run.Error)
	assert.True(t, run.Status.Terminal())
}

func TestCreateRunUnknownSession(t *testing.T) {
	s := newStore(t)
	_, err := s.CreateRun(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateRunStatusNotFound(t *testing.T) {
	s := newStore(t)
	err := s.UpdateRunStatus(context.Background(), uuid.New(), model.RunSucceeded, nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateRunStepUnknownRun(t *testing.T) {
	s := newStore(t)
	_, err := s.CreateRunStep(context.Background(), uuid.New(), model.NewUserMessage("hi"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateRunStepValidatesMessage(t *testing.T) {
	s := newStore(t)
	sess := seedSession(t, s)
	runID, err := s.CreateRun(context.Background(), sess.ID)
	require.NoError(t, err)

	_, err = s.CreateRunStep(context.Background(), runID, model.Message{Role: "moderator"})
	assert.ErrorIs(t, err, model.ErrInvalidInput)
}

func TestStepsForSessionOrdering(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	sess := seedSession(t, s)

	firstRun, err := s.CreateRun(ctx, sess.ID)
	require.NoError(t, err)
	secondRun, err := s.CreateRun(ctx, sess.ID)
	require.NoError(t, err)

	// Rapid inserts share wall-clock nanoseconds on coarse clocks; the
	// sequence column must keep them in insertion order regardless.
	texts := []string{"first", "second", "third", "fourth"}
	require.NoError(t, insertStep(ctx, s, firstRun, model.NewUserMessage(texts[0])))
	require.NoError(t, insertStep(ctx, s, firstRun, model.Message{Role: model.RoleAssistant, Content: model.String(texts[1])}))
	require.NoError(t, insertStep(ctx, s, secondRun, model.NewUserMessage(texts[2])))
	require.NoError(t, insertStep(ctx, s, secondRun, model.Message{Role: model.RoleAssistant, Content: model.String(texts[3])}))

	msgs, err := s.StepsForSession(ctx, sess.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 4)
	for i, want := range texts {
		require.NotNil(t, msgs[i].Content)
		assert.Equal(t, want, *msgs[i].Content)
	}
}

func insertStep(ctx context.Context, s *SQLStore, runID uuid.UUID, msg model.Message) error {
	_, err := s.CreateRunStep(ctx, runID, msg)
	return err
}

func TestStepsPreserveToolCallCorrelation(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	sess := seedSession(t, s)
	runID, err := s.CreateRun(ctx, sess.ID)
	require.NoError(t, err)

	call, err := model.NewToolCall("call_xyz", "web_search", map[string]any{"query": "go"})
	require.NoError(t, err)
	assistant := model.Message{Role: model.RoleAssistant, ToolCalls: []model.ToolCall{call}}
	require.NoError(t, insertStep(ctx, s, runID, assistant))
	require.NoError(t, insertStep(ctx, s, runID, model.NewToolMessage("call_xyz", `{"results":[]}`)))

	msgs, err := s.StepsForSession(ctx, sess.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	require.Len(t, msgs[0].ToolCalls, 1)
	assert.Equal(t, "call_xyz", msgs[0].ToolCalls[0].ID)
	assert.JSONEq(t, `{"query":"go"}`, string(msgs[0].ToolCalls[0].Arguments))
	assert.Nil(t, msgs[0].Content, "tool-only assistant turn stays contentless")

	assert.Equal(t, model.RoleTool, msgs[1].Role)
	assert.Equal(t, "call_xyz", msgs[1].ToolCallID)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(*msgs[1].Content), &decoded))
	assert.Contains(t, decoded, "results")
}

func TestDeleteSessionCascades(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	sess := seedSession(t, s)
	runID, err := s.CreateRun(ctx, sess.ID)
	require.NoError(t, err)
	require.NoError(t, insertStep(ctx, s, runID, model.NewUserMessage("hi")))

	require.NoError(t, s.DeleteSession(ctx, sess.ID))

	_, err = s.GetSession(ctx, sess.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetRun(ctx, runID)
	assert.ErrorIs(t, err, ErrNotFound)
	msgs, err := s.StepsForSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}
