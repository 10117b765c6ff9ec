// Package api exposes the HTTP front end: health checks, session creation and
// run starts. The handler depends on the Store and a narrow workflow-starter
// interface so tests run against fakes without a Temporal server.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.temporal.io/sdk/client"
	"goa.design/clue/log"

	"github.com/truss-ai/truss/model"
	"github.com/truss-ai/truss/storage"
	"github.com/truss-ai/truss/workflow"
)

// WorkflowStarter is the slice of client.Client the API needs. The Temporal
// client satisfies it directly.
type WorkflowStarter interface {
	ExecuteWorkflow(ctx context.Context, options client.StartWorkflowOptions, workflow any, args ...any) (client.WorkflowRun, error)
}

// Handler serves the truss HTTP API.
type Handler struct {
	store     storage.Store
	starter   WorkflowStarter
	taskQueue string
	router    chi.Router
}

// New builds the handler and mounts its routes.
func New(store storage.Store, starter WorkflowStarter, taskQueue string) *Handler {
	h := &Handler{store: store, starter: starter, taskQueue: taskQueue}
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/health", h.health)
	r.Post("/sessions", h.createSession)
	r.Post("/sessions/{sessionID}/runs", h.startRun)
	h.router = r
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	respond(w, http.StatusOK, map[string]string{"status": "ok"})
}

type createSessionRequest struct {
	AgentID string `json:"agent_id"`
	UserID  string `json:"user_id"`
}

func (h *Handler) createSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	agentID, err := uuid.Parse(req.AgentID)
	if err != nil {
		respondError(w, http.StatusBadRequest, "agent_id must be a UUID")
		return
	}
	if req.UserID == "" {
		respondError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	sess, err := h.store.CreateSession(r.Context(), agentID, req.UserID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		respondError(w, http.StatusNotFound, "agent config not found")
		return
	case errors.Is(err, storage.ErrInvalidInput):
		respondError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		log.Error(r.Context(), err, log.KV{K: "msg", V: "create session"})
		respondError(w, http.StatusInternalServerError, "failed to create session")
		return
	}
	respond(w, http.StatusCreated, map[string]string{"session_id": sess.ID.String()})
}

type startRunRequest struct {
	Message string `json:"message"`
}

type startRunResponse struct {
	WorkflowID string `json:"workflow_id"`
	RunID      string `json:"run_id"`
}

func (h *Handler) startRun(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if err := workflow.ValidateSessionID(sessionID); err != nil {
		respondError(w, http.StatusBadRequest, "session id must be a UUID")
		return
	}
	var req startRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Message == "" {
		respondError(w, http.StatusBadRequest, "message is required")
		return
	}

	sid := uuid.MustParse(sessionID)
	if _, err := h.store.GetSession(r.Context(), sid); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respondError(w, http.StatusNotFound, "session not found")
			return
		}
		log.Error(r.Context(), err, log.KV{K: "msg", V: "get session"})
		respondError(w, http.StatusInternalServerError, "failed to load session")
		return
	}

	input := model.AgentWorkflowInput{
		SessionID:   sessionID,
		UserMessage: model.NewUserMessage(req.Message),
	}
	opts := client.StartWorkflowOptions{
		ID:        "agent-run-" + uuid.NewString(),
		TaskQueue: h.taskQueue,
	}
	run, err := h.starter.ExecuteWorkflow(r.Context(), opts, workflow.Name, input)
	if err != nil {
		log.Error(r.Context(), err, log.KV{K: "msg", V: "start workflow"}, log.KV{K: "session_id", V: sessionID})
		respondError(w, http.StatusInternalServerError, "failed to start run")
		return
	}
	log.Info(r.Context(), log.KV{K: "msg", V: "run started"},
		log.KV{K: "session_id", V: sessionID},
		log.KV{K: "workflow_id", V: run.GetID()})
	respond(w, http.StatusAccepted, startRunResponse{WorkflowID: run.GetID(), RunID: run.GetRunID()})
}

func respond(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Encoding a map or small struct cannot fail.
	_ = json.NewEncoder(w).Encode(body)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respond(w, status, map[string]string{"error": msg})
}
