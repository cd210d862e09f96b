package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/oliver-os/conductor/config"
	"github.com/oliver-os/conductor/core"
	"github.com/oliver-os/conductor/distributor"
)

// ============================================================================
// RESPONSE HELPERS
// ============================================================================

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps the error taxonomy onto HTTP status codes: unknown
// resources are 404, malformed input is 400, everything else is 500.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, core.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, core.ErrValidation):
		status = http.StatusBadRequest
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return core.NewValidationError("server", "body", "invalid JSON request body")
	}
	return nil
}

// ============================================================================
// HEALTH AND STATUS
// ============================================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Status())
}

// ============================================================================
// AGENTS
// ============================================================================

type spawnAgentRequest struct {
	AgentType   string                    `json:"agent_type"`
	Supervision *config.SupervisionConfig `json:"supervision,omitempty"`
}

func (s *Server) handleSpawnAgent(w http.ResponseWriter, r *http.Request) {
	var req spawnAgentRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.AgentType == "" {
		writeError(w, core.NewValidationError("server", "agent_type", "agent_type is required"))
		return
	}
	status, err := s.engine.SpawnAgent(r.Context(), req.AgentType, req.Supervision)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, status)
}

func (s *Server) handleListAgents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.ListAgents())
}

func (s *Server) handleGetAgent(w http.ResponseWriter, r *http.Request) {
	status, err := s.engine.GetAgentStatus(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleTerminateAgent(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.TerminateAgent(chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "terminated"})
}

// ============================================================================
// TASKS
// ============================================================================

func (s *Server) handleRunTask(w http.ResponseWriter, r *http.Request) {
	var task distributor.TaskDefinition
	if err := decodeBody(r, &task); err != nil {
		writeError(w, err)
		return
	}
	result := s.engine.RunTask(r.Context(), task)
	status := http.StatusOK
	if !result.Success && result.TaskID == "" {
		// Task was never accepted; surface the validation failure.
		status = http.StatusBadRequest
	}
	writeJSON(w, status, result)
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.ListTasks())
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	progress, err := s.engine.GetTaskProgress(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, progress)
}

// ============================================================================
// WORKFLOWS
// ============================================================================

func (s *Server) handleCreateWorkflow(w http.ResponseWriter, r *http.Request) {
	var cfg config.WorkflowConfig
	if err := decodeBody(r, &cfg); err != nil {
		writeError(w, err)
		return
	}
	def, err := s.engine.CreateWorkflow(cfg)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, def)
}

func (s *Server) handleListWorkflows(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.ListWorkflows())
}

func (s *Server) handleGetWorkflow(w http.ResponseWriter, r *http.Request) {
	def, err := s.engine.GetWorkflow(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, def)
}

func (s *Server) handleExecuteWorkflow(w http.ResponseWriter, r *http.Request) {
	result, err := s.engine.ExecuteWorkflow(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// ============================================================================
// TOOLS
// ============================================================================

type executeToolRequest struct {
	Args map[string]any `json:"args"`
}

func (s *Server) handleListTools(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.ListTools())
}

func (s *Server) handleExecuteTool(w http.ResponseWriter, r *http.Request) {
	var req executeToolRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	result, err := s.engine.ExecuteTool(r.Context(), chi.URLParam(r, "name"), req.Args)
	// Registry-level failures become HTTP errors; backend execution
	// failures come back as a structured {success:false, error} payload.
	if err != nil && (errors.Is(err, core.ErrNotFound) ||
		errors.Is(err, core.ErrValidation) ||
		errors.Is(err, core.ErrBackendNotFound)) {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
