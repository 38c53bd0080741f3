package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/davidbz/codeassist/internal/config"
	"github.com/davidbz/codeassist/internal/domain"
	"github.com/davidbz/codeassist/internal/observability"
	"github.com/davidbz/codeassist/internal/scheduler"
)

// SessionHeader carries the editor session; a newer request from the same
// session supersedes the one still running.
const SessionHeader = "X-Session-Id"

// Handler handles HTTP requests.
type Handler struct {
	service  *domain.CompletionService
	executor *scheduler.Executor
	history  *domain.HistoryLog
	assist   *config.AssistConfig
}

// NewHandler creates a new HTTP handler (DI constructor).
func NewHandler(
	service *domain.CompletionService,
	executor *scheduler.Executor,
	history *domain.HistoryLog,
	assist *config.AssistConfig,
) *Handler {
	return &Handler{
		service:  service,
		executor: executor,
		history:  history,
		assist:   assist,
	}
}

// AssistRequest is the body of POST /v1/assist.
type AssistRequest struct {
	Action   string          `json:"action"`
	Prompt   string          `json:"prompt"`
	Code     string          `json:"code"`
	Settings SettingsPayload `json:"settings"`
}

// SettingsPayload carries optional generation settings; omitted fields use defaults.
type SettingsPayload struct {
	Model       string   `json:"model,omitempty"`
	MaxTokens   *int     `json:"max_tokens,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	Stream      *bool    `json:"stream,omitempty"`
}

// AssistResponse is the successful body of POST /v1/assist.
type AssistResponse struct {
	Action string `json:"action"`
	Model  string `json:"model"`
	Output string `json:"output"`
}

// ErrorResponse is the body returned for failed requests.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HandleAssist runs one UI action against the completion service.
func (h *Handler) HandleAssist(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// Early validation.
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req AssistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	if req.Prompt == "" {
		http.Error(w, "prompt is required", http.StatusBadRequest)
		return
	}

	if req.Action == "" {
		req.Action = string(domain.ActionComplete)
	}

	settings := h.resolveSettings(req.Settings)
	sessionID := r.Header.Get(SessionHeader)

	ctx = observability.WithSessionID(ctx, sessionID)
	ctx = observability.WithModel(ctx, settings.Model)

	logger := observability.FromContext(ctx)
	logger.Info("assist request received",
		observability.String("action", req.Action),
		observability.Bool("stream", settings.Stream),
		observability.Float64("temperature", settings.Temperature),
		observability.Int("code_length", len(req.Code)),
	)

	var output string
	execErr := h.executor.Do(ctx, sessionID, func(taskCtx context.Context) error {
		text, err := h.service.Request(taskCtx, domain.Action(req.Action), req.Prompt, req.Code, settings)
		output = text
		return err
	})

	if execErr != nil {
		rendered := domain.RenderError(execErr)
		h.history.Append(req.Action, req.Prompt, rendered)

		status := statusFor(execErr)
		logger.Warn("assist request failed",
			observability.Int("status", status),
			observability.Error(execErr))
		writeJSON(ctx, w, status, ErrorResponse{Error: rendered})
		return
	}

	h.history.Append(req.Action, req.Prompt, output)

	writeJSON(ctx, w, http.StatusOK, AssistResponse{
		Action: req.Action,
		Model:  settings.Model,
		Output: output,
	})
}

// HandleHistory returns the bounded session history, oldest first.
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(r.Context(), w, http.StatusOK, map[string]interface{}{
		"records": h.history.Records(),
	})
}

// HandleModels lists the models offered to the UI.
func (h *Handler) HandleModels(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(r.Context(), w, http.StatusOK, map[string]interface{}{
		"models":  h.assist.Models,
		"default": h.assist.DefaultSettings(),
	})
}

// HandleHealth handles health check requests.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(r.Context(), w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

func (h *Handler) resolveSettings(payload SettingsPayload) domain.Settings {
	settings := h.assist.DefaultSettings()

	if payload.Model != "" {
		settings.Model = payload.Model
	}
	if payload.MaxTokens != nil {
		settings.MaxTokens = *payload.MaxTokens
	}
	if payload.Temperature != nil {
		settings.Temperature = *payload.Temperature
	}
	if payload.Stream != nil {
		settings.Stream = *payload.Stream
	}

	return settings
}

// statusFor maps a failed action onto an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, scheduler.ErrSuperseded):
		return http.StatusConflict
	case errors.Is(err, scheduler.ErrShutdown), errors.Is(err, domain.ErrNotConfigured):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, domain.ErrTransient), errors.Is(err, domain.ErrRetriesExhausted):
		return http.StatusBadGateway
	case errors.Is(err, domain.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrFatal):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		// Already written status, can't change it, just log.
		observability.FromContext(ctx).Error("failed to encode response", observability.Error(err))
	}
}
