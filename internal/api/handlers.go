package api

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/glowlens/glowlens-reliability/internal/engine"
	"github.com/glowlens/glowlens-reliability/internal/recovery"
	"github.com/glowlens/glowlens-reliability/internal/services"
	"github.com/glowlens/glowlens-reliability/internal/utils"
)

// Handler serves the operator-facing HTTP JSON endpoints: image analysis,
// aggregate stats, the monitoring dashboard, and alert views.
type Handler struct {
	logger   *slog.Logger
	stack    *services.Stack
	pipeline *engine.Pipeline
}

// NewHandler constructs the HTTP handler set.
func NewHandler(logger *slog.Logger, stack *services.Stack, pipeline *engine.Pipeline) *Handler {
	return &Handler{
		logger:   utils.ComponentLogger(logger, "http-api"),
		stack:    stack,
		pipeline: pipeline,
	}
}

// Routes wires the handler onto a fresh mux.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/analyze", h.handleAnalyze)
	mux.HandleFunc("/api/v1/stats", h.handleStats)
	mux.HandleFunc("/api/v1/dashboard", h.handleDashboard)
	mux.HandleFunc("/api/v1/alerts", h.handleAlerts)
	return mux
}

type analyzeRequest struct {
	ImageID string `json:"image_id"`
	Image   string `json:"image"`
}

func (h *Handler) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}
	if h.pipeline == nil {
		writeError(w, http.StatusServiceUnavailable, "pipeline not configured")
		return
	}

	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("decode request: %v", err))
		return
	}
	image, err := base64.StdEncoding.DecodeString(req.Image)
	if err != nil {
		writeError(w, http.StatusBadRequest, "image must be base64 encoded")
		return
	}

	report, err := h.pipeline.AnalyzeImage(r.Context(), req.ImageID, image)
	if err != nil {
		status := statusForError(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error("analysis request failed", slog.String("image_id", req.ImageID), slog.Any("error", err))
		}
		writeError(w, status, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, report)
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "GET required")
		return
	}
	writeJSON(w, http.StatusOK, h.stack.ComprehensiveStats())
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "GET required")
		return
	}
	writeJSON(w, http.StatusOK, h.stack.MonitoringDashboard())
}

func (h *Handler) handleAlerts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "GET required")
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"active": h.stack.ActiveAlerts(),
		"recent": h.stack.RecentAlerts(limit),
	})
}

// statusForError maps the recovery error taxonomy onto HTTP status codes.
func statusForError(err error) int {
	var invalidInput *recovery.InvalidInputError
	if errors.As(err, &invalidInput) {
		return http.StatusBadRequest
	}
	var circuitOpen *recovery.CircuitOpenError
	if errors.As(err, &circuitOpen) {
		return http.StatusServiceUnavailable
	}
	var unavailable *recovery.UnavailableError
	if errors.As(err, &unavailable) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
