package system

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

type Handler struct {
	version string
	log     *zap.SugaredLogger
}

func NewHandler(version string, log *zap.SugaredLogger) *Handler {
	return &Handler{version: version, log: log}
}

// Version handles GET /api/version.
func (h *Handler) Version(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"version": h.version})
}

type logRequest struct {
	Level    string        `json:"level"`
	Context  string        `json:"context,omitempty"`
	Messages []interface{} `json:"messages"`
}

// ForwardLogs handles POST /api/logs: client-side log lines are forwarded to
// the process-wide logger. 400 on bad payloads, 204 on success.
func (h *Handler) ForwardLogs(w http.ResponseWriter, r *http.Request) {
	var req logRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid log payload", http.StatusBadRequest)
		return
	}
	if req.Level == "" || len(req.Messages) == 0 {
		http.Error(w, "log payload requires level and messages", http.StatusBadRequest)
		return
	}

	entry := h.log.With("source", "client", "context", req.Context)
	switch req.Level {
	case "error":
		entry.Errorw("client log", "messages", req.Messages)
	case "warn":
		entry.Warnw("client log", "messages", req.Messages)
	case "debug":
		entry.Debugw("client log", "messages", req.Messages)
	default:
		entry.Infow("client log", "messages", req.Messages)
	}

	w.WriteHeader(http.StatusNoContent)
}
