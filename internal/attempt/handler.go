package attempt

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"knowledgecheckr/internal/auth"
	"knowledgecheckr/internal/models"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}

// sessionResponse is the attempt state sent after every transition: the
// current question (correctness stripped), the index and the bounds.
type sessionResponse struct {
	SessionID string                `json:"session_id"`
	Index     int                   `json:"index"`
	Total     int                   `json:"total"`
	Question  *models.QuestionDTO   `json:"question,omitempty"`
	Deadline  *time.Time            `json:"deadline,omitempty"`
	Finished  bool                  `json:"finished"`
	Result    *models.AttemptResult `json:"result,omitempty"`
}

func toSessionResponse(s *Session) sessionResponse {
	snap := s.Snapshot()
	resp := sessionResponse{
		SessionID: snap.ID,
		Index:     snap.Index,
		Total:     snap.Total,
		Deadline:  snap.Deadline,
		Finished:  snap.Finished,
		Result:    snap.Result,
	}
	if snap.Question != nil {
		dto := snap.Question.ToDTO(false)
		resp.Question = &dto
	}
	return resp
}

// writeAttemptError maps the service error taxonomy onto the explanatory
// pages: not-found, not-possible (access denied with reason) or plain 400.
func writeAttemptError(w http.ResponseWriter, err error) {
	var accessErr *AccessError
	switch {
	case errors.Is(err, ErrNotFound):
		writeMessage(w, http.StatusNotFound, "knowledge check not found")
	case errors.Is(err, ErrSessionNotFound):
		writeMessage(w, http.StatusNotFound, "attempt session not found")
	case errors.Is(err, ErrWrongUser):
		writeMessage(w, http.StatusForbidden, "attempt belongs to another user")
	case errors.As(err, &accessErr):
		writeJSON(w, http.StatusForbidden, map[string]interface{}{
			"message": "attempt not possible",
			"reason":  accessErr.Reason,
		})
	case errors.Is(err, ErrInvalidType):
		writeMessage(w, http.StatusBadRequest, "attempt type must be examination or practice")
	default:
		writeMessage(w, http.StatusInternalServerError, "attempt failed")
	}
}

type startRequest struct {
	Type       string  `json:"type"`
	CategoryID *string `json:"category_id,omitempty"`
}

func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())
	shareKey := mux.Vars(r)["shareKey"]

	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	session, err := h.service.Start(userID, shareKey, req.Type, req.CategoryID)
	if err != nil {
		writeAttemptError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(session))
}

func (h *Handler) Answer(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())
	sessionID := mux.Vars(r)["sessionID"]

	var sub Submission
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil || sub.QuestionID == "" {
		writeMessage(w, http.StatusBadRequest, "submission requires a question id")
		return
	}

	session, err := h.service.Answer(sessionID, userID, sub)
	if err != nil {
		writeAttemptError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(session))
}

func (h *Handler) Next(w http.ResponseWriter, r *http.Request) {
	h.navigate(w, r, h.service.Next)
}

func (h *Handler) Previous(w http.ResponseWriter, r *http.Request) {
	h.navigate(w, r, h.service.Previous)
}

func (h *Handler) navigate(w http.ResponseWriter, r *http.Request, move func(sessionID, userID string) (*Session, error)) {
	userID, _ := auth.UserID(r.Context())
	sessionID := mux.Vars(r)["sessionID"]

	session, err := move(sessionID, userID)
	if err != nil {
		writeAttemptError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(session))
}

func (h *Handler) Finish(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())
	sessionID := mux.Vars(r)["sessionID"]

	result, err := h.service.Finish(sessionID, userID)
	if err != nil {
		writeAttemptError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) Results(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())
	shareKey := mux.Vars(r)["shareKey"]
	attemptType := r.URL.Query().Get("type")
	if attemptType == "" {
		attemptType = models.AttemptExamination
	}

	results, err := h.service.Results(userID, shareKey, attemptType)
	if err != nil {
		writeAttemptError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

// PracticeCategories serves the practice category selection page data.
func (h *Handler) PracticeCategories(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())
	shareKey := mux.Vars(r)["shareKey"]

	statuses, err := h.service.PracticeCategories(userID, shareKey)
	if err != nil {
		writeAttemptError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statuses)
}
