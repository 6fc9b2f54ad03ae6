package check

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"knowledgecheckr/internal/auth"
	"knowledgecheckr/internal/models"
	"knowledgecheckr/internal/schema"
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

// InsertKnowledgeCheck handles POST /api/insert/knowledgeCheck: the single
// entry point both create and edit saves go through. The owner id always
// comes from the session, never from the payload.
func (h *Handler) InsertKnowledgeCheck(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "could not read request body")
		return
	}

	checkDraft, err := schema.SafeParse(body)
	if err != nil {
		writeValidationError(w, err)
		return
	}

	if err := h.service.SaveCheck(userID, checkDraft); err != nil {
		switch {
		case errors.Is(err, ErrForbidden):
			writeMessage(w, http.StatusForbidden, "not allowed to edit this check")
		default:
			var verr *schema.ValidationError
			if errors.As(err, &verr) {
				writeValidationError(w, err)
				return
			}
			writeMessage(w, http.StatusInternalServerError, "failed to save knowledge check")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func writeValidationError(w http.ResponseWriter, err error) {
	var verr *schema.ValidationError
	if errors.As(err, &verr) {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"message": verr.Error(),
			"errors":  verr.Errors,
		})
		return
	}
	writeMessage(w, http.StatusBadRequest, err.Error())
}

func (h *Handler) MyChecks(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())

	checks, err := h.service.MyChecks(userID)
	if err != nil {
		writeMessage(w, http.StatusInternalServerError, "failed to list checks")
		return
	}
	writeJSON(w, http.StatusOK, checks)
}

// Discover handles the public listing with difficulty and search filters.
func (h *Handler) Discover(w http.ResponseWriter, r *http.Request) {
	difficulty := r.URL.Query().Get("difficulty")
	search := r.URL.Query().Get("q")

	checks, err := h.service.Discover(difficulty, search)
	if err != nil {
		writeMessage(w, http.StatusInternalServerError, "failed to list checks")
		return
	}
	writeJSON(w, http.StatusOK, checks)
}

// GetShared resolves a check by its share token for the attempt entry page.
// Correctness flags are always stripped here.
func (h *Handler) GetShared(w http.ResponseWriter, r *http.Request) {
	shareKey := mux.Vars(r)["shareKey"]

	check, err := h.service.GetCheckByShareKey(shareKey)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			writeMessage(w, http.StatusNotFound, "knowledge check not found")
			return
		}
		writeMessage(w, http.StatusInternalServerError, "failed to load check")
		return
	}

	questions := make([]models.QuestionDTO, len(check.Questions))
	for i, q := range check.Questions {
		questions[i] = q.ToDTO(false)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"check":     check.ToSummaryDTO(),
		"questions": questions,
	})
}

// GetForEditing returns the full check, correctness flags included, for
// owners and collaborators.
func (h *Handler) GetForEditing(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())
	checkID := mux.Vars(r)["checkID"]

	check, err := h.service.GetCheckForEditing(userID, checkID)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			writeMessage(w, http.StatusNotFound, "knowledge check not found")
		case errors.Is(err, ErrForbidden):
			writeMessage(w, http.StatusForbidden, "not allowed to edit this check")
		default:
			writeMessage(w, http.StatusInternalServerError, "failed to load check")
		}
		return
	}
	writeJSON(w, http.StatusOK, check)
}

func (h *Handler) DeleteCheck(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())
	checkID := mux.Vars(r)["checkID"]

	deleted, err := h.service.DeleteCheck(userID, checkID)
	if err != nil {
		writeMessage(w, http.StatusInternalServerError, "failed to delete check")
		return
	}
	if !deleted {
		writeMessage(w, http.StatusNotFound, "knowledge check not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

type addCategoryRequest struct {
	Name           string  `json:"name"`
	PrerequisiteID *string `json:"prerequisite_id,omitempty"`
}

func (h *Handler) AddCategory(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())
	checkID := mux.Vars(r)["checkID"]

	var req addCategoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		writeMessage(w, http.StatusBadRequest, "category name required")
		return
	}

	id, err := h.service.AddCategory(userID, checkID, req.Name, req.PrerequisiteID)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			writeMessage(w, http.StatusNotFound, "knowledge check not found")
		case errors.Is(err, ErrForbidden):
			writeMessage(w, http.StatusForbidden, "not allowed to edit this check")
		default:
			writeMessage(w, http.StatusInternalServerError, "failed to add category")
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id})
}
