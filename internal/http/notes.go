package http

import (
	"errors"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"safescribe/notes-api/internal/auth"
	"safescribe/notes-api/internal/model"
	"safescribe/notes-api/internal/repository"
)

const maxTitleLength = 120

type noteRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

func (req noteRequest) validate() string {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return "title is required"
	}
	if utf8.RuneCountInString(title) > maxTitleLength {
		return "title must have at most 120 characters"
	}
	if strings.TrimSpace(req.Content) == "" {
		return "content is required"
	}
	return ""
}

type noteResponse struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	UserID    string    `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func mapNoteResponse(note model.Note) noteResponse {
	return noteResponse{
		ID:        note.ID,
		Title:     note.Title,
		Content:   note.Content,
		UserID:    note.UserID,
		CreatedAt: note.CreatedAt.UTC(),
		UpdatedAt: note.UpdatedAt.UTC(),
	}
}

func (s *Server) handleCreateNote(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	var req noteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if msg := req.validate(); msg != "" {
		writeErrorMessage(w, http.StatusBadRequest, "invalid_input", msg)
		return
	}

	now := s.now().UTC()
	note := model.Note{
		ID:        uuid.NewString(),
		Title:     strings.TrimSpace(req.Title),
		Content:   req.Content,
		UserID:    claims.UserID(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateNote(r.Context(), note); err != nil {
		s.requestLogger(r).Error("create note failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusOK, mapNoteResponse(note))
}

func (s *Server) handleGetNote(w http.ResponseWriter, r *http.Request) {
	note, ok := s.loadOwnedNote(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, mapNoteResponse(note))
}

func (s *Server) handleUpdateNote(w http.ResponseWriter, r *http.Request) {
	var req noteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if msg := req.validate(); msg != "" {
		writeErrorMessage(w, http.StatusBadRequest, "invalid_input", msg)
		return
	}

	note, ok := s.loadOwnedNote(w, r)
	if !ok {
		return
	}
	note.Title = strings.TrimSpace(req.Title)
	note.Content = req.Content
	note.UpdatedAt = s.now().UTC()
	if err := s.store.UpdateNote(r.Context(), note); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "note_not_found")
			return
		}
		s.requestLogger(r).Error("update note failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "note updated",
		"note":    mapNoteResponse(note),
	})
}

func (s *Server) handleDeleteNote(w http.ResponseWriter, r *http.Request) {
	noteID := chi.URLParam(r, "noteID")
	if err := s.store.DeleteNote(r.Context(), noteID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "note_not_found")
			return
		}
		s.requestLogger(r).Error("delete note failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "note deleted"})
}

// loadOwnedNote fetches the note named in the path and checks that the caller
// owns it or is an Admin. On failure it has already written the response.
func (s *Server) loadOwnedNote(w http.ResponseWriter, r *http.Request) (model.Note, bool) {
	claims := claimsFromContext(r.Context())
	note, err := s.store.GetNote(r.Context(), chi.URLParam(r, "noteID"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "note_not_found")
			return model.Note{}, false
		}
		s.requestLogger(r).Error("load note failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "server_error")
		return model.Note{}, false
	}
	if !canAccessNote(claims, note) {
		writeError(w, http.StatusForbidden, "forbidden")
		return model.Note{}, false
	}
	return note, true
}

func canAccessNote(claims *auth.Claims, note model.Note) bool {
	if claims == nil {
		return false
	}
	return claims.Role == model.RoleAdmin || note.UserID == claims.UserID()
}
