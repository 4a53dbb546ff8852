package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/okian/tarelay/internal/adapters/repository"
	"github.com/okian/tarelay/internal/domain/view"
)

// HandleState handles GET /state.
func (s *Server) HandleState(w http.ResponseWriter, r *http.Request) {
	var out view.State
	err := s.store.View(r.Context(), func(st *repository.State) error {
		out = view.Project(st)
		return nil
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleMatch handles GET /matches/{id}.
func (s *Server) HandleMatch(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "id")
	id, err := uuid.Parse(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: %q", ErrInvalidMatchID, raw))
		return
	}

	m, err := s.store.Match(r.Context(), raw)
	if errors.Is(err, repository.ErrNotFound) && raw != id.String() {
		m, err = s.store.Match(r.Context(), id.String())
	}
	var out view.Match
	if err == nil {
		err = s.store.View(r.Context(), func(st *repository.State) error {
			out = view.ProjectMatch(st, m)
			return nil
		})
	}
	switch {
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", fmt.Errorf("match %s: %w", id, err))
	case err != nil:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	default:
		writeJSON(w, http.StatusOK, out)
	}
}
