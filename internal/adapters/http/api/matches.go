package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/okian/duelarena/internal/domain/fault"
)

// MatchHandler serves late result queries.
type MatchHandler struct {
	deps Dependencies
}

// NewMatchHandler creates a new match handler.
func NewMatchHandler(deps Dependencies) *MatchHandler {
	return &MatchHandler{deps: deps}
}

// HandleGetMatch handles GET /matches/{id} requests. Unknown and evicted
// matches are 404.
func (h *MatchHandler) HandleGetMatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, "bad_request", ErrMatchIDRequired)
		return
	}

	res, err := h.deps.Result(r.Context(), id)
	if err != nil {
		if errors.Is(err, fault.ErrNotFound) {
			writeError(w, http.StatusNotFound, fault.CodeOf(err), nil)
			return
		}
		writeError(w, http.StatusInternalServerError, fault.CodeInternal, nil)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
