package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/recipebox/recipebox/internal/auth"
)

// ownedHandler carries what every owner-scoped resource handler needs:
// the requesting user and the {id} path parameter.
type ownedHandler struct {
	logger *slog.Logger
}

// owner returns the authenticated user id, writing 401 when absent.
func (h ownedHandler) owner(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication credentials were not provided")
		return 0, false
	}
	return id, true
}

// target resolves the owner and the {id} path parameter. A malformed id
// is reported as 404 like any id the owner cannot see.
func (h ownedHandler) target(w http.ResponseWriter, r *http.Request) (owner, id int64, ok bool) {
	owner, ok = h.owner(w, r)
	if !ok {
		return 0, 0, false
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "not found")
		return 0, 0, false
	}
	return owner, id, true
}

func (h ownedHandler) fail(w http.ResponseWriter, err error) {
	handleServiceError(w, h.logger, err)
}

// queryFlag reports whether a query flag is set: any non-zero integer or "true".
func queryFlag(r *http.Request, name string) bool {
	raw := r.URL.Query().Get(name)
	if n, err := strconv.Atoi(raw); err == nil {
		return n != 0
	}
	b, err := strconv.ParseBool(raw)
	return err == nil && b
}
