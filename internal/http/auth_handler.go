package http

import (
	"net/http"

	"github.com/zuhaib446/nayab-gemstone/internal/auth"
)

// GET /api/v1/auth/me
func Me(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")
	id, ok := auth.FromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthenticated", "not signed in")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"user": id})
}
