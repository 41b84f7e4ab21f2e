package handler

import (
	"net/http"

	"github.com/betpoints/platform/internal/infra"
)

// HealthHandler reports whether the store is reachable.
func HealthHandler(check infra.HealthFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := check(r.Context()); err != nil {
			RespondJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "unhealthy",
				"error":  err.Error(),
			})
			return
		}
		RespondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	}
}
