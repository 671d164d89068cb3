// Package fleet exposes live vehicle status over HTTP.
package fleet

import (
	"encoding/json"
	"net/http"

	"github.com/tyneline/dispatch/core/fleetstatus"
)

// NewStatusHandler returns an HTTP handler exposing fleet status via
// GET /api/fleet/status. type_id, depot and status narrow the listing.
func NewStatusHandler(store fleetstatus.Store) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		f := fleetstatus.Filter{
			TypeID: r.URL.Query().Get("type_id"),
			Depot:  r.URL.Query().Get("depot"),
			Status: r.URL.Query().Get("status"),
		}
		entries := store.List(f)
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(entries); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	})
}
