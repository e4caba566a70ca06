package stations

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

// Router serves known stations as JSON:
// GET <prefix> lists all the stations, GET <prefix>/{id} returns a single one.
func (s *Store) Router(prefix string) http.Handler {
	r := chi.NewRouter()

	prefix = strings.TrimSuffix(prefix, "/")

	if prefix == "" {
		s.routes(r)
	} else {
		r.Route(prefix, s.routes)
	}

	return r
}

func (s *Store) routes(r chi.Router) {
	r.Get("/", s.listHandler)
	r.Get("/{id}", s.showHandler)
}

func (s *Store) listHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Snapshot())
}

func (s *Store) showHandler(w http.ResponseWriter, r *http.Request) {
	st, ok := s.Station(chi.URLParam(r, "id"))

	if !ok {
		http.Error(w, "Station not found", http.StatusNotFound)
		return
	}

	writeJSON(w, st)
}

func writeJSON(w http.ResponseWriter, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(payload) // nolint:errcheck
}
