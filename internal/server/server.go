// Package server exposes the ops HTTP surface: GET /healthz for liveness
// probes and GET /status for per-marketplace checkpoint visibility.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"aptos-nft-indexer/internal/repository"
)

// StatusStore is the narrow capability the status handler needs.
type StatusStore interface {
	AllProcessorStatuses(ctx context.Context) ([]repository.ProcessorStatusRow, error)
}

// New builds the router. Handlers are thin: they translate a Store call
// into JSON and never touch the pipeline directly.
func New(store StatusStore) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", handleHealthz).Methods(http.MethodGet)
	r.HandleFunc("/status", handleStatus(store)).Methods(http.MethodGet)
	return r
}

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleStatus(store StatusStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		statuses, err := store.AllProcessorStatuses(ctx)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(statuses); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}
