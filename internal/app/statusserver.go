package app

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/vk/pipewright/internal/scheduler"
)

// statusTable is the live per-instance state view served while a run is in
// flight. The scheduler's OnTransition hook feeds it from the event loop.
type statusTable struct {
	mu     sync.RWMutex
	states map[string]string
}

func newStatusTable() *statusTable {
	return &statusTable{states: make(map[string]string)}
}

func (t *statusTable) set(id string, state scheduler.State) {
	t.mu.Lock()
	t.states[id] = state.String()
	t.mu.Unlock()
}

func (t *statusTable) snapshot() map[string]string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]string, len(t.states))
	for id, st := range t.states {
		out[id] = st
	}
	return out
}

// statusRouter builds the HTTP surface: /health and the live /status table.
func statusRouter(table *statusTable) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "OK")
	})
	r.Get("/status", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(table.snapshot())
	})
	return r
}

// startStatusServer serves the status router in the background.
func (a *App) startStatusServer(port int) {
	a.logger.Debug("Configuring status server.")
	r := statusRouter(a.status)

	addr := fmt.Sprintf(":%d", port)
	go func() {
		a.logger.Info("🩺 Status server starting", "address", fmt.Sprintf("http://localhost%s/status", addr))
		if err := http.ListenAndServe(addr, r); err != nil {
			a.logger.Error("Status server failed", "error", err)
		}
	}()
}
