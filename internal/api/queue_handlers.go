package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Marvin-MM/Luco-Email-sub000/internal/pkg/httputil"
	"github.com/Marvin-MM/Luco-Email-sub000/internal/queue"
)

// QueueStats returns depth counts for every named queue.
func (h *Handlers) QueueStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.queues.AllStats(r.Context())
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, stats)
}

func (h *Handlers) PauseQueue(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if !validQueue(name) {
		httputil.NotFound(w, "unknown queue")
		return
	}
	if err := h.queues.Pause(r.Context(), name); err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"queue": name, "paused": true})
}

func (h *Handlers) ResumeQueue(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if !validQueue(name) {
		httputil.NotFound(w, "unknown queue")
		return
	}
	if err := h.queues.Resume(r.Context(), name); err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"queue": name, "paused": false})
}

func validQueue(name string) bool {
	for _, q := range queue.Names {
		if q == name {
			return true
		}
	}
	return false
}
