package sheetsync

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Router returns the sync sub-router. The trigger endpoint is wrapped with
// requireOperator when non-nil; logs and status are open.
func Router(scheduler *Scheduler, source TabularSource, logs *LogStore, requireOperator func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	r.Get("/logs", ListLogsHandler(logs))
	r.Get("/status", StatusHandler(source, logs))

	r.Group(func(g chi.Router) {
		if requireOperator != nil {
			g.Use(requireOperator)
		}
		g.Post("/{direction}", TriggerHandler(scheduler))
	})

	return r
}
