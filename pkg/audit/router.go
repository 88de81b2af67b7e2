package audit

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Router creates a chi.Router for the audit API. The audit trail names
// operators and recipients, so when requireOperator is non-nil both
// endpoints sit behind it.
func Router(store *Store, requireOperator func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	listHandler := ListEventsHandler(store)
	getHandler := GetEventHandler(store)

	if requireOperator != nil {
		r.Get("/events", requireOperator(listHandler).ServeHTTP)
		r.Get("/events/{eventId}", requireOperator(getHandler).ServeHTTP)
	} else {
		r.Get("/events", listHandler)
		r.Get("/events/{eventId}", getHandler)
	}

	return r
}
