package lifecycle

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/schoolops/assettrack/pkg/asset"
)

// Router returns the lifecycle sub-router. The mutating endpoints are
// wrapped with requireOperator when non-nil; the checkout and ticket
// listings are open.
func Router(engine *Engine, checkouts *asset.CheckoutStore, tickets *asset.TicketStore, requireOperator func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	r.Get("/checkouts", ListCheckoutsHandler(checkouts))
	r.Get("/overdue", OverdueCheckoutsHandler(checkouts))
	r.Get("/tickets", ListTicketsHandler(tickets))

	r.Group(func(g chi.Router) {
		if requireOperator != nil {
			g.Use(requireOperator)
		}
		g.Post("/checkout", CheckoutHandler(engine))
		g.Post("/checkin", CheckinHandler(engine))
		g.Post("/loaner-swap", LoanerSwapHandler(engine))
		g.Post("/retire", RetireHandler(engine))
		g.Post("/tickets/{ticketId}", UpdateTicketHandler(engine))
	})

	return r
}
