package asset

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Router creates a chi.Router for the asset CRUD API. When requireOperator
// is non-nil, mutating endpoints are wrapped with it.
func Router(store *Store, checkouts *CheckoutStore, requireOperator func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	listHandler := ListAssetsHandler(store)
	createHandler := CreateAssetHandler(store)
	getHandler := GetAssetHandler(store, checkouts)
	patchHandler := PatchAssetHandler(store)
	searchHandler := SearchAssetsHandler(store)

	r.Get("/", listHandler)
	r.Get("/search", searchHandler)
	r.Get("/{tag}", getHandler)

	if requireOperator != nil {
		r.Post("/", requireOperator(createHandler).ServeHTTP)
		r.Patch("/{tag}", requireOperator(patchHandler).ServeHTTP)
	} else {
		r.Post("/", createHandler)
		r.Patch("/{tag}", patchHandler)
	}

	return r
}
