package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all history routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/history", func(r chi.Router) {
		r.Get("/symbols", h.HandleGetSymbols)
		r.Get("/rates/{series}", func(w http.ResponseWriter, r *http.Request) {
			h.HandleGetLatestRate(w, r, chi.URLParam(r, "series"))
		})
	})
}
