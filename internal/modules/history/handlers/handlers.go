// Package handlers provides HTTP handlers for the stored price history.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/aristath/frontier/internal/modules/history"
	"github.com/rs/zerolog"
)

// Store is the read side of the history store
type Store interface {
	Symbols(ctx context.Context) ([]history.SymbolSummary, error)
	LatestRate(ctx context.Context, series string) (history.RatePoint, error)
}

// Handler handles history HTTP requests
type Handler struct {
	store Store
	log   zerolog.Logger
}

// NewHandler creates a new history handler
func NewHandler(store Store, log zerolog.Logger) *Handler {
	return &Handler{
		store: store,
		log:   log.With().Str("handler", "history").Logger(),
	}
}

// HandleGetSymbols handles GET /api/history/symbols
func (h *Handler) HandleGetSymbols(w http.ResponseWriter, r *http.Request) {
	symbols, err := h.store.Symbols(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list symbols")
		http.Error(w, "Failed to list symbols", http.StatusInternalServerError)
		return
	}
	if symbols == nil {
		symbols = []history.SymbolSummary{}
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": symbols,
		"metadata": map[string]interface{}{
			"count":     len(symbols),
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleGetLatestRate handles GET /api/history/rates/{series}
func (h *Handler) HandleGetLatestRate(w http.ResponseWriter, r *http.Request, series string) {
	point, err := h.store.LatestRate(r.Context(), strings.ToUpper(series))
	if errors.Is(err, history.ErrNoRate) {
		http.Error(w, "No observations for series "+series, http.StatusNotFound)
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("series", series).Msg("Failed to get latest rate")
		http.Error(w, "Failed to get rate", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"series":  strings.ToUpper(series),
			"date":    point.Date.Format(time.DateOnly),
			"percent": point.Value,
			"decimal": point.Value / 100,
		},
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
