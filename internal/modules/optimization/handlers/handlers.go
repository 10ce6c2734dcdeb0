// Package handlers provides HTTP handlers for portfolio optimization.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aristath/frontier/internal/modules/optimization"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	contentTypeJSON    = "application/json"
	contentTypeMsgpack = "application/msgpack"

	maxBodyBytes = 10 << 20
)

// Optimizer is the part of the optimization service the handlers use.
type Optimizer interface {
	Optimize(ctx context.Context, req optimization.Request) (*optimization.Report, error)
	OptimizeBatch(ctx context.Context, reqs []optimization.Request) ([]optimization.BatchItem, error)
}

// Handler handles optimization HTTP requests
type Handler struct {
	service Optimizer
	log     zerolog.Logger
}

// NewHandler creates a new optimization handler
func NewHandler(service Optimizer, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "optimization").Logger(),
	}
}

type pricePointPayload struct {
	Date     string  `json:"date" msgpack:"date"`
	AdjClose float64 `json:"adj_close" msgpack:"adj_close"`
}

type seriesPayload struct {
	Symbol string              `json:"symbol" msgpack:"symbol"`
	Prices []pricePointPayload `json:"prices" msgpack:"prices"`
}

// OptimizeRequest is the wire form of an optimization request. Dates are
// YYYY-MM-DD or RFC 3339.
type OptimizeRequest struct {
	Symbols      []string        `json:"symbols,omitempty" msgpack:"symbols,omitempty"`
	Series       []seriesPayload `json:"series,omitempty" msgpack:"series,omitempty"`
	Start        string          `json:"start,omitempty" msgpack:"start,omitempty"`
	End          string          `json:"end,omitempty" msgpack:"end,omitempty"`
	MaxWeight    *float64        `json:"max_weight,omitempty" msgpack:"max_weight,omitempty"`
	RiskFreeRate *float64        `json:"risk_free_rate,omitempty" msgpack:"risk_free_rate,omitempty"`
}

// BatchRequest wraps several optimization requests.
type BatchRequest struct {
	Requests []OptimizeRequest `json:"requests" msgpack:"requests"`
}

type envelope struct {
	Data     interface{} `json:"data" msgpack:"data"`
	Metadata metadata    `json:"metadata" msgpack:"metadata"`
}

type metadata struct {
	Timestamp string `json:"timestamp" msgpack:"timestamp"`
	Count     int    `json:"count,omitempty" msgpack:"count,omitempty"`
	Failed    int    `json:"failed,omitempty" msgpack:"failed,omitempty"`
}

type errorResponse struct {
	Error   string   `json:"error" msgpack:"error"`
	Type    string   `json:"type" msgpack:"type"`
	Symbols []string `json:"symbols,omitempty" msgpack:"symbols,omitempty"`
}

// HandleOptimize handles POST /api/optimization/sharpe
func (h *Handler) HandleOptimize(w http.ResponseWriter, r *http.Request) {
	var payload OptimizeRequest
	if err := h.decode(w, r, &payload); err != nil {
		h.writeError(w, r, err)
		return
	}

	req, err := payload.toRequest()
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	report, err := h.service.Optimize(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.write(w, r, http.StatusOK, envelope{
		Data:     report,
		Metadata: metadata{Timestamp: time.Now().Format(time.RFC3339)},
	})
}

// HandleBatch handles POST /api/optimization/batch
// Individual failures are reported per item; the response is 200 as long as
// the batch itself could run.
func (h *Handler) HandleBatch(w http.ResponseWriter, r *http.Request) {
	var payload BatchRequest
	if err := h.decode(w, r, &payload); err != nil {
		h.writeError(w, r, err)
		return
	}
	if len(payload.Requests) == 0 {
		h.writeError(w, r, badRequestError{msg: "requests must not be empty"})
		return
	}

	reqs := make([]optimization.Request, len(payload.Requests))
	for i, p := range payload.Requests {
		req, err := p.toRequest()
		if err != nil {
			h.writeError(w, r, fmt.Errorf("request %d: %w", i, err))
			return
		}
		reqs[i] = req
	}

	items, err := h.service.OptimizeBatch(r.Context(), reqs)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	failed := 0
	for _, item := range items {
		if item.Err != nil {
			failed++
		}
	}

	h.write(w, r, http.StatusOK, envelope{
		Data: items,
		Metadata: metadata{
			Timestamp: time.Now().Format(time.RFC3339),
			Count:     len(items),
			Failed:    failed,
		},
	})
}

func (p OptimizeRequest) toRequest() (optimization.Request, error) {
	req := optimization.Request{
		Symbols:      p.Symbols,
		MaxWeight:    p.MaxWeight,
		RiskFreeRate: p.RiskFreeRate,
	}

	var err error
	if req.Start, err = parseOptionalDate("start", p.Start); err != nil {
		return req, err
	}
	if req.End, err = parseOptionalDate("end", p.End); err != nil {
		return req, err
	}

	for _, s := range p.Series {
		series := optimization.AssetSeries{
			Symbol: strings.ToUpper(strings.TrimSpace(s.Symbol)),
			Points: make([]optimization.PricePoint, len(s.Prices)),
		}
		for i, pt := range s.Prices {
			d, err := parseDate(pt.Date)
			if err != nil {
				return req, badRequestError{msg: fmt.Sprintf("series %s: %v", s.Symbol, err)}
			}
			series.Points[i] = optimization.PricePoint{Date: d, AdjClose: pt.AdjClose}
		}
		req.Series = append(req.Series, series)
	}

	return req, nil
}

func parseOptionalDate(field, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	d, err := parseDate(value)
	if err != nil {
		return time.Time{}, badRequestError{msg: field + ": " + err.Error()}
	}
	return d, nil
}

func parseDate(value string) (time.Time, error) {
	if d, err := time.Parse(time.DateOnly, value); err == nil {
		return d, nil
	}
	d, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", value)
	}
	return d, nil
}

// badRequestError marks malformed request bodies.
type badRequestError struct {
	msg string
}

func (e badRequestError) Error() string { return e.msg }

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v interface{}) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer body.Close()

	var err error
	if isMsgpack(r.Header.Get("Content-Type")) {
		err = msgpack.NewDecoder(body).Decode(v)
	} else {
		dec := json.NewDecoder(body)
		dec.DisallowUnknownFields()
		err = dec.Decode(v)
	}
	if errors.Is(err, io.EOF) {
		return badRequestError{msg: "request body is empty"}
	}
	if err != nil {
		return badRequestError{msg: "invalid request body: " + err.Error()}
	}
	return nil
}

// statusFor maps the optimization error taxonomy to HTTP statuses.
func statusFor(err error) (int, errorResponse) {
	resp := errorResponse{Error: err.Error()}

	var (
		badRequest   badRequestError
		invalidParam optimization.InvalidParameterError
		invalidSer   optimization.InvalidSeriesError
		missing      optimization.MissingSymbolsError
		insufficient optimization.InsufficientDataError
		infeasible   optimization.InfeasibleConstraintsError
		failed       optimization.OptimizationFailedError
		mismatch     optimization.DimensionMismatchError
	)

	switch {
	case errors.As(err, &badRequest):
		resp.Type = "bad_request"
		return http.StatusBadRequest, resp
	case errors.As(err, &invalidParam):
		resp.Type = "invalid_parameter"
		return http.StatusBadRequest, resp
	case errors.As(err, &invalidSer):
		resp.Type = "invalid_series"
		return http.StatusBadRequest, resp
	case errors.As(err, &missing):
		resp.Type = "missing_symbols"
		resp.Symbols = missing.Symbols
		return http.StatusNotFound, resp
	case errors.As(err, &insufficient):
		resp.Type = "insufficient_data"
		return http.StatusUnprocessableEntity, resp
	case errors.As(err, &infeasible):
		resp.Type = "infeasible_constraints"
		return http.StatusUnprocessableEntity, resp
	case errors.As(err, &failed):
		resp.Type = "optimization_failed"
		return http.StatusUnprocessableEntity, resp
	case errors.As(err, &mismatch):
		resp.Type = "dimension_mismatch"
		return http.StatusInternalServerError, resp
	default:
		resp.Type = "internal"
		return http.StatusInternalServerError, resp
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, resp := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.Error().Err(err).Str("path", r.URL.Path).Msg("Optimization request failed")
	} else {
		h.log.Debug().Err(err).Int("status", status).Msg("Rejected optimization request")
	}
	h.write(w, r, status, resp)
}

// write encodes data as MessagePack when the client asks for it, JSON otherwise.
func (h *Handler) write(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	if isMsgpack(r.Header.Get("Accept")) {
		w.Header().Set("Content-Type", contentTypeMsgpack)
		w.WriteHeader(status)
		if err := msgpack.NewEncoder(w).Encode(data); err != nil {
			h.log.Error().Err(err).Msg("Failed to encode MessagePack response")
		}
		return
	}

	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func isMsgpack(header string) bool {
	return strings.Contains(header, contentTypeMsgpack) || strings.Contains(header, "application/x-msgpack")
}
