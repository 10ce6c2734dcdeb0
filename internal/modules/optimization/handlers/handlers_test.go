package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aristath/frontier/internal/modules/optimization"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

type stubOptimizer struct {
	err      error
	received []optimization.Request
}

func (s *stubOptimizer) Optimize(_ context.Context, req optimization.Request) (*optimization.Report, error) {
	s.received = append(s.received, req)
	if s.err != nil {
		return nil, s.err
	}
	return &optimization.Report{ID: "stub"}, nil
}

func (s *stubOptimizer) OptimizeBatch(_ context.Context, reqs []optimization.Request) ([]optimization.BatchItem, error) {
	s.received = append(s.received, reqs...)
	items := make([]optimization.BatchItem, len(reqs))
	for i := range reqs {
		items[i].Index = i
		if i%2 == 1 {
			items[i].Err = errors.New("boom")
			items[i].Error = "boom"
		} else {
			items[i].Report = &optimization.Report{ID: fmt.Sprintf("r%d", i)}
		}
	}
	return items, nil
}

func newRouter(h *Handler) chi.Router {
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r
}

// seriesJSON builds two assets where A drifts up faster than B.
func seriesJSON(days int) []seriesPayload {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	a := seriesPayload{Symbol: "A"}
	b := seriesPayload{Symbol: "B"}
	pa, pb := 100.0, 100.0
	for i := 0; i < days; i++ {
		d := start.AddDate(0, 0, i).Format(time.DateOnly)
		a.Prices = append(a.Prices, pricePointPayload{Date: d, AdjClose: pa})
		b.Prices = append(b.Prices, pricePointPayload{Date: d, AdjClose: pb})
		pa *= math.Exp(0.001 + 0.01*[]float64{1, -1, 1, -1}[i%4])
		pb *= math.Exp(0.0005 + 0.01*[]float64{1, 1, -1, -1}[i%4])
	}
	return []seriesPayload{a, b}
}

func postJSON(t *testing.T, router http.Handler, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHandleOptimize_WithService(t *testing.T) {
	svc := optimization.NewService(nil, optimization.StaticRiskFreeRate(0.02), 0.7, 1, zerolog.Nop())
	router := newRouter(NewHandler(svc, zerolog.Nop()))

	rec := postJSON(t, router, "/optimization/sharpe", OptimizeRequest{Series: seriesJSON(253)})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp struct {
		Data struct {
			ID           string  `json:"id"`
			RiskFreeRate float64 `json:"risk_free_rate"`
			Allocation   struct {
				Weights []struct {
					Symbol string  `json:"symbol"`
					Weight float64 `json:"weight"`
				} `json:"weights"`
				SharpeRatio float64 `json:"sharpe_ratio"`
			} `json:"allocation"`
			Uniform struct {
				SharpeRatio float64 `json:"sharpe_ratio"`
			} `json:"uniform"`
		} `json:"data"`
		Metadata struct {
			Timestamp string `json:"timestamp"`
		} `json:"metadata"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.NotEmpty(t, resp.Data.ID)
	assert.NotEmpty(t, resp.Metadata.Timestamp)
	assert.Equal(t, 0.02, resp.Data.RiskFreeRate)
	require.Len(t, resp.Data.Allocation.Weights, 2)
	assert.Equal(t, "A", resp.Data.Allocation.Weights[0].Symbol)
	assert.Greater(t, resp.Data.Allocation.Weights[0].Weight, resp.Data.Allocation.Weights[1].Weight)
	assert.Greater(t, resp.Data.Allocation.SharpeRatio, resp.Data.Uniform.SharpeRatio)
}

func TestHandleOptimize_Msgpack(t *testing.T) {
	svc := optimization.NewService(nil, optimization.StaticRiskFreeRate(0.02), 0.7, 1, zerolog.Nop())
	router := newRouter(NewHandler(svc, zerolog.Nop()))

	body, err := msgpack.Marshal(OptimizeRequest{Series: seriesJSON(120)})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/optimization/sharpe", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/msgpack")
	req.Header.Set("Accept", "application/msgpack")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/msgpack", rec.Header().Get("Content-Type"))

	var resp map[string]interface{}
	require.NoError(t, msgpack.Unmarshal(rec.Body.Bytes(), &resp))
	data, ok := resp["data"].(map[string]interface{})
	require.True(t, ok)
	assert.NotEmpty(t, data["id"])
}

func TestHandleOptimize_PassesRequestFields(t *testing.T) {
	stub := &stubOptimizer{}
	router := newRouter(NewHandler(stub, zerolog.Nop()))

	body := `{"symbols":["spy","bnd"],"start":"2020-01-02","end":"2024-06-30T00:00:00Z","max_weight":0.5,"risk_free_rate":0.04}`
	req := httptest.NewRequest(http.MethodPost, "/optimization/sharpe", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, stub.received, 1)
	got := stub.received[0]
	assert.Equal(t, []string{"spy", "bnd"}, got.Symbols)
	assert.Equal(t, time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC), got.Start)
	assert.Equal(t, 2024, got.End.Year())
	require.NotNil(t, got.MaxWeight)
	assert.Equal(t, 0.5, *got.MaxWeight)
	require.NotNil(t, got.RiskFreeRate)
	assert.Equal(t, 0.04, *got.RiskFreeRate)
}

func TestHandleOptimize_BadRequests(t *testing.T) {
	router := newRouter(NewHandler(&stubOptimizer{}, zerolog.Nop()))

	tests := []struct {
		name string
		body string
	}{
		{"empty body", ""},
		{"malformed json", "{"},
		{"unknown field", `{"tickers":["SPY"]}`},
		{"bad start date", `{"symbols":["SPY"],"start":"last year"}`},
		{"bad point date", `{"series":[{"symbol":"A","prices":[{"date":"soon","adj_close":1}]}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/optimization/sharpe", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)

			var resp errorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, "bad_request", resp.Type)
		})
	}
}

func TestHandleOptimize_ErrorMapping(t *testing.T) {
	tests := []struct {
		err      error
		status   int
		respType string
	}{
		{optimization.InvalidParameterError{Field: "risk-free rate"}, http.StatusBadRequest, "invalid_parameter"},
		{optimization.InvalidSeriesError{Symbol: "A", Message: "duplicate symbol"}, http.StatusBadRequest, "invalid_series"},
		{optimization.MissingSymbolsError{Symbols: []string{"XXX"}}, http.StatusNotFound, "missing_symbols"},
		{optimization.InsufficientDataError{Rows: 1, Assets: 2}, http.StatusUnprocessableEntity, "insufficient_data"},
		{optimization.InfeasibleConstraintsError{MaxWeight: 0.1, Assets: 3}, http.StatusUnprocessableEntity, "infeasible_constraints"},
		{optimization.OptimizationFailedError{Reason: "volatility is 0"}, http.StatusUnprocessableEntity, "optimization_failed"},
		{optimization.DimensionMismatchError{Assets: 2, CovarianceRows: 3, CovarianceCols: 3}, http.StatusInternalServerError, "dimension_mismatch"},
		{fmt.Errorf("failed to get risk-free rate: %w", errors.New("db down")), http.StatusInternalServerError, "internal"},
	}

	for _, tt := range tests {
		t.Run(tt.respType, func(t *testing.T) {
			router := newRouter(NewHandler(&stubOptimizer{err: tt.err}, zerolog.Nop()))

			rec := postJSON(t, router, "/optimization/sharpe", OptimizeRequest{Symbols: []string{"A"}})
			assert.Equal(t, tt.status, rec.Code)

			var resp errorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.respType, resp.Type)
			assert.Equal(t, tt.err.Error(), resp.Error)
		})
	}
}

func TestHandleOptimize_MissingSymbolsListed(t *testing.T) {
	stub := &stubOptimizer{err: optimization.MissingSymbolsError{Symbols: []string{"XXX", "YYY"}}}
	router := newRouter(NewHandler(stub, zerolog.Nop()))

	rec := postJSON(t, router, "/optimization/sharpe", OptimizeRequest{Symbols: []string{"XXX", "YYY"}})

	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []string{"XXX", "YYY"}, resp.Symbols)
}

func TestHandleBatch(t *testing.T) {
	stub := &stubOptimizer{}
	router := newRouter(NewHandler(stub, zerolog.Nop()))

	rec := postJSON(t, router, "/optimization/batch", BatchRequest{Requests: []OptimizeRequest{
		{Symbols: []string{"A", "B"}},
		{Symbols: []string{"C", "D"}},
		{Symbols: []string{"E", "F"}},
	}})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data []struct {
			Index  int `json:"index"`
			Report *struct {
				ID string `json:"id"`
			} `json:"report"`
			Error string `json:"error"`
		} `json:"data"`
		Metadata struct {
			Count  int `json:"count"`
			Failed int `json:"failed"`
		} `json:"metadata"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.Len(t, stub.received, 3)
	require.Len(t, resp.Data, 3)
	assert.Equal(t, 3, resp.Metadata.Count)
	assert.Equal(t, 1, resp.Metadata.Failed)
	assert.Equal(t, "r0", resp.Data[0].Report.ID)
	assert.Nil(t, resp.Data[1].Report)
	assert.Equal(t, "boom", resp.Data[1].Error)
}

func TestHandleBatch_Empty(t *testing.T) {
	router := newRouter(NewHandler(&stubOptimizer{}, zerolog.Nop()))

	rec := postJSON(t, router, "/optimization/batch", BatchRequest{})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
