package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aristath/frontier/internal/database"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSystemHandlers_HandleSystemStats(t *testing.T) {
	db, err := database.New(database.Config{
		Path: "file:" + t.Name() + "?mode=memory&cache=shared",
		Name: "history",
	})
	require.NoError(t, err)
	defer db.Close()

	h := NewSystemHandlers(zerolog.Nop(), db)

	rec := httptest.NewRecorder()
	h.HandleSystemStats(rec, httptest.NewRequest(http.MethodGet, "/api/system/stats", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp SystemStatsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.GreaterOrEqual(t, resp.UptimeHours, 0.0)
	assert.Greater(t, resp.Goroutines, 0)
	assert.NotEmpty(t, resp.Timestamp)
	require.NotNil(t, resp.HistoryDB)
	assert.True(t, resp.HistoryDB.Healthy)
}

func TestSystemHandlers_WithoutDatabase(t *testing.T) {
	h := NewSystemHandlers(zerolog.Nop(), nil)

	rec := httptest.NewRecorder()
	h.HandleSystemStats(rec, httptest.NewRequest(http.MethodGet, "/api/system/stats", nil))

	var resp SystemStatsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Nil(t, resp.HistoryDB)
}
