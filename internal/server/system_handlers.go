package server

import (
	"encoding/json"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/aristath/frontier/internal/database"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// SystemHandlers serves host and database statistics
type SystemHandlers struct {
	log         zerolog.Logger
	startupTime time.Time
	historyDB   *database.DB
}

// NewSystemHandlers creates a new system handlers instance
func NewSystemHandlers(log zerolog.Logger, historyDB *database.DB) *SystemHandlers {
	return &SystemHandlers{
		log:         log.With().Str("component", "system_handlers").Logger(),
		startupTime: time.Now(),
		historyDB:   historyDB,
	}
}

// SystemStatsResponse is returned by GET /api/system/stats
type SystemStatsResponse struct {
	UptimeHours float64         `json:"uptime_hours"`
	CPUPercent  float64         `json:"cpu_percent"`
	RAMPercent  float64         `json:"ram_percent"`
	Goroutines  int             `json:"goroutines"`
	HistoryDB   *DatabaseStatus `json:"history_db,omitempty"`
	Timestamp   string          `json:"timestamp"`
}

// DatabaseStatus describes the history database
type DatabaseStatus struct {
	Path    string  `json:"path"`
	SizeMB  float64 `json:"size_mb"`
	Healthy bool    `json:"healthy"`
	Error   string  `json:"error,omitempty"`
}

// HandleSystemStats returns host resource usage and history database health
func (h *SystemHandlers) HandleSystemStats(w http.ResponseWriter, r *http.Request) {
	cpuPercent, ramPercent := h.getSystemStats()

	response := SystemStatsResponse{
		UptimeHours: time.Since(h.startupTime).Hours(),
		CPUPercent:  cpuPercent,
		RAMPercent:  ramPercent,
		Goroutines:  runtime.NumGoroutine(),
		Timestamp:   time.Now().Format(time.RFC3339),
	}

	if h.historyDB != nil {
		status := &DatabaseStatus{Path: h.historyDB.Path(), Healthy: true}
		if info, err := os.Stat(h.historyDB.Path()); err == nil {
			status.SizeMB = float64(info.Size()) / 1024 / 1024
		}
		if err := h.historyDB.HealthCheck(r.Context()); err != nil {
			status.Healthy = false
			status.Error = err.Error()
		}
		response.HistoryDB = status
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode system stats")
	}
}

func (h *SystemHandlers) getSystemStats() (float64, float64) {
	// 100ms sample keeps the endpoint responsive
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}

	return cpuAvg, memStat.UsedPercent
}
