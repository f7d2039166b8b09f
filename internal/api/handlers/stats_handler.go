package handlers

import (
	"net/http"
	"runtime"
	"time"

	"github.com/isdelr/bidhall/internal/api/respond"
	ws "github.com/isdelr/bidhall/internal/websocket"
	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v3/mem"
)

// StatsHandler reports room occupancy and host resource usage.
type StatsHandler struct {
	hub     *ws.Hub
	started time.Time
}

// NewStatsHandler creates a new StatsHandler.
func NewStatsHandler(hub *ws.Hub) *StatsHandler {
	return &StatsHandler{hub: hub, started: time.Now()}
}

// Stats is the body of GET /stats.
type Stats struct {
	Rooms         int     `json:"rooms"`
	Viewers       int     `json:"viewers"`
	Goroutines    int     `json:"goroutines"`
	UptimeSeconds int64   `json:"uptime_seconds"`
	MemoryUsedMB  uint64  `json:"memory_used_mb,omitempty"`
	MemoryTotalMB uint64  `json:"memory_total_mb,omitempty"`
	MemoryPercent float64 `json:"memory_percent,omitempty"`
}

// Get handles GET /stats.
func (h *StatsHandler) Get(w http.ResponseWriter, r *http.Request) {
	rooms, viewers := h.hub.Stats()
	stats := Stats{
		Rooms:         rooms,
		Viewers:       viewers,
		Goroutines:    runtime.NumGoroutine(),
		UptimeSeconds: int64(time.Since(h.started).Seconds()),
	}

	// Host memory is best effort; some sandboxes hide /proc.
	if vm, err := mem.VirtualMemoryWithContext(r.Context()); err == nil {
		stats.MemoryUsedMB = vm.Used / 1024 / 1024
		stats.MemoryTotalMB = vm.Total / 1024 / 1024
		stats.MemoryPercent = vm.UsedPercent
	} else {
		log.Debug().Err(err).Msg("Failed to read host memory")
	}

	respond.JSON(w, http.StatusOK, stats)
}

// Health handles GET /healthz.
func (h *StatsHandler) Health(w http.ResponseWriter, r *http.Request) {
	respond.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
