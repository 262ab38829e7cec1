package api

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/nerrad567/gray-logic-mdm/internal/command"
	"github.com/nerrad567/gray-logic-mdm/internal/device"
)

// SystemMetrics represents the complete system metrics response.
type SystemMetrics struct {
	Timestamp     string          `json:"timestamp"`
	Version       string          `json:"version"`
	UptimeSeconds int64           `json:"uptime_seconds"`
	Runtime       RuntimeMetrics  `json:"runtime"`
	WebSocket     WSMetrics       `json:"websocket"`
	MQTT          MQTTMetrics     `json:"mqtt"`
	Push          PushMetrics     `json:"push"`
	Events        EventMetrics    `json:"events"`
	Devices       map[string]int  `json:"devices"`
	Commands      map[string]int  `json:"commands"`
	Database      DatabaseMetrics `json:"database"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// WSMetrics contains WebSocket hub statistics.
type WSMetrics struct {
	ConnectedClients int `json:"connected_clients"`
}

// MQTTMetrics contains MQTT client statistics.
type MQTTMetrics struct {
	Enabled   bool `json:"enabled"`
	Connected bool `json:"connected"`
}

// PushMetrics describes the wake-signal transport.
type PushMetrics struct {
	Mode string `json:"mode"`
}

// EventMetrics contains event bus statistics.
type EventMetrics struct {
	Dropped uint64 `json:"dropped"`
}

// DatabaseMetrics contains database connection pool statistics.
type DatabaseMetrics struct {
	OpenConnections int   `json:"open_connections"`
	InUse           int   `json:"in_use"`
	Idle            int   `json:"idle"`
	WaitCount       int64 `json:"wait_count"`
}

const bytesPerMB = 1024 * 1024

// handleMetrics returns system metrics as JSON.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	m := SystemMetrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / bytesPerMB,
			MemoryTotalMB: float64(memStats.TotalAlloc) / bytesPerMB,
			NumGC:         memStats.NumGC,
		},
		Push: PushMetrics{Mode: s.pushMode},
	}

	if s.hub != nil {
		m.WebSocket.ConnectedClients = s.hub.ClientCount()
	}
	if s.mqtt != nil {
		m.MQTT = MQTTMetrics{Enabled: true, Connected: s.mqtt.IsConnected()}
	}
	if s.events != nil {
		m.Events.Dropped = s.events.Dropped()
	}

	devices, commands, err := s.counts(ctx)
	if err != nil {
		s.writeDomainError(w, err, "failed to collect metrics")
		return
	}
	m.Devices = devices
	m.Commands = commands

	if s.db != nil {
		dbStats := s.db.Stats()
		m.Database = DatabaseMetrics{
			OpenConnections: dbStats.OpenConnections,
			InUse:           dbStats.InUse,
			Idle:            dbStats.Idle,
			WaitCount:       dbStats.WaitCount,
		}
	}

	writeJSON(w, http.StatusOK, m)
}

// handlePrometheus refreshes the device and queue gauges from the store,
// then serves the Prometheus exposition.
func (s *Server) handlePrometheus(w http.ResponseWriter, r *http.Request) {
	devices, commands, err := s.counts(r.Context())
	if err != nil {
		s.logger.Warn("failed to refresh gauges for scrape", "error", err)
	} else {
		s.metrics.SetDeviceCounts(devices)
		s.metrics.SetQueueDepth(commands)
	}
	s.metrics.Handler().ServeHTTP(w, r)
}

// counts returns device and command counts keyed by status name.
func (s *Server) counts(ctx context.Context) (devices, commands map[string]int, err error) {
	byDevice, err := s.devices.Count(ctx)
	if err != nil {
		return nil, nil, err
	}
	byCommand, err := s.commands.Count(ctx)
	if err != nil {
		return nil, nil, err
	}
	return statusCounts(byDevice), statusCounts(byCommand), nil
}

func statusCounts[S device.Status | command.Status](in map[S]int) map[string]int {
	out := make(map[string]int, len(in))
	for k, v := range in {
		out[string(k)] = v
	}
	return out
}
