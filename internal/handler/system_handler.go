package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const (
	metricsInterval = 7 * time.Second
	healthTimeout   = 2 * time.Second
)

// HealthCheck checks one dependency.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// SystemHandler serves liveness checks and streams runtime metrics via SSE.
type SystemHandler struct {
	checks     []HealthCheck
	queueDepth func(ctx context.Context) (int64, error)
	uploadDir  string
	startTime  time.Time
	log        zerolog.Logger
}

// NewSystemHandler creates a SystemHandler. queueDepth reports the blob
// cleanup backlog; uploadDir is empty unless the local blob backend is used.
func NewSystemHandler(checks []HealthCheck, queueDepth func(ctx context.Context) (int64, error), uploadDir string, log zerolog.Logger) *SystemHandler {
	return &SystemHandler{
		checks:     checks,
		queueDepth: queueDepth,
		uploadDir:  uploadDir,
		startTime:  time.Now(),
		log:        log.With().Str("component", "system_handler").Logger(),
	}
}

// Health godoc
// GET /health
// Reports 200 when every dependency answers, 503 otherwise.
func (h *SystemHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	status := http.StatusOK
	deps := make(map[string]string, len(h.checks))
	for _, hc := range h.checks {
		if err := hc.Check(ctx); err != nil {
			h.log.Warn().Err(err).Str("dependency", hc.Name).Msg("Health check failed")
			deps[hc.Name] = "down"
			status = http.StatusServiceUnavailable
			continue
		}
		deps[hc.Name] = "up"
	}

	state := "ok"
	if status != http.StatusOK {
		state = "degraded"
	}
	c.JSON(status, gin.H{"status": state, "dependencies": deps})
}

// ---------- SSE Endpoint ----------

type systemMetrics struct {
	Timestamp int64  `json:"timestamp"`
	Uptime    string `json:"uptime"`

	// Go Application
	Goroutines int    `json:"goroutines"`
	HeapAlloc  uint64 `json:"heap_alloc"`
	HeapSys    uint64 `json:"heap_sys"`
	NumGC      uint32 `json:"num_gc"`
	GoVersion  string `json:"go_version"`
	NumCPU     int    `json:"num_cpu"`

	// Local blob storage, when enabled
	UploadDiskUsedBytes  uint64 `json:"upload_disk_used_bytes,omitempty"`
	UploadDiskTotalBytes uint64 `json:"upload_disk_total_bytes,omitempty"`

	// Worker Queues
	QueueBlobCleanup int64 `json:"queue_blob_cleanup"`
}

// SystemMetricsSSE godoc
// GET /api/v1/admin/system/metrics
func (h *SystemHandler) SystemMetricsSSE(c *gin.Context) {
	reqCtx := c.Request.Context()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	h.log.Info().Msg("Admin connected to system metrics SSE")

	ticker := time.NewTicker(metricsInterval)
	defer ticker.Stop()

	// Send immediately on connect, then every tick
	h.writeMetrics(c)

	for {
		select {
		case <-reqCtx.Done():
			h.log.Info().Msg("Admin disconnected from system metrics SSE")
			return
		case <-ticker.C:
			h.writeMetrics(c)
		}
	}
}

func (h *SystemHandler) writeMetrics(c *gin.Context) {
	m := h.collect(c.Request.Context())
	data, err := json.Marshal(m)
	if err != nil {
		return
	}
	c.Writer.Write([]byte("data: "))
	c.Writer.Write(data)
	c.Writer.Write([]byte("\n\n"))
	c.Writer.Flush()
}

func (h *SystemHandler) collect(ctx context.Context) systemMetrics {
	m := systemMetrics{
		Timestamp: time.Now().Unix(),
		Uptime:    formatDuration(time.Since(h.startTime)),
		GoVersion: runtime.Version(),
		NumCPU:    runtime.NumCPU(),
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	m.Goroutines = runtime.NumGoroutine()
	m.HeapAlloc = ms.HeapAlloc
	m.HeapSys = ms.Sys
	m.NumGC = ms.NumGC

	if h.uploadDir != "" {
		if total, free, err := readDisk(h.uploadDir); err == nil && total > 0 {
			m.UploadDiskTotalBytes = total
			m.UploadDiskUsedBytes = total - free
		}
	}

	if h.queueDepth != nil {
		qctx, cancel := context.WithTimeout(ctx, healthTimeout)
		m.QueueBlobCleanup, _ = h.queueDepth(qctx)
		cancel()
	}
	return m
}

// readDisk returns the size and free space of the filesystem holding path.
func readDisk(path string) (total, free uint64, err error) {
	var st syscall.Statfs_t
	if err := syscall.Statfs(path, &st); err != nil {
		return 0, 0, err
	}
	return st.Blocks * uint64(st.Bsize), st.Bavail * uint64(st.Bsize), nil
}

// ---------- Helpers ----------

func formatDuration(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm %ds", days, hours, minutes, seconds)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	}
	return fmt.Sprintf("%dm %ds", minutes, seconds)
}
