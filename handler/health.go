package handler

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/mstgnz/telepay/infra/response"
)

// Pinger is anything whose connection can be checked
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles health check requests
type HealthHandler struct {
	keyLoaded   func() bool
	journal     Pinger
	openSearch  bool
	environment string
	version     string
	startTime   time.Time
}

// HealthStatus represents overall service health
type HealthStatus struct {
	Status      string                    `json:"status"`
	Version     string                    `json:"version"`
	Timestamp   time.Time                 `json:"timestamp"`
	Uptime      string                    `json:"uptime"`
	Environment string                    `json:"environment"`
	KeyLoaded   bool                      `json:"key_loaded"`
	Services    map[string]*ServiceHealth `json:"services"`
	System      *SystemHealth             `json:"system"`
}

// ServiceHealth represents individual service health
type ServiceHealth struct {
	Status      string `json:"status"`
	Healthy     bool   `json:"healthy"`
	Description string `json:"description,omitempty"`
	Error       string `json:"error,omitempty"`
}

// SystemHealth represents process resource usage
type SystemHealth struct {
	Alloc      string `json:"alloc"`
	Sys        string `json:"sys"`
	GCRuns     uint32 `json:"gc_runs"`
	GoRoutines int    `json:"goroutines"`
}

// NewHealthHandler creates a new health handler. journal may be nil.
func NewHealthHandler(keyLoaded func() bool, journal Pinger, openSearch bool, environment, version string) *HealthHandler {
	return &HealthHandler{
		keyLoaded:   keyLoaded,
		journal:     journal,
		openSearch:  openSearch,
		environment: environment,
		version:     version,
		startTime:   time.Now(),
	}
}

// CheckHealth reports liveness and whether the service can sign requests
func (h *HealthHandler) CheckHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	health := &HealthStatus{
		Version:     h.version,
		Timestamp:   time.Now().UTC(),
		Uptime:      time.Since(h.startTime).Round(time.Second).String(),
		Environment: h.environment,
		KeyLoaded:   h.keyLoaded != nil && h.keyLoaded(),
		Services:    h.checkServices(ctx),
		System:      checkSystem(),
	}
	health.Status = determineOverallStatus(health)

	_ = response.WriteJSON(w, http.StatusOK, response.Response{
		Code:    http.StatusOK,
		Success: true,
		Message: fmt.Sprintf("Service is %s", health.Status),
		Data:    health,
	})
}

func (h *HealthHandler) checkServices(ctx context.Context) map[string]*ServiceHealth {
	services := map[string]*ServiceHealth{}

	services["journal"] = &ServiceHealth{Status: "not_configured", Description: "SQLite call journal"}
	if h.journal != nil {
		if err := h.journal.Ping(ctx); err != nil {
			services["journal"].Status = "unhealthy"
			services["journal"].Error = err.Error()
		} else {
			services["journal"].Status = "healthy"
			services["journal"].Healthy = true
		}
	}

	services["opensearch"] = &ServiceHealth{Status: "not_configured", Description: "OpenSearch log shipping"}
	if h.openSearch {
		services["opensearch"].Status = "enabled"
		services["opensearch"].Healthy = true
	}

	return services
}

// determineOverallStatus is degraded when signing is impossible or a configured dependency fails
func determineOverallStatus(health *HealthStatus) string {
	if !health.KeyLoaded {
		return "degraded"
	}
	for _, s := range health.Services {
		if s.Status == "unhealthy" {
			return "degraded"
		}
	}
	return "healthy"
}

func checkSystem() *SystemHealth {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	return &SystemHealth{
		Alloc:      formatBytes(memStats.Alloc),
		Sys:        formatBytes(memStats.Sys),
		GCRuns:     memStats.NumGC,
		GoRoutines: runtime.NumGoroutine(),
	}
}

func formatBytes(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
