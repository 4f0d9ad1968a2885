package handlers

import (
	"context"
	"log/slog"
	"os"
	"runtime"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"

	"github.com/audiolink/wavebridge/internal/backend"
	"github.com/audiolink/wavebridge/pkg/format"
)

// StatusProber fetches backend stream diagnostics. Satisfied by
// *backend.Client.
type StatusProber interface {
	StreamStatus(ctx context.Context) (*backend.StreamStatus, error)
}

// Pinger checks a dependency connection. Satisfied by *database.DB.
type Pinger interface {
	Ping(ctx context.Context) error
}

// StatusHandler exposes the combined diagnostic status endpoint and
// the service health check.
type StatusHandler struct {
	engine    StreamController
	prober    StatusProber
	db        Pinger
	version   string
	startTime time.Time
	logger    *slog.Logger
}

// NewStatusHandler creates the status handler. prober and db may be
// nil; the corresponding sections are omitted or reported degraded.
func NewStatusHandler(engine StreamController, prober StatusProber, db Pinger, version string, logger *slog.Logger) *StatusHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &StatusHandler{
		engine:    engine,
		prober:    prober,
		db:        db,
		version:   version,
		startTime: time.Now(),
		logger:    logger,
	}
}

// BackendStatusBody is the diagnostic view of the backend stream.
type BackendStatusBody struct {
	Available     bool   `json:"available" doc:"Whether the backend status endpoint answered"`
	IsActive      bool   `json:"is_active,omitempty"`
	StatusText    string `json:"status_text,omitempty"`
	AvgSpeed      string `json:"avg_speed,omitempty" doc:"Humanized average transfer speed"`
	TotalTransfer string `json:"total_transfer,omitempty" doc:"Humanized total bytes served"`
	Duration      string `json:"duration,omitempty"`
	ActiveClients int    `json:"active_clients,omitempty"`
	Format        string `json:"format,omitempty"`
	Breaker       string `json:"breaker,omitempty" doc:"Backend circuit breaker state"`
}

// BreakerReporter exposes the backend circuit breaker state.
// Satisfied by *backend.Client.
type BreakerReporter interface {
	BreakerState() string
}

// ProcessStatsBody holds daemon process statistics.
type ProcessStatsBody struct {
	PID           int32   `json:"pid"`
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryMB      float64 `json:"memory_mb"`
	Goroutines    int     `json:"goroutines"`
	Uptime        string  `json:"uptime"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

// StatusBody is the combined status response.
type StatusBody struct {
	Version string            `json:"version"`
	Session SessionBody       `json:"session"`
	Backend BackendStatusBody `json:"backend"`
	Process ProcessStatsBody  `json:"process"`
}

// StatusOutput wraps the status response.
type StatusOutput struct {
	Body StatusBody
}

// HealthBody is the health check response.
type HealthBody struct {
	Status        string            `json:"status"`
	Version       string            `json:"version"`
	Timestamp     string            `json:"timestamp"`
	Uptime        string            `json:"uptime"`
	SystemLoad    float64           `json:"system_load"`
	MemoryUsedMB  float64           `json:"memory_used_mb"`
	MemoryTotalMB float64           `json:"memory_total_mb"`
	Checks        map[string]string `json:"checks"`
}

// HealthOutput wraps the health response.
type HealthOutput struct {
	Body HealthBody
}

// Register registers the status and health routes with the API.
func (h *StatusHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "getStatus",
		Method:      "GET",
		Path:        "/api/v1/status",
		Summary:     "Combined diagnostic status",
		Description: "Session state, backend stream diagnostics, and process statistics",
		Tags:        []string{"System"},
	}, h.GetStatus)

	huma.Register(api, huma.Operation{
		OperationID: "getHealth",
		Method:      "GET",
		Path:        "/health",
		Summary:     "Health check",
		Tags:        []string{"System"},
	}, h.GetHealth)
}

// GetStatus returns the combined diagnostic status. Backend failures
// degrade to an unavailable section rather than failing the request.
func (h *StatusHandler) GetStatus(ctx context.Context, _ *struct{}) (*StatusOutput, error) {
	body := StatusBody{
		Version: h.version,
		Session: sessionBody(h.engine.Session()),
		Process: h.processStats(),
	}

	if h.prober != nil {
		if status, err := h.prober.StreamStatus(ctx); err != nil {
			h.logger.Debug("backend status unavailable", slog.Any("error", err))
		} else {
			body.Backend = BackendStatusBody{
				Available:     true,
				IsActive:      status.IsActive,
				StatusText:    status.StatusText,
				AvgSpeed:      format.Bytes(int64(status.AvgSpeed*1024)) + "/s",
				TotalTransfer: format.Bytes(int64(status.TotalMB * 1024 * 1024)),
				Duration:      (time.Duration(status.Duration * float64(time.Second))).Round(time.Second).String(),
				ActiveClients: status.ActiveClients,
				Format:        status.Format,
			}
		}
		if reporter, ok := h.prober.(BreakerReporter); ok {
			body.Backend.Breaker = reporter.BreakerState()
		}
	}

	return &StatusOutput{Body: body}, nil
}

// GetHealth returns the health status of the daemon.
func (h *StatusHandler) GetHealth(ctx context.Context, _ *struct{}) (*HealthOutput, error) {
	now := time.Now()
	uptime := now.Sub(h.startTime)

	checks := map[string]string{}
	status := "healthy"
	if h.db != nil {
		if err := h.db.Ping(ctx); err != nil {
			checks["database"] = "unhealthy"
			status = "degraded"
		} else {
			checks["database"] = "ok"
		}
	}

	body := HealthBody{
		Status:    status,
		Version:   h.version,
		Timestamp: now.UTC().Format(time.RFC3339),
		Uptime:    uptime.Round(time.Second).String(),
		Checks:    checks,
	}

	if loadAvg, err := load.Avg(); err == nil && loadAvg != nil {
		if cores := runtime.NumCPU(); cores > 0 {
			body.SystemLoad = loadAvg.Load1 / float64(cores)
		}
	}
	if vmStat, err := mem.VirtualMemory(); err == nil && vmStat != nil {
		body.MemoryUsedMB = float64(vmStat.Used) / 1024 / 1024
		body.MemoryTotalMB = float64(vmStat.Total) / 1024 / 1024
	}

	return &HealthOutput{Body: body}, nil
}

func (h *StatusHandler) processStats() ProcessStatsBody {
	uptime := time.Since(h.startTime)
	stats := ProcessStatsBody{
		PID:           int32(os.Getpid()),
		Goroutines:    runtime.NumGoroutine(),
		Uptime:        uptime.Round(time.Second).String(),
		UptimeSeconds: uptime.Seconds(),
	}

	proc, err := process.NewProcess(stats.PID)
	if err != nil {
		return stats
	}
	if cpu, err := proc.CPUPercent(); err == nil {
		stats.CPUPercent = cpu
	}
	if memInfo, err := proc.MemoryInfo(); err == nil && memInfo != nil {
		stats.MemoryMB = float64(memInfo.RSS) / 1024 / 1024
	}
	return stats
}
