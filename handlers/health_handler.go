package handlers

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/propchain/upkeep/utils"
)

// HealthCheck probes one dependency
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// DependencyStatus is the result of one HealthCheck
type DependencyStatus struct {
	Status       string `json:"status"`
	ResponseTime int64  `json:"responseTime"` // milliseconds
	Error        string `json:"error,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status       string                      `json:"status"`
	Service      string                      `json:"service,omitempty"`
	Timestamp    string                      `json:"timestamp"`
	Uptime       float64                     `json:"uptime"`
	Version      string                      `json:"version,omitempty"`
	Environment  string                      `json:"environment,omitempty"`
	Services     map[string]DependencyStatus `json:"services,omitempty"`
	ActiveUsers  *int                        `json:"activeUsers,omitempty"`
	ResponseTime int64                       `json:"responseTime"`
}

// ProbeResponse answers the readiness and liveness probes
type ProbeResponse struct {
	Status    string   `json:"status"`
	Timestamp string   `json:"timestamp"`
	Uptime    *float64 `json:"uptime,omitempty"`
	Error     string   `json:"error,omitempty"`
}

// HealthOptions configures a HealthHandler
type HealthOptions struct {
	Service     string
	Version     string
	Environment string
	Checks      []HealthCheck
	// ActiveSessions, when set, is reported as activeUsers
	ActiveSessions func(ctx context.Context) (int, error)
	Timeout        time.Duration
	Now            func() time.Time
}

// HealthHandler handles health-related HTTP requests
type HealthHandler struct {
	opts    HealthOptions
	started time.Time
	logger  *zap.Logger
}

// NewHealthHandler creates a new HealthHandler
func NewHealthHandler(opts HealthOptions, logger *zap.Logger) *HealthHandler {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	return &HealthHandler{
		opts:    opts,
		started: opts.Now(),
		logger:  logger,
	}
}

// HandleHealth handles GET /health. Every dependency is probed and a
// failing one turns the response into a 503.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.opts.Timeout)
	defer cancel()

	start := h.opts.Now()
	resp := HealthResponse{
		Status:      "healthy",
		Service:     h.opts.Service,
		Timestamp:   start.UTC().Format(time.RFC3339),
		Uptime:      h.uptime(),
		Version:     h.opts.Version,
		Environment: h.opts.Environment,
	}

	if len(h.opts.Checks) > 0 {
		resp.Services = make(map[string]DependencyStatus, len(h.opts.Checks))
	}
	for _, c := range h.opts.Checks {
		checkStart := h.opts.Now()
		err := c.Check(ctx)
		status := DependencyStatus{
			Status:       "healthy",
			ResponseTime: h.opts.Now().Sub(checkStart).Milliseconds(),
		}
		if err != nil {
			h.logger.Error("health check failed", zap.String("dependency", c.Name), zap.Error(err))
			status.Status = "unhealthy"
			status.Error = err.Error()
			resp.Status = "unhealthy"
		}
		resp.Services[c.Name] = status
	}

	if h.opts.ActiveSessions != nil {
		n, err := h.opts.ActiveSessions(ctx)
		if err != nil {
			h.logger.Warn("failed to count sessions", zap.Error(err))
		} else {
			resp.ActiveUsers = &n
		}
	}
	resp.ResponseTime = h.opts.Now().Sub(start).Milliseconds()

	httpStatus := http.StatusOK
	if resp.Status != "healthy" {
		httpStatus = http.StatusServiceUnavailable
	}
	if err := utils.WriteJSON(w, httpStatus, resp); err != nil {
		h.logger.Error("failed to write health response", zap.Error(err))
	}
}

// HandleReadiness handles GET /health/ready
func (h *HealthHandler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.opts.Timeout)
	defer cancel()

	resp := ProbeResponse{
		Status:    "ready",
		Timestamp: h.opts.Now().UTC().Format(time.RFC3339),
	}
	for _, c := range h.opts.Checks {
		if err := c.Check(ctx); err != nil {
			h.logger.Error("readiness check failed", zap.String("dependency", c.Name), zap.Error(err))
			resp.Status = "not ready"
			resp.Error = err.Error()
			_ = utils.WriteJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
	}
	_ = utils.WriteOK(w, resp)
}

// HandleLiveness handles GET /health/live
func (h *HealthHandler) HandleLiveness(w http.ResponseWriter, r *http.Request) {
	uptime := h.uptime()
	_ = utils.WriteOK(w, ProbeResponse{
		Status:    "alive",
		Timestamp: h.opts.Now().UTC().Format(time.RFC3339),
		Uptime:    &uptime,
	})
}

func (h *HealthHandler) uptime() float64 {
	return h.opts.Now().Sub(h.started).Seconds()
}
