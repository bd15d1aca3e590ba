// Package health runs dependency probes for the liveness and readiness
// endpoints. Each service registers one Check per dependency; readiness fails
// only when a required dependency is down.
package health

import (
	"context"
	"log/slog"
	"maps"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"
)

type Status string

const (
	StatusUp       Status = "up"
	StatusDown     Status = "down"
	StatusDegraded Status = "degraded"
)

// severity orders statuses so the report can take the worst one.
func (s Status) severity() int {
	switch s {
	case StatusDown:
		return 2
	case StatusDegraded:
		return 1
	default:
		return 0
	}
}

type Check func(ctx context.Context) ComponentHealth

type ComponentHealth struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// Report is what /health/ready returns. Info carries static facts about the
// running process, such as the served model version.
type Report struct {
	Status     Status                     `json:"status"`
	Components map[string]ComponentHealth `json:"components"`
	Info       map[string]string          `json:"info,omitempty"`
	Timestamp  string                     `json:"timestamp"`
}

// PingCheck adapts a ping function into a Check. A failing ping reports
// StatusDown, or StatusDegraded when the dependency is optional.
func PingCheck(ping func(ctx context.Context) error, optional bool) Check {
	return func(ctx context.Context) ComponentHealth {
		err := ping(ctx)
		switch {
		case err == nil:
			return ComponentHealth{Status: StatusUp}
		case optional:
			return ComponentHealth{Status: StatusDegraded, Message: err.Error()}
		default:
			return ComponentHealth{Status: StatusDown, Message: err.Error()}
		}
	}
}

type Checker struct {
	mu           sync.RWMutex
	checks       map[string]Check
	info         map[string]string
	checkTimeout time.Duration
	started      time.Time
	logger       *slog.Logger
}

func NewChecker() *Checker {
	return &Checker{
		checks:       make(map[string]Check),
		info:         make(map[string]string),
		checkTimeout: 2 * time.Second,
		started:      time.Now(),
		logger:       slog.Default().With("component", "health"),
	}
}

func (c *Checker) Register(name string, check Check) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = check
}

// SetInfo attaches a static key/value pair to every readiness report.
func (c *Checker) SetInfo(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.info[key] = value
}

// Run probes every registered dependency in parallel, each bounded by the
// per-check timeout. The overall status is the worst component status.
func (c *Checker) Run(ctx context.Context) Report {
	c.mu.RLock()
	checks := maps.Clone(c.checks)
	info := maps.Clone(c.info)
	c.mu.RUnlock()

	report := Report{
		Status:     StatusUp,
		Components: make(map[string]ComponentHealth, len(checks)),
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	}
	if len(info) > 0 {
		report.Info = info
	}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for name, check := range checks {
		wg.Go(func() {
			checkCtx, cancel := context.WithTimeout(ctx, c.checkTimeout)
			defer cancel()
			start := time.Now()
			result := check(checkCtx)
			result.Latency = time.Since(start).Round(time.Millisecond).String()
			mu.Lock()
			report.Components[name] = result
			mu.Unlock()
		})
	}
	wg.Wait()

	for name, comp := range report.Components {
		if comp.Status.severity() > report.Status.severity() {
			report.Status = comp.Status
		}
		if comp.Status != StatusUp {
			c.logger.Warn("dependency unhealthy", "dependency", name, "status", comp.Status, "message", comp.Message)
		}
	}
	return report
}

// LiveHandler answers liveness probes. It never touches dependencies.
func (c *Checker) LiveHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "alive",
			"uptime": time.Since(c.started).Round(time.Second).String(),
		})
	}
}

// ReadyHandler answers readiness probes. A degraded cache still serves
// predictions, so only StatusDown returns 503.
func (c *Checker) ReadyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report := c.Run(r.Context())
		code := http.StatusOK
		if report.Status == StatusDown {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, report)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("health response write failed", "error", err)
	}
}
