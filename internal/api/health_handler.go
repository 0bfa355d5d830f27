package api

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/newsletter/internal/pkg/httputil"
)

const healthVersion = "1.0.0"

// Component states reported in ComponentCheck.Status.
const (
	statusUp       = "up"
	statusDown     = "down"
	statusDegraded = "degraded"
	statusOff      = "not_configured"
)

// HealthStatus is the /health response body.
type HealthStatus struct {
	Status  string                    `json:"status"` // healthy, degraded or unhealthy
	Version string                    `json:"version"`
	Uptime  string                    `json:"uptime"`
	Checks  map[string]ComponentCheck `json:"checks"`
}

// ComponentCheck is the result of probing one dependency.
type ComponentCheck struct {
	Status   string `json:"status"`
	Critical bool   `json:"critical"`
	Latency  string `json:"latency,omitempty"`
	Message  string `json:"message,omitempty"`
}

// probe pings one dependency. A nil ping means the dependency is not configured.
type probe struct {
	name     string
	critical bool
	timeout  time.Duration
	slow     time.Duration
	ping     func(ctx context.Context) error
}

// HealthChecker probes Postgres (critical) and Redis (optional).
type HealthChecker struct {
	probes    []probe
	startTime time.Time
}

// NewHealthChecker accepts nil for either dependency.
func NewHealthChecker(db *sql.DB, redisClient *redis.Client) *HealthChecker {
	dbProbe := probe{name: "database", critical: true, timeout: 3 * time.Second, slow: time.Second}
	if db != nil {
		dbProbe.ping = db.PingContext
	}
	redisProbe := probe{name: "redis", timeout: 2 * time.Second, slow: 500 * time.Millisecond}
	if redisClient != nil {
		redisProbe.ping = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}
	return &HealthChecker{
		probes:    []probe{dbProbe, redisProbe},
		startTime: time.Now(),
	}
}

// HandleHealth always answers 200; the verdict is in the body.
//
//	GET /health
func (hc *HealthChecker) HandleHealth(w http.ResponseWriter, r *http.Request) {
	checks := hc.run(r.Context())
	httputil.OK(w, HealthStatus{
		Status:  overallStatus(checks),
		Version: healthVersion,
		Uptime:  formatUptime(time.Since(hc.startTime)),
		Checks:  checks,
	})
}

// HandleLiveness answers 200 while the process is up.
//
//	GET /health/live
func (hc *HealthChecker) HandleLiveness(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, map[string]string{
		"status": "alive",
		"uptime": formatUptime(time.Since(hc.startTime)),
	})
}

// HandleReadiness answers 503 while a critical dependency is down.
//
//	GET /health/ready
func (hc *HealthChecker) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	checks := hc.run(r.Context())
	overall := overallStatus(checks)
	ready := overall != "unhealthy"

	code := http.StatusOK
	if !ready {
		code = http.StatusServiceUnavailable
	}
	httputil.JSON(w, code, map[string]interface{}{
		"ready":  ready,
		"status": overall,
		"checks": checks,
	})
}

// run probes every dependency concurrently.
func (hc *HealthChecker) run(ctx context.Context) map[string]ComponentCheck {
	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		checks = make(map[string]ComponentCheck, len(hc.probes))
	)
	for _, p := range hc.probes {
		wg.Add(1)
		go func(p probe) {
			defer wg.Done()
			c := p.check(ctx)
			mu.Lock()
			checks[p.name] = c
			mu.Unlock()
		}(p)
	}
	wg.Wait()
	return checks
}

func (p probe) check(ctx context.Context) ComponentCheck {
	if p.ping == nil {
		return ComponentCheck{Status: statusOff, Critical: p.critical}
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	err := p.ping(ctx)
	elapsed := time.Since(start)

	c := ComponentCheck{Status: statusUp, Critical: p.critical, Latency: elapsed.String()}
	switch {
	case err != nil:
		c.Status = statusDown
		c.Message = fmt.Sprintf("ping failed: %v", err)
	case elapsed > p.slow:
		c.Status = statusDegraded
		c.Message = fmt.Sprintf("slow response (%s)", elapsed)
	}
	return c
}

// overallStatus is "unhealthy" when a critical dependency is down,
// "degraded" when anything else is down or slow, and "healthy" otherwise.
// Unconfigured dependencies are ignored.
func overallStatus(checks map[string]ComponentCheck) string {
	verdict := "healthy"
	for _, c := range checks {
		switch {
		case c.Status == statusDown && c.Critical:
			return "unhealthy"
		case c.Status == statusDown, c.Status == statusDegraded:
			verdict = "degraded"
		}
	}
	return verdict
}

// formatUptime renders d as "3d 4h 12m 5s", dropping leading zero units.
func formatUptime(d time.Duration) string {
	total := int(d.Seconds())
	days, rem := total/86400, total%86400
	hours, rem := rem/3600, rem%3600
	minutes, seconds := rem/60, rem%60

	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh %dm %ds", days, hours, minutes, seconds)
	case hours > 0:
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	case minutes > 0:
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	default:
		return fmt.Sprintf("%ds", seconds)
	}
}
