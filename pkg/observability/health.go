package observability

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"
)

// HealthStatus represents the health state of a component.
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// HealthCheckResult is the result of a health check.
type HealthCheckResult struct {
	Status    HealthStatus  `json:"status"`
	Message   string        `json:"message,omitempty"`
	Duration  time.Duration `json:"duration_ns"`
	Timestamp time.Time     `json:"timestamp"`
}

// HealthChecker performs a health check.
type HealthChecker func(ctx context.Context) HealthCheckResult

// HealthRegistry runs the health checks of the worker's dependencies.
type HealthRegistry struct {
	mu       sync.RWMutex
	checkers map[string]HealthChecker
}

// NewHealthRegistry creates a new health registry.
func NewHealthRegistry() *HealthRegistry {
	return &HealthRegistry{checkers: make(map[string]HealthChecker)}
}

// Register adds a health checker for a component.
func (r *HealthRegistry) Register(name string, checker HealthChecker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checkers[name] = checker
}

// Names lists the registered components in order.
func (r *HealthRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.checkers))
	for name := range r.checkers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// OverallHealth summarizes every check.
type OverallHealth struct {
	Status    HealthStatus                 `json:"status"`
	Timestamp time.Time                    `json:"timestamp"`
	Checks    map[string]HealthCheckResult `json:"checks"`
}

// Check runs all health checks concurrently. The overall status is the worst
// individual status.
func (r *HealthRegistry) Check(ctx context.Context) OverallHealth {
	r.mu.RLock()
	checkers := make(map[string]HealthChecker, len(r.checkers))
	for k, v := range r.checkers {
		checkers[k] = v
	}
	r.mu.RUnlock()

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results = make(map[string]HealthCheckResult, len(checkers))
	)
	for name, checker := range checkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			start := time.Now()
			result := checker(ctx)
			result.Duration = time.Since(start)
			result.Timestamp = time.Now()
			mu.Lock()
			results[name] = result
			mu.Unlock()
		}()
	}
	wg.Wait()

	overall := HealthStatusHealthy
	for _, result := range results {
		switch {
		case result.Status == HealthStatusUnhealthy:
			overall = HealthStatusUnhealthy
		case result.Status == HealthStatusDegraded && overall == HealthStatusHealthy:
			overall = HealthStatusDegraded
		}
	}
	return OverallHealth{Status: overall, Timestamp: time.Now(), Checks: results}
}

// ToJSON serializes the overall health to JSON.
func (h OverallHealth) ToJSON() ([]byte, error) {
	return json.Marshal(h)
}

// pingChecker reports failing as the status when ping errors.
func pingChecker(component string, failing HealthStatus, ping func(ctx context.Context) error) HealthChecker {
	return func(ctx context.Context) HealthCheckResult {
		if err := ping(ctx); err != nil {
			return HealthCheckResult{Status: failing, Message: component + " check failed: " + err.Error()}
		}
		return HealthCheckResult{Status: HealthStatusHealthy, Message: component + " healthy"}
	}
}

// DatabaseHealthChecker fails the worker when the database is unreachable.
func DatabaseHealthChecker(ping func(ctx context.Context) error) HealthChecker {
	return pingChecker("database", HealthStatusUnhealthy, ping)
}

// RedisHealthChecker degrades: rankings fall back to recomputation.
func RedisHealthChecker(ping func(ctx context.Context) error) HealthChecker {
	return pingChecker("redis", HealthStatusDegraded, ping)
}

// RabbitMQHealthChecker degrades: events stay in the outbox until the
// broker returns.
func RabbitMQHealthChecker(ping func(ctx context.Context) error) HealthChecker {
	return pingChecker("rabbitmq", HealthStatusDegraded, ping)
}

// OutboxHealthChecker degrades when the relay falls behind.
func OutboxHealthChecker(check func(ctx context.Context) error) HealthChecker {
	return pingChecker("outbox", HealthStatusDegraded, check)
}
