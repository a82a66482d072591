package services

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/GregMSThompson/jarvis-gateway/internal/dto"
	"github.com/GregMSThompson/jarvis-gateway/pkg/logger"
)

const Version = "3.0.0"

type HealthChecker interface {
	Healthy(ctx context.Context) bool
}

// HealthFunc adapts a plain function to HealthChecker.
type HealthFunc func(ctx context.Context) bool

func (f HealthFunc) Healthy(ctx context.Context) bool { return f(ctx) }

// AlwaysHealthy is used for backends with nothing to probe.
var AlwaysHealthy = HealthFunc(func(context.Context) bool { return true })

type healthService struct {
	checks  map[string]HealthChecker
	timeout time.Duration
	started time.Time
	now     func() time.Time
}

func NewHealthService(checks map[string]HealthChecker, started time.Time) *healthService {
	return &healthService{
		checks:  checks,
		timeout: 5 * time.Second,
		started: started,
		now:     time.Now,
	}
}

// Check probes every backend in parallel. Each probe gets its own timeout
// and a probe that runs out of time counts as down.
func (s *healthService) Check(ctx context.Context) dto.HealthResponse {
	log := logger.FromContext(ctx)

	var mu sync.Mutex
	results := make(map[string]bool, len(s.checks))

	var g errgroup.Group
	for name, check := range s.checks {
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()

			ok := probe(cctx, check)
			mu.Lock()
			results[name] = ok
			mu.Unlock()
			if !ok {
				log.Warn("health check failed", "service", name)
			}
			return nil
		})
	}
	_ = g.Wait()

	now := s.now()
	return dto.HealthResponse{
		Status:    overall(results),
		Timestamp: now.UTC().Format(time.RFC3339Nano),
		Uptime:    now.Sub(s.started).Seconds(),
		Services:  results,
		Version:   Version,
	}
}

// probe returns false when the checker panics or ignores its deadline.
func probe(ctx context.Context, check HealthChecker) bool {
	done := make(chan bool, 1)
	go func() {
		defer func() {
			if recover() != nil {
				done <- false
			}
		}()
		done <- check.Healthy(ctx)
	}()
	select {
	case ok := <-done:
		return ok
	case <-ctx.Done():
		return false
	}
}

func overall(results map[string]bool) dto.HealthStatus {
	up := 0
	for _, ok := range results {
		if ok {
			up++
		}
	}
	switch {
	case len(results) > 0 && up == len(results):
		return dto.Healthy
	case up > 0:
		return dto.Degraded
	}
	return dto.Unhealthy
}
