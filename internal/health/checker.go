package health

import (
	"context"
	"time"
)

// ServicePinger checks that the image service answers.
type ServicePinger interface {
	Ping(ctx context.Context) (time.Duration, error)
}

// DBPinger checks that the database answers.
type DBPinger interface {
	Health(ctx context.Context) error
}

// Checker probes dependencies. Every Check returns a fresh report; there is
// no connectivity state shared between callers.
type Checker struct {
	service     ServicePinger
	db          DBPinger
	slowService time.Duration
	timeout     time.Duration
}

// NewChecker creates a checker. db may be nil when running without a database.
func NewChecker(service ServicePinger, db DBPinger) *Checker {
	return &Checker{
		service:     service,
		db:          db,
		slowService: 5 * time.Second,
		timeout:     10 * time.Second,
	}
}

// Check probes every dependency once.
func (c *Checker) Check(ctx context.Context) HealthReport {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	report := HealthReport{
		SystemStatus: StatusHealthy,
		Components:   make(map[string]ComponentHealth),
		CheckedAt:    time.Now(),
	}

	svc := ComponentHealth{Name: "service", Status: StatusHealthy}
	latency, err := c.service.Ping(ctx)
	svc.Latency = latency
	switch {
	case err != nil:
		// no service means no jobs at all
		svc.Status = StatusCritical
		svc.Error = err.Error()
	case latency > c.slowService:
		svc.Status = StatusDegraded
	}
	report.Components[svc.Name] = svc

	if c.db != nil {
		db := ComponentHealth{Name: "database", Status: StatusHealthy}
		start := time.Now()
		if err := c.db.Health(ctx); err != nil {
			// jobs still run; only history is lost
			db.Status = StatusDegraded
			db.Error = err.Error()
		}
		db.Latency = time.Since(start)
		report.Components[db.Name] = db
	}

	// Aggregate status (worst case wins)
	for _, comp := range report.Components {
		if comp.Status == StatusCritical {
			report.SystemStatus = StatusCritical
			break
		}
		if comp.Status == StatusDegraded {
			report.SystemStatus = StatusDegraded
		}
	}
	return report
}
