package health

import (
	"context"
	"errors"

	"github.com/kailas-cloud/vecprep/internal/db"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure.
	Degraded Status = "degraded"
	// Unhealthy indicates the database is unreachable.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckMissing indicates the index has not been created yet.
	CheckMissing CheckResult = "missing"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
	Points int64
}

// Service coordinates health checks.
type Service struct {
	db    DBPinger
	index IndexCounter
}

// New creates a Service. index can be nil.
func New(db DBPinger, index IndexCounter) *Service {
	return &Service{db: db, index: index}
}

// Check runs health checks against all components. A missing index is
// reported but does not degrade the status: it is created on first save.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)

	if err := s.db.Ping(ctx); err != nil {
		checks["database"] = CheckError
		return Report{Status: Unhealthy, Checks: checks}
	}
	checks["database"] = CheckOK

	var points int64
	status := Healthy
	if s.index != nil {
		n, err := s.index.Count(ctx)
		switch {
		case err == nil:
			checks["index"] = CheckOK
			points = n
		case errors.Is(err, db.ErrIndexNotFound):
			checks["index"] = CheckMissing
		default:
			checks["index"] = CheckError
			status = Degraded
		}
	}

	return Report{Status: status, Checks: checks, Points: points}
}
