package health

import "context"

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure.
	Degraded Status = "degraded"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Report aggregates health check results. The index sizes are informational
// and never degrade the status: an empty corpus is a healthy engine.
type Report struct {
	Status     Status
	Checks     map[string]CheckResult
	Candidates int
	Jobs       int
}

// Service coordinates health checks.
type Service struct {
	store      StorePinger
	encoder    EncoderChecker
	candidates IndexSizer
	jobs       IndexSizer
}

// New creates a Service. encoder can be nil.
func New(store StorePinger, encoder EncoderChecker, candidates, jobs IndexSizer) *Service {
	return &Service{store: store, encoder: encoder, candidates: candidates, jobs: jobs}
}

// Check runs health checks against all components.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)

	if err := s.store.Ping(ctx); err != nil {
		checks["store"] = CheckError
	} else {
		checks["store"] = CheckOK
	}

	if s.encoder != nil {
		if err := s.encoder.HealthCheck(ctx); err != nil {
			checks["encoder"] = CheckError
		} else {
			checks["encoder"] = CheckOK
		}
	}

	status := Healthy
	for _, v := range checks {
		if v == CheckError {
			status = Degraded
			break
		}
	}

	return Report{
		Status:     status,
		Checks:     checks,
		Candidates: s.candidates.Len(),
		Jobs:       s.jobs.Len(),
	}
}
