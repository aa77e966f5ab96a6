// Package health runs the readiness checks of the vault's dependencies:
// the KMS, the key store, the key cache and the audit sinks.
package health

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
	StatusUnknown   Status = "unknown"
)

// DefaultTimeout bounds a check that sets no timeout of its own.
const DefaultTimeout = 5 * time.Second

// Check probes one dependency. A failing critical check makes the service
// unhealthy, a failing optional one only degrades it.
type Check struct {
	Name     string
	Critical bool
	Timeout  time.Duration
	Probe    func(context.Context) error
}

// Ping returns a check calling ping, e.g. (*sql.DB).PingContext.
func Ping(name string, critical bool, ping func(context.Context) error) Check {
	return Check{Name: name, Critical: critical, Probe: ping}
}

type Result struct {
	Name     string        `json:"name"`
	Status   Status        `json:"status"`
	Critical bool          `json:"critical"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

type Report struct {
	Status    Status    `json:"status"`
	Service   string    `json:"service,omitempty"`
	Version   string    `json:"version,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Results   []Result  `json:"results"`
}

// Checker runs registered checks concurrently.
type Checker struct {
	service string
	version string

	mu     sync.RWMutex
	checks map[string]Check
}

func NewChecker(service, version string) *Checker {
	return &Checker{service: service, version: version, checks: map[string]Check{}}
}

// Register adds c, replacing a check with the same name.
func (c *Checker) Register(check Check) error {
	if check.Name == "" {
		return fmt.Errorf("health check name cannot be empty")
	}
	if check.Probe == nil {
		return fmt.Errorf("health check %s has no probe", check.Name)
	}
	if check.Timeout <= 0 {
		check.Timeout = DefaultTimeout
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[check.Name] = check
	return nil
}

// Run executes every check and reports the overall status. Results are
// sorted by name.
func (c *Checker) Run(ctx context.Context) Report {
	c.mu.RLock()
	checks := make([]Check, 0, len(c.checks))
	for _, check := range c.checks {
		checks = append(checks, check)
	}
	c.mu.RUnlock()

	results := make([]Result, len(checks))
	var wg sync.WaitGroup
	for i, check := range checks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = run(ctx, check)
		}()
	}
	wg.Wait()
	sort.Slice(results, func(i, j int) bool { return results[i].Name < results[j].Name })

	return Report{
		Status:    overall(results),
		Service:   c.service,
		Version:   c.version,
		Timestamp: time.Now().UTC(),
		Results:   results,
	}
}

func run(ctx context.Context, check Check) Result {
	ctx, cancel := context.WithTimeout(ctx, check.Timeout)
	defer cancel()

	start := time.Now()
	res := Result{Name: check.Name, Critical: check.Critical, Status: StatusHealthy}
	err := check.Probe(ctx)
	res.Duration = time.Since(start)
	if err != nil {
		res.Error = err.Error()
		res.Status = StatusUnhealthy
		if !check.Critical {
			res.Status = StatusDegraded
		}
	}
	return res
}

func overall(results []Result) Status {
	if len(results) == 0 {
		return StatusUnknown
	}
	status := StatusHealthy
	for _, r := range results {
		switch r.Status {
		case StatusUnhealthy:
			return StatusUnhealthy
		case StatusDegraded:
			status = StatusDegraded
		}
	}
	return status
}
