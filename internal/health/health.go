// Package health aggregates component checks for the overlay host.
//
// Components register a Check; the Checker runs them concurrently with a
// timeout, keeps the last result of each, and folds them into one Status.
// Missing input hooks and assets report degraded, never unhealthy: the
// overlay keeps rendering in its fallback modes.
package health

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Status is the state of one component or of the whole process.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"  // working, in a fallback mode
	StatusUnhealthy Status = "unhealthy" // failing
	StatusUnknown   Status = "unknown"   // not checked yet
)

// DefaultTimeout bounds a check registered without a timeout.
const DefaultTimeout = 5 * time.Second

// CheckResult is the outcome of one check run.
type CheckResult struct {
	Status      Status                 `json:"status"`
	Message     string                 `json:"message,omitempty"`
	Details     map[string]interface{} `json:"details,omitempty"`
	LastChecked time.Time              `json:"last_checked"`
	Duration    time.Duration          `json:"duration_ns"`
	Error       string                 `json:"error,omitempty"`
}

// Check inspects one component.
type Check func(ctx context.Context) CheckResult

// Component is a named check. A failing Critical component makes the
// process unhealthy; any other failure only degrades it.
type Component struct {
	Name     string
	Critical bool
	Check    Check
	Timeout  time.Duration
}

type entry struct {
	comp *Component
	last CheckResult
}

// Checker runs registered checks and remembers their last results.
type Checker struct {
	mu      sync.RWMutex
	entries map[string]*entry
	started time.Time
	ready   bool
}

// NewChecker returns an empty, not yet ready Checker.
func NewChecker() *Checker {
	return &Checker{
		entries: make(map[string]*entry),
		started: time.Now(),
	}
}

// Register adds comp, replacing any component of the same name. Its
// status is unknown until the first run.
func (c *Checker) Register(comp *Component) {
	if comp.Timeout <= 0 {
		comp.Timeout = DefaultTimeout
	}
	c.mu.Lock()
	c.entries[comp.Name] = &entry{comp: comp, last: CheckResult{Status: StatusUnknown}}
	c.mu.Unlock()
}

// RegisterFunc registers check under name with the default timeout.
func (c *Checker) RegisterFunc(name string, critical bool, check Check) {
	c.Register(&Component{Name: name, Critical: critical, Check: check})
}

// Unregister removes a component and its result.
func (c *Checker) Unregister(name string) {
	c.mu.Lock()
	delete(c.entries, name)
	c.mu.Unlock()
}

// SetReady marks the process ready (or not) for /readyz.
func (c *Checker) SetReady(ready bool) {
	c.mu.Lock()
	c.ready = ready
	c.mu.Unlock()
}

// IsReady reports the readiness flag.
func (c *Checker) IsReady() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ready
}

// Check runs every component concurrently and returns the fresh results.
func (c *Checker) Check(ctx context.Context) map[string]CheckResult {
	c.mu.RLock()
	comps := make([]*Component, 0, len(c.entries))
	for _, e := range c.entries {
		comps = append(comps, e.comp)
	}
	c.mu.RUnlock()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results = make(map[string]CheckResult, len(comps))
	)
	for _, comp := range comps {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res := c.run(ctx, comp)
			mu.Lock()
			results[comp.Name] = res
			mu.Unlock()
		}()
	}
	wg.Wait()
	return results
}

// CheckComponent runs one component. ok is false if name is not registered.
func (c *Checker) CheckComponent(ctx context.Context, name string) (res CheckResult, ok bool) {
	c.mu.RLock()
	e, ok := c.entries[name]
	c.mu.RUnlock()
	if !ok {
		return CheckResult{}, false
	}
	return c.run(ctx, e.comp), true
}

// run executes comp under its timeout, turning a panic or an overrun into
// an unhealthy result, and stores the outcome.
func (c *Checker) run(ctx context.Context, comp *Component) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, comp.Timeout)
	defer cancel()

	start := time.Now()
	done := make(chan CheckResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- CheckResult{Status: StatusUnhealthy, Message: "check panicked", Error: fmt.Sprint(r)}
			}
		}()
		done <- comp.Check(ctx)
	}()

	var res CheckResult
	select {
	case res = <-done:
	case <-ctx.Done():
		res = CheckResult{Status: StatusUnhealthy, Message: "check timed out", Error: ctx.Err().Error()}
	}
	res.LastChecked = start
	res.Duration = time.Since(start)

	c.mu.Lock()
	// The component may have been replaced or removed meanwhile.
	if e, ok := c.entries[comp.Name]; ok && e.comp == comp {
		e.last = res
	}
	c.mu.Unlock()
	return res
}

// GetResult returns the last result of name.
func (c *Checker) GetResult(name string) (CheckResult, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[name]
	if !ok {
		return CheckResult{}, false
	}
	return e.last, true
}

// GetResults returns a copy of every last result.
func (c *Checker) GetResults() map[string]CheckResult {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]CheckResult, len(c.entries))
	for name, e := range c.entries {
		out[name] = e.last
	}
	return out
}

// OverallStatus folds the last results: a failing critical component is
// unhealthy, an unchecked critical one is unknown, and any other problem
// degrades.
func (c *Checker) OverallStatus() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()

	overall := StatusHealthy
	for _, e := range c.entries {
		switch e.last.Status {
		case StatusUnhealthy:
			if e.comp.Critical {
				return StatusUnhealthy
			}
			if overall == StatusHealthy {
				overall = StatusDegraded
			}
		case StatusDegraded:
			if overall == StatusHealthy {
				overall = StatusDegraded
			}
		case StatusUnknown:
			if e.comp.Critical {
				overall = StatusUnknown
			}
		}
	}
	return overall
}
