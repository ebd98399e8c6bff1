package session

import (
	"sync"

	"github.com/OCAP2/collision-benchmark/pkg/core"
)

// Context holds the run currently being executed. It is shared between the
// driving goroutine and readers such as the status monitor.
type Context struct {
	mu      sync.RWMutex
	run     *core.Run
	summary *core.Summary
	last    *core.Failure
}

// NewContext creates an empty Context.
func NewContext() *Context {
	return &Context{}
}

// GetRun returns the current run, nil before the first one starts.
func (c *Context) GetRun() *core.Run {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.run
}

// SetRun starts tracking run and clears the previous run's results.
func (c *Context) SetRun(run *core.Run) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.run = run
	c.summary = nil
	c.last = nil
}

// GetSummary returns the summary of the finished run, nil while running.
func (c *Context) GetSummary() *core.Summary {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.summary
}

// SetSummary marks the current run finished.
func (c *Context) SetSummary(s *core.Summary) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.summary = s
}

// LastFailure returns the most recent failure of the current run.
func (c *Context) LastFailure() *core.Failure {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.last
}

// Report records f as the latest failure. It satisfies the sweep's
// Reporter interface so it can be chained with storage.
func (c *Context) Report(f *core.Failure) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.last = f
	return nil
}
