// internal/storage/memory/memory.go
package memory

import (
	"fmt"
	"sync"

	"github.com/OCAP2/collision-benchmark/internal/config"
	"github.com/OCAP2/collision-benchmark/pkg/core"
)

// Backend keeps run data in memory and exports a JSON report at run end
type Backend struct {
	cfg      config.MemoryConfig
	run      *core.Run
	summary  *core.Summary
	failures []core.Failure

	lastExportPath string
	mu             sync.RWMutex
}

// New creates a new memory backend
func New(cfg config.MemoryConfig) *Backend {
	return &Backend{cfg: cfg}
}

// Init initializes the backend
func (b *Backend) Init() error {
	return nil
}

// Close cleans up resources
func (b *Backend) Close() error {
	return nil
}

// StartRun begins collecting a new run
func (b *Backend) StartRun(run *core.Run) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.run = run
	b.summary = nil
	b.failures = nil
	return nil
}

// RecordFailure stores a copy of f
func (b *Backend) RecordFailure(f *core.Failure) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.run == nil {
		return fmt.Errorf("no run started")
	}
	b.failures = append(b.failures, *f)
	return nil
}

// EndRun finalizes and exports the run report
func (b *Backend) EndRun(summary *core.Summary) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.run == nil {
		return fmt.Errorf("no run started")
	}
	b.summary = summary
	return b.exportJSON()
}

// Failures returns the failures recorded for the current run
func (b *Backend) Failures() []core.Failure {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]core.Failure, len(b.failures))
	copy(out, b.failures)
	return out
}

// ExportedFilePath returns the path of the last exported report
func (b *Backend) ExportedFilePath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportPath
}

// ExportMetadata describes the last exported report
func (b *Backend) ExportMetadata() core.UploadMetadata {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.run == nil {
		return core.UploadMetadata{}
	}
	meta := core.UploadMetadata{
		RunID:   b.run.ID,
		Model1:  b.run.Model1,
		Model2:  b.run.Model2,
		Engines: b.run.Engines,
	}
	if b.summary != nil {
		meta.Cells = b.summary.Cells
		meta.Failures = b.summary.Failures
		meta.Duration = b.summary.Duration.Seconds()
	}
	return meta
}
