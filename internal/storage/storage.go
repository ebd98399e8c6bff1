package storage

import (
	"log/slog"

	"github.com/OCAP2/collision-benchmark/pkg/core"
)

// Backend is the interface all storage implementations must satisfy
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Run management
	StartRun(run *core.Run) error
	EndRun(summary *core.Summary) error

	// RecordFailure stores one failed grid cell of the current run.
	RecordFailure(f *core.Failure) error
}

// Uploadable is an optional interface for storage backends that produce
// files suitable for upload to the results server.
type Uploadable interface {
	ExportedFilePath() string
	ExportMetadata() core.UploadMetadata
}

// Reporter adapts a Backend to the sweep's failure reporter and logs
// every failure it forwards.
type Reporter struct {
	Backend Backend
	Logger  *slog.Logger
}

// Report logs f and records it in the backend.
func (r Reporter) Report(f *core.Failure) error {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Warn("Collision agreement failure",
		"number", f.Number,
		"cell", f.Cell.Index,
		"position", f.Cell.Position,
		"positive", f.Positive,
		"negative", f.Negative,
		"maxDepth", f.MaxDepth,
		"colliding", f.Colliding(),
		"notColliding", f.NotColliding(),
	)
	return r.Backend.RecordFailure(f)
}
