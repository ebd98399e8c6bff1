// pkg/core/run.go
package core

import (
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
)

// SweepParams configures an agreement sweep.
type SweepParams struct {
	CellSizeFactor float64 `json:"cellSizeFactor"`
	MinAgree       float64 `json:"minAgree"`
	BBTol          float64 `json:"bbTol"`
	ZeroDepthTol   float64 `json:"zeroDepthTol"`
	Interactive    bool    `json:"interactive"`
	OutputDir      string  `json:"outputDir"`
	OutputSubdir   string  `json:"outputSubdir"`
}

// DefaultSweepParams returns the parameters used when nothing is configured.
func DefaultSweepParams() SweepParams {
	return SweepParams{
		CellSizeFactor: 0.1,
		MinAgree:       0.999,
		BBTol:          1e-3,
		ZeroDepthTol:   5e-2,
	}
}

// Run describes one agreement sweep between two models.
type Run struct {
	ID        uuid.UUID   `json:"id"`
	Engines   []string    `json:"engines"`
	Worlds    []string    `json:"worlds"`
	Model1    string      `json:"model1"`
	Model2    string      `json:"model2"`
	Params    SweepParams `json:"params"`
	StartTime time.Time   `json:"startTime"`
}

// NewRun creates a run with a fresh id.
func NewRun(model1, model2 string, engines, worlds []string, params SweepParams) *Run {
	return &Run{
		ID:        uuid.New(),
		Engines:   engines,
		Worlds:    worlds,
		Model1:    model1,
		Model2:    model2,
		Params:    params,
		StartTime: time.Now(),
	}
}

// Cell is one grid position of the sweep.
type Cell struct {
	Index    int        `json:"index"`
	Position mgl64.Vec3 `json:"position"`
}

// Vote is one world's answer for a cell.
type Vote struct {
	World     string        `json:"world"`
	Engine    string        `json:"engine"`
	Colliding bool          `json:"colliding"`
	MaxDepth  float64       `json:"maxDepth"`
	Contacts  []ContactInfo `json:"contacts,omitempty"`
}

// Failure is a cell where the engines did not reach the required agreement.
type Failure struct {
	RunID         uuid.UUID `json:"runId"`
	Number        int       `json:"number"`
	Cell          Cell      `json:"cell"`
	Positive      float64   `json:"positive"`
	Negative      float64   `json:"negative"`
	MaxDepth      float64   `json:"maxDepth"`
	Votes         []Vote    `json:"votes"`
	SnapshotFiles []string  `json:"snapshotFiles,omitempty"`
	Time          time.Time `json:"time"`
}

// Colliding returns the names of worlds that voted for contact.
func (f Failure) Colliding() []string {
	var out []string
	for _, v := range f.Votes {
		if v.Colliding {
			out = append(out, v.World)
		}
	}
	return out
}

// NotColliding returns the names of worlds that voted against contact.
func (f Failure) NotColliding() []string {
	var out []string
	for _, v := range f.Votes {
		if !v.Colliding {
			out = append(out, v.World)
		}
	}
	return out
}

// Summary is the outcome of a finished sweep.
type Summary struct {
	RunID     uuid.UUID     `json:"runId"`
	Cells     int           `json:"cells"`
	Evaluated int           `json:"evaluated"`
	Skipped   int           `json:"skipped"`
	Failures  int           `json:"failures"`
	Duration  time.Duration `json:"duration"`
}

// Passed reports whether no cell failed.
func (s Summary) Passed() bool {
	return s.Failures == 0
}

// UploadMetadata describes an exported report for the results server.
type UploadMetadata struct {
	RunID    uuid.UUID `json:"runId"`
	Model1   string    `json:"model1"`
	Model2   string    `json:"model2"`
	Engines  []string  `json:"engines"`
	Cells    int       `json:"cells"`
	Failures int       `json:"failures"`
	Duration float64   `json:"duration"` // seconds
}
