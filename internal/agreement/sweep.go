// Package agreement sweeps one model through a grid around another and checks
// at every cell that the worlds agree on whether the two collide.
package agreement

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/OCAP2/collision-benchmark/internal/manager"
	"github.com/OCAP2/collision-benchmark/internal/mirror"
	"github.com/OCAP2/collision-benchmark/pkg/core"
	"github.com/go-gl/mathgl/mgl64"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// SnapshotExt is the file extension of failure snapshots.
const SnapshotExt = "world"

// SnapshotPrefix is the file name prefix of the snapshots of failure number
// (counted from 1). Snapshot files count failures from 0.
func SnapshotPrefix(number int) string {
	return fmt.Sprintf("STest_fail_%d_", number-1)
}

// Reporter records a failed cell in batch mode.
type Reporter interface {
	Report(f *core.Failure) error
}

// MultiReporter forwards a failure to every reporter in order.
type MultiReporter []Reporter

func (m MultiReporter) Report(f *core.Failure) error {
	var errs []error
	for _, r := range m {
		if err := r.Report(f); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Pauser holds the sweep on a failed cell until the operator continues.
type Pauser interface {
	Pause(ctx context.Context, f *core.Failure) error
}

// CellResult is the outcome of one visited cell.
type CellResult struct {
	Run          *core.Run
	Cell         core.Cell
	Colliding    int
	NotColliding int
	MaxDepth     float64
	Skipped      bool
	Failed       bool
}

// CellRecorder receives every visited cell.
type CellRecorder interface {
	RecordCell(ctx context.Context, r CellResult)
}

// Sweep runs agreement tests over the worlds of a manager.
type Sweep struct {
	mgr      *manager.Manager
	params   core.SweepParams
	run      *core.Run
	reporter Reporter
	pauser   Pauser
	recorder CellRecorder
	mirror   *mirror.World
	logger   *slog.Logger

	done  atomic.Int64
	total atomic.Int64

	evaluated metric.Int64Counter
	skipped   metric.Int64Counter
	failures  metric.Int64Counter
}

// Option configures a sweep.
type Option func(*Sweep)

func WithReporter(r Reporter) Option { return func(s *Sweep) { s.reporter = r } }
func WithPauser(p Pauser) Option     { return func(s *Sweep) { s.pauser = p } }

// WithRecorder sends every visited cell to r.
func WithRecorder(r CellRecorder) Option { return func(s *Sweep) { s.recorder = r } }

// WithMirror syncs m after every step of the worlds.
func WithMirror(m *mirror.World) Option { return func(s *Sweep) { s.mirror = m } }

func WithLogger(l *slog.Logger) Option { return func(s *Sweep) { s.logger = l } }

// WithRun attaches failures to an existing run record.
func WithRun(r *core.Run) Option { return func(s *Sweep) { s.run = r } }

// NewSweep creates a sweep over the worlds of mgr.
// Uses the global OTel meter for metrics (no-op if not configured).
func NewSweep(mgr *manager.Manager, params core.SweepParams, opts ...Option) (*Sweep, error) {
	if err := ValidateParams(params); err != nil {
		return nil, err
	}
	s := &Sweep{
		mgr:    mgr,
		params: params,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}

	m := meter()
	var err error
	s.evaluated, err = m.Int64Counter(
		"agreement.cells.evaluated",
		metric.WithDescription("Grid cells that took part in voting"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating evaluated counter: %w", err)
	}
	s.skipped, err = m.Int64Counter(
		"agreement.cells.skipped",
		metric.WithDescription("Grid cells excluded for grazing contact"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating skipped counter: %w", err)
	}
	s.failures, err = m.Int64Counter(
		"agreement.failures",
		metric.WithDescription("Grid cells that failed consensus"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating failures counter: %w", err)
	}
	return s, nil
}

// Progress returns the visited and total number of cells of the running
// sweep. It is safe to call from other goroutines.
func (s *Sweep) Progress() (done, total int) {
	return int(s.done.Load()), int(s.total.Load())
}

// Run moves both models to the origin, builds the grid and votes at every
// cell. Failed cells are counted and reported; they never stop the sweep.
// An error is only returned for setup problems or when ctx is done, in which
// case the summary covers the cells visited so far.
func (s *Sweep) Run(ctx context.Context, model1, model2 string) (core.Summary, error) {
	start := time.Now()
	if s.run == nil {
		s.run = core.NewRun(model1, model2, s.mgr.Engines(), s.mgr.WorldNames(), s.params)
	}
	summary := core.Summary{RunID: s.run.ID}
	n := s.mgr.NumWorlds()
	if n == 0 {
		return summary, fmt.Errorf("%w: no worlds", core.ErrSetupInconsistency)
	}

	s.mgr.SetDynamicsEnabled(false)
	s.mgr.SetPaused(false)

	origin := core.NewBasicStateAt(0, 0, 0)
	origin.SetRotation(mgl64.QuatIdent())
	for _, id := range []string{model1, model2} {
		if got := s.mgr.SetBasicModelState(id, origin); got != n {
			return summary, fmt.Errorf("%w: model %q placed in %d of %d worlds", core.ErrSetupInconsistency, id, got, n)
		}
	}

	aabb1, aabb2, err := s.mgr.GetAABBs(model1, model2, s.params.BBTol)
	if err != nil {
		return summary, err
	}
	grid := aabb1.Expand(aabb2.Size().Mul(0.5))
	cell := grid.Size().Mul(s.params.CellSizeFactor)
	xs := AxisSteps(grid.Min.X(), grid.Max.X(), cell.X())
	ys := AxisSteps(grid.Min.Y(), grid.Max.Y(), cell.Y())
	zs := AxisSteps(grid.Min.Z(), grid.Max.Z(), cell.Z())
	s.total.Store(int64(len(xs) * len(ys) * len(zs)))
	s.done.Store(0)

	s.logger.Info("Starting agreement sweep",
		"model1", model1, "model2", model2, "worlds", n,
		"grid", grid.String(), "cell", cell, "cells", len(xs)*len(ys)*len(zs))

	probe := core.NewBasicStateAt(grid.Min.X(), grid.Min.Y(), grid.Min.Z())
	if got := s.mgr.SetBasicModelState(model2, probe); got != n {
		return summary, fmt.Errorf("%w: model %q placed in %d of %d worlds", core.ErrSetupInconsistency, model2, got, n)
	}

	index := 0
	for _, x := range xs {
		for _, y := range ys {
			for _, z := range zs {
				if err := ctx.Err(); err != nil {
					summary.Duration = time.Since(start)
					return summary, err
				}
				c := core.Cell{Index: index, Position: mgl64.Vec3{x, y, z}}
				index++
				if err := s.visit(ctx, model1, model2, c, &summary); err != nil {
					summary.Duration = time.Since(start)
					return summary, err
				}
				s.done.Add(1)
			}
		}
	}

	summary.Duration = time.Since(start)
	s.logger.Info("Agreement sweep finished",
		"cells", summary.Cells, "evaluated", summary.Evaluated,
		"skipped", summary.Skipped, "failures", summary.Failures, "duration", summary.Duration)
	return summary, nil
}

func (s *Sweep) visit(ctx context.Context, model1, model2 string, c core.Cell, summary *core.Summary) error {
	n := s.mgr.NumWorlds()
	summary.Cells++

	// all worlds are moved before any is stepped, and stepped before any is queried
	probe := core.NewBasicStateAt(c.Position.X(), c.Position.Y(), c.Position.Z())
	if got := s.mgr.SetBasicModelState(model2, probe); got != n {
		return fmt.Errorf("%w: model %q placed in %d of %d worlds", core.ErrSetupInconsistency, model2, got, n)
	}
	s.mgr.Update(1)
	if s.mirror != nil && s.mirror.Bound() {
		if err := s.mirror.Sync(); err != nil {
			s.logger.Warn("Mirror sync failed", "error", err)
		}
	}
	st := s.mgr.CollisionState(model1, model2)

	result := CellResult{
		Run:          s.run,
		Cell:         c,
		Colliding:    len(st.Colliding),
		NotColliding: len(st.NotColliding),
		MaxDepth:     st.MaxDepth,
	}
	defer func() {
		if s.recorder != nil {
			s.recorder.RecordCell(ctx, result)
		}
	}()

	if ShouldSkip(len(st.Colliding), st.MaxDepth, s.params.ZeroDepthTol) {
		result.Skipped = true
		summary.Skipped++
		s.skipped.Add(ctx, 1)
		return nil
	}

	total := len(st.Colliding) + len(st.NotColliding)
	if total != n {
		return fmt.Errorf("%w: %d votes from %d worlds", core.ErrSetupInconsistency, total, n)
	}
	summary.Evaluated++
	s.evaluated.Add(ctx, 1)

	positive := float64(len(st.Colliding)) / float64(total)
	negative := float64(len(st.NotColliding)) / float64(total)
	if !Disagrees(positive, negative, s.params.MinAgree) {
		return nil
	}

	result.Failed = true
	summary.Failures++
	s.failures.Add(ctx, 1, metric.WithAttributes(attribute.String("model2", model2)))
	return s.fail(ctx, c, positive, negative, st, summary.Failures)
}

func (s *Sweep) fail(ctx context.Context, c core.Cell, positive, negative float64, st manager.CollisionState, number int) error {
	f := &core.Failure{
		RunID:    s.run.ID,
		Number:   number,
		Cell:     c,
		Positive: positive,
		Negative: negative,
		MaxDepth: st.MaxDepth,
		Votes:    make([]core.Vote, 0, len(st.PerWorld)),
		Time:     time.Now(),
	}
	for _, wc := range st.PerWorld {
		v := core.Vote{
			World:     wc.World,
			Engine:    wc.Engine,
			Colliding: wc.Colliding(),
			Contacts:  wc.Contacts,
		}
		for i, ci := range wc.Contacts {
			if d := ci.MaxDepth(); i == 0 || d > v.MaxDepth {
				v.MaxDepth = d
			}
		}
		f.Votes = append(f.Votes, v)
	}

	s.logger.Warn("Worlds disagree on collision",
		"failure", number, "position", c.Position,
		"colliding", st.Colliding, "notColliding", st.NotColliding,
		"positive", positive, "negative", negative, "maxDepth", st.MaxDepth)

	if s.params.OutputDir != "" {
		dir := filepath.Join(s.params.OutputDir, s.params.OutputSubdir)
		paths, failed := s.mgr.SaveAllWorlds(dir, SnapshotPrefix(number), SnapshotExt)
		if failed > 0 {
			s.logger.Warn("Could not save every world", "failure", number, "failed", failed)
		}
		f.SnapshotFiles = paths
	}

	if s.reporter != nil {
		if err := s.reporter.Report(f); err != nil {
			s.logger.Error("Failed to report failure", "failure", number, "error", err)
		}
	}
	if s.params.Interactive && s.pauser != nil {
		return s.pauser.Pause(ctx, f)
	}
	return nil
}
