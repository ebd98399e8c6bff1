package agreement

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/OCAP2/collision-benchmark/internal/host"
	"github.com/OCAP2/collision-benchmark/internal/loader"
	"github.com/OCAP2/collision-benchmark/internal/manager"
	"github.com/OCAP2/collision-benchmark/internal/mirror"
	"github.com/OCAP2/collision-benchmark/internal/physics"
	"github.com/OCAP2/collision-benchmark/internal/physics/physicstest"
	"github.com/OCAP2/collision-benchmark/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingReporter struct {
	failures []*core.Failure
}

func (r *recordingReporter) Report(f *core.Failure) error {
	r.failures = append(r.failures, f)
	return nil
}

type recordingPauser struct {
	failures []*core.Failure
}

func (p *recordingPauser) Pause(_ context.Context, f *core.Failure) error {
	p.failures = append(p.failures, f)
	return nil
}

type cellLog struct {
	cells []CellResult
}

func (c *cellLog) RecordCell(_ context.Context, r CellResult) {
	c.cells = append(c.cells, r)
}

func noContacts(*physicstest.Fake) []core.ContactInfo { return nil }

// fakeManager creates n fake worlds holding models "a" and "b".
func fakeManager(n int) ([]*physicstest.Fake, *manager.Manager) {
	fs := make([]*physicstest.Fake, n)
	ws := make([]physics.World, n)
	for i := range fs {
		fs[i] = physicstest.New(string(rune('a'+i)), "fake")
		fs[i].AddModelFromShape("a", nil, nil)
		fs[i].AddModelFromShape("b", nil, nil)
		ws[i] = fs[i]
	}
	return fs, manager.New(nil, ws...)
}

func params(factor, minAgree float64) core.SweepParams {
	p := core.DefaultSweepParams()
	p.CellSizeFactor = factor
	p.MinAgree = minAgree
	return p
}

func TestAxisSteps(t *testing.T) {
	assert.Equal(t, []float64{-1, 0, 1}, AxisSteps(-1, 1, 1))
	assert.Nil(t, AxisSteps(0, 1, 0))
	assert.Nil(t, AxisSteps(1, 0, 0.1))
	assert.Equal(t, []float64{0, 0.3, 0.6, 0.8999999999999999}, AxisSteps(0, 1, 0.3))
}

func TestAxisSteps_UnevenExtentStopsBelowUpperBound(t *testing.T) {
	for _, tt := range []struct{ lo, hi, cell float64 }{{0, 1, 0.3}, {-1, 1.5, 1}, {0, 2.5, 0.4}} {
		steps := AxisSteps(tt.lo, tt.hi, tt.cell)
		assert.Len(t, steps, int(math.Floor((tt.hi-tt.lo)/tt.cell))+1)
		assert.Less(t, steps[len(steps)-1], tt.hi)
	}
}

func TestAxisSteps_Exhaustive(t *testing.T) {
	for _, factor := range []float64{0.5, 0.25, 0.2, 0.1, 0.05, 0.01} {
		for _, size := range []float64{1, 2, 3.7} {
			lo, hi := -size/2, size/2
			cell := size * factor
			want := int(math.Ceil((hi-lo)/cell-1e-9)) + 1
			steps := AxisSteps(lo, hi, cell)
			assert.Len(t, steps, want, "factor %g size %g", factor, size)
			assert.InDelta(t, hi, steps[len(steps)-1], 1e-6)
		}
	}
}

func TestSnapshotPrefix(t *testing.T) {
	assert.Equal(t, "STest_fail_0_", SnapshotPrefix(1))
	assert.Equal(t, "STest_fail_4_", SnapshotPrefix(5))
}

func TestShouldSkip(t *testing.T) {
	tests := []struct {
		name      string
		colliding int
		depth     float64
		want      bool
	}{
		{"nobody colliding", 0, 0, false},
		{"grazing", 1, 0.01, true},
		{"grazing negative", 2, -0.03, true},
		{"deep", 1, 0.2, false},
		{"exactly at tolerance", 1, 0.05, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ShouldSkip(tt.colliding, tt.depth, 0.05))
		})
	}
}

func TestDisagrees(t *testing.T) {
	tests := []struct {
		name     string
		pos, neg float64
		minAgree float64
		want     bool
	}{
		{"3 of 4 at 0.75", 0.75, 0.25, 0.75, false},
		{"1 of 4 colliding at 0.75", 0.25, 0.75, 0.75, false},
		{"3 of 4 at 0.999", 0.75, 0.25, 0.999, true},
		{"2 vs 2 at 0.51", 0.5, 0.5, 0.51, true},
		{"2 vs 2 at 0.999", 0.5, 0.5, 0.999, true},
		{"unanimous colliding", 1, 0, 0.999, false},
		{"unanimous free", 0, 1, 0.999, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Disagrees(tt.pos, tt.neg, tt.minAgree))
		})
	}
}

func TestValidateParams(t *testing.T) {
	assert.NoError(t, ValidateParams(core.DefaultSweepParams()))
	assert.Error(t, ValidateParams(params(1e-8, 0.9)))
	assert.Error(t, ValidateParams(params(0.1, 0)))
	assert.Error(t, ValidateParams(params(0.1, 1.5)))

	_, err := NewSweep(manager.New(nil), params(0, 0.9))
	assert.Error(t, err)
}

func TestSweep_UnitCubes(t *testing.T) {
	tests := []struct {
		name    string
		engines []string
		factor  float64
		cells   int
	}{
		{"3x3x3 with three engines", []string{"ode", "bullet", "dart"}, 0.5, 27},
		{"5x5x5 with all engines", []string{"ode", "bullet", "dart", "simbody"}, 0.25, 125},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := host.New()
			mgr := manager.New(nil)
			for _, e := range tt.engines {
				w, err := physics.NewWorld(h, e, "world_"+e)
				require.NoError(t, err)
				mgr.AddWorld(w)
			}
			require.Equal(t, len(tt.engines), manager.CountLoaded(mgr.AddModelFromShape("cube1", loader.NewBox(1, 1, 1), nil)))
			require.Equal(t, len(tt.engines), manager.CountLoaded(mgr.AddModelFromShape("cube2", loader.NewBox(1, 1, 1), nil)))

			reporter := &recordingReporter{}
			cells := &cellLog{}
			sweep, err := NewSweep(mgr, params(tt.factor, 0.999), WithReporter(reporter), WithRecorder(cells))
			require.NoError(t, err)

			summary, err := sweep.Run(context.Background(), "cube1", "cube2")
			require.NoError(t, err)

			assert.Equal(t, tt.cells, summary.Cells)
			assert.Equal(t, tt.cells, summary.Evaluated+summary.Skipped)
			assert.Zero(t, summary.Failures)
			assert.Empty(t, reporter.failures)
			assert.True(t, summary.Passed())
			assert.NoError(t, Check(summary))
			assert.Len(t, cells.cells, tt.cells)

			done, total := sweep.Progress()
			assert.Equal(t, tt.cells, done)
			assert.Equal(t, tt.cells, total)

			for _, w := range mgr.Worlds() {
				assert.False(t, w.IsDynamicsEnabled())
			}
		})
	}
}

func TestSweep_VisitsCellsInAxisOrder(t *testing.T) {
	_, mgr := fakeManager(2)
	cells := &cellLog{}
	sweep, err := NewSweep(mgr, params(0.5, 0.999), WithRecorder(cells))
	require.NoError(t, err)

	_, err = sweep.Run(context.Background(), "a", "b")
	require.NoError(t, err)

	require.Len(t, cells.cells, 27)
	first, second, last := cells.cells[0].Cell, cells.cells[1].Cell, cells.cells[26].Cell
	assert.Equal(t, [3]float64{-1, -1, -1}, [3]float64(first.Position))
	assert.Equal(t, [3]float64{-1, -1, 0}, [3]float64(second.Position), "z is the innermost axis")
	assert.Equal(t, [3]float64{1, 1, 1}, [3]float64(last.Position))
	assert.Equal(t, 26, last.Index)
}

func TestSweep_ConsensusBoundary(t *testing.T) {
	tests := []struct {
		name      string
		dissent   int
		minAgree  float64
		failures  int
		evaluated int
	}{
		{"3 of 4 passes at 0.75", 1, 0.75, 0, 1},
		{"3 of 4 fails at 0.999", 1, 0.999, 1, 1},
		{"2 vs 2 fails", 2, 0.51, 1, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs, mgr := fakeManager(4)
			for i := 0; i < tt.dissent; i++ {
				fs[3-i].Contacts = noContacts
			}
			reporter := &recordingReporter{}
			sweep, err := NewSweep(mgr, params(0.5, tt.minAgree), WithReporter(reporter))
			require.NoError(t, err)

			summary, err := sweep.Run(context.Background(), "a", "b")
			require.NoError(t, err)

			// only the center cell has non-grazing contact; the shell is skipped
			assert.Equal(t, tt.evaluated, summary.Evaluated)
			assert.Equal(t, 26, summary.Skipped)
			assert.Equal(t, tt.failures, summary.Failures)
			assert.Len(t, reporter.failures, tt.failures)
		})
	}
}

func TestSweep_SkipsSingleGrazingVote(t *testing.T) {
	fs, mgr := fakeManager(2)
	fs[0].Contacts = func(*physicstest.Fake) []core.ContactInfo {
		return []core.ContactInfo{{ModelA: "a", ModelB: "b", Points: []core.ContactPoint{{Depth: 0.01}}}}
	}
	fs[1].Contacts = noContacts

	sweep, err := NewSweep(mgr, params(0.5, 0.999))
	require.NoError(t, err)
	summary, err := sweep.Run(context.Background(), "a", "b")
	require.NoError(t, err)

	assert.Equal(t, 27, summary.Skipped)
	assert.Zero(t, summary.Failures)
}

func TestSweep_FailureReport(t *testing.T) {
	dir := t.TempDir()
	fs, mgr := fakeManager(3)
	fs[2].Contacts = noContacts

	p := params(0.5, 0.999)
	p.OutputDir = dir
	p.OutputSubdir = "run1"
	reporter := &recordingReporter{}
	run := core.NewRun("a", "b", mgr.Engines(), mgr.WorldNames(), p)
	sweep, err := NewSweep(mgr, p, WithReporter(reporter), WithRun(run))
	require.NoError(t, err)

	summary, err := sweep.Run(context.Background(), "a", "b")
	require.NoError(t, err)
	assert.Equal(t, run.ID, summary.RunID)
	require.Equal(t, 1, summary.Failures)
	assert.ErrorIs(t, Check(summary), core.ErrAgreementFailure)

	require.Len(t, reporter.failures, 1)
	f := reporter.failures[0]
	assert.Equal(t, run.ID, f.RunID)
	assert.Equal(t, 1, f.Number)
	assert.Equal(t, [3]float64{0, 0, 0}, [3]float64(f.Cell.Position))
	assert.InDelta(t, 2.0/3, f.Positive, 1e-12)
	assert.Equal(t, []string{"a", "b"}, f.Colliding())
	assert.Equal(t, []string{"c"}, f.NotColliding())
	assert.InDelta(t, 1.0, f.Votes[0].MaxDepth, 1e-12)

	require.Len(t, f.SnapshotFiles, 3)
	for _, path := range f.SnapshotFiles {
		assert.FileExists(t, path)
		assert.Contains(t, filepath.Base(path), "STest_fail_0_")
	}
	entries, err := os.ReadDir(dir + "/run1")
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

func TestSweep_InteractivePauses(t *testing.T) {
	fs, mgr := fakeManager(2)
	fs[1].Contacts = noContacts

	p := params(0.5, 0.999)
	p.Interactive = true
	pauser := &recordingPauser{}
	reporter := &recordingReporter{}
	sweep, err := NewSweep(mgr, p, WithPauser(pauser), WithReporter(reporter))
	require.NoError(t, err)

	summary, err := sweep.Run(context.Background(), "a", "b")
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Failures)
	assert.Len(t, pauser.failures, 1)
	assert.Len(t, reporter.failures, 1, "failures are recorded before pausing")
}

func TestSweep_SetupInconsistency(t *testing.T) {
	t.Run("model missing in one world", func(t *testing.T) {
		fs, mgr := fakeManager(3)
		delete(fs[1].States, "b")
		sweep, err := NewSweep(mgr, params(0.5, 0.999))
		require.NoError(t, err)
		_, err = sweep.Run(context.Background(), "a", "b")
		assert.ErrorIs(t, err, core.ErrSetupInconsistency)
	})

	t.Run("bounding boxes differ", func(t *testing.T) {
		fs, mgr := fakeManager(2)
		fs[1].Extents["a"] = [3]float64{1, 1, 1}
		sweep, err := NewSweep(mgr, params(0.5, 0.999))
		require.NoError(t, err)
		_, err = sweep.Run(context.Background(), "a", "b")
		assert.ErrorIs(t, err, core.ErrSetupInconsistency)
	})

	t.Run("no worlds", func(t *testing.T) {
		sweep, err := NewSweep(manager.New(nil), params(0.5, 0.999))
		require.NoError(t, err)
		_, err = sweep.Run(context.Background(), "a", "b")
		assert.ErrorIs(t, err, core.ErrSetupInconsistency)
	})
}

func TestSweep_StopsWhenCancelled(t *testing.T) {
	_, mgr := fakeManager(2)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sweep, err := NewSweep(mgr, params(0.5, 0.999))
	require.NoError(t, err)
	summary, err := sweep.Run(ctx, "a", "b")

	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, summary.Cells)
}

func TestSweep_SyncsMirror(t *testing.T) {
	fs, mgr := fakeManager(2)
	mw := physicstest.New("mirror", "fake")
	m := mirror.New(mw)
	require.NoError(t, m.NotifyOriginalWorldChange(fs[0]))

	sweep, err := NewSweep(mgr, params(0.5, 0.999), WithMirror(m))
	require.NoError(t, err)
	_, err = sweep.Run(context.Background(), "a", "b")
	require.NoError(t, err)

	assert.Len(t, mw.Applied, 27)
	assert.Equal(t, 27, mw.Steps)
}

type failingReporter struct{}

func (failingReporter) Report(*core.Failure) error { return errors.New("offline") }

func TestMultiReporter(t *testing.T) {
	a, b := &recordingReporter{}, &recordingReporter{}
	f := &core.Failure{Number: 1}

	require.NoError(t, MultiReporter{a, b}.Report(f))
	assert.Len(t, a.failures, 1)
	assert.Len(t, b.failures, 1)

	// a failing reporter does not stop the others
	err := MultiReporter{failingReporter{}, a}.Report(f)
	assert.EqualError(t, err, "offline")
	assert.Len(t, a.failures, 2)

	assert.NoError(t, MultiReporter(nil).Report(f))
}
