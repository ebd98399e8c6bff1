package control

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OCAP2/collision-benchmark/internal/manager"
	"github.com/OCAP2/collision-benchmark/internal/mirror"
	"github.com/OCAP2/collision-benchmark/internal/physics"
	"github.com/OCAP2/collision-benchmark/internal/physics/physicstest"
	"github.com/OCAP2/collision-benchmark/internal/session"
	"github.com/OCAP2/collision-benchmark/pkg/core"
)

type fixture struct {
	worlds []*physicstest.Fake
	mgr    *manager.Manager
	mirror *physicstest.Fake
	out    *bytes.Buffer
}

// newController builds two fake worlds holding models a and b and a
// controller reading input. The update ticker is effectively disabled.
func newController(t *testing.T, input io.Reader, modify func(*Dependencies)) (*Controller, *fixture) {
	t.Helper()

	fx := &fixture{out: &bytes.Buffer{}}
	var ws []physics.World
	for _, name := range []string{"ode_0", "bullet_1"} {
		f := physicstest.New(name, strings.Split(name, "_")[0])
		f.AddModelFromShape("a", nil, nil)
		f.AddModelFromShape("b", nil, nil)
		fx.worlds = append(fx.worlds, f)
		ws = append(ws, f)
	}
	fx.mgr = manager.New(nil, ws...)
	fx.mirror = physicstest.New("mirror", "ode")

	deps := Dependencies{
		Manager:  fx.mgr,
		Mirror:   mirror.New(fx.mirror),
		Console:  NewConsole(input, fx.out),
		Model1:   "a",
		Model2:   "b",
		Interval: time.Hour,
	}
	if modify != nil {
		modify(&deps)
	}
	c, err := New(deps)
	require.NoError(t, err)
	return c, fx
}

func TestNew_RequiresManagerAndConsole(t *testing.T) {
	_, err := New(Dependencies{})
	assert.Error(t, err)
}

func TestUpdateUntilEnter_EmptyLineReturns(t *testing.T) {
	c, fx := newController(t, strings.NewReader("\n"), nil)

	require.NoError(t, c.UpdateUntilEnter(context.Background()))
	assert.Contains(t, fx.out.String(), "Press [Enter] to continue")
}

func TestUpdateUntilEnter_EOFReturns(t *testing.T) {
	c, _ := newController(t, strings.NewReader(""), nil)
	assert.NoError(t, c.UpdateUntilEnter(context.Background()))
}

func TestUpdateUntilEnter_ContextCancel(t *testing.T) {
	r, w := io.Pipe()
	defer w.Close()
	c, _ := newController(t, r, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, c.UpdateUntilEnter(ctx), context.Canceled)
}

func TestUpdateUntilEnter_KeepsUpdating(t *testing.T) {
	r, w := io.Pipe()
	c, fx := newController(t, r, func(d *Dependencies) { d.Interval = time.Millisecond })
	require.NoError(t, c.deps.Mirror.NotifyOriginalWorldChange(fx.worlds[0]))

	done := make(chan error, 1)
	go func() { done <- c.UpdateUntilEnter(context.Background()) }()

	time.Sleep(30 * time.Millisecond)
	_, err := w.Write([]byte("\n"))
	require.NoError(t, err)
	require.NoError(t, <-done)

	for _, f := range fx.worlds {
		assert.Positive(t, f.Steps, f.WorldName)
	}
	assert.NotEmpty(t, fx.mirror.Applied, "mirror synced on every update")
}

func TestCommands(t *testing.T) {
	t.Run("step", func(t *testing.T) {
		c, fx := newController(t, strings.NewReader("step 3\nstep\n\n"), nil)
		require.NoError(t, c.UpdateUntilEnter(context.Background()))

		for _, f := range fx.worlds {
			assert.Equal(t, 4, f.Steps)
		}
		assert.Contains(t, fx.out.String(), "stepped 2 worlds 3 iterations")
	})

	t.Run("step rejects bad count", func(t *testing.T) {
		c, fx := newController(t, strings.NewReader("step -2\n\n"), nil)
		require.NoError(t, c.UpdateUntilEnter(context.Background()))

		assert.Zero(t, fx.worlds[0].Steps)
		assert.Contains(t, fx.out.String(), "error: step count must be a positive integer")
	})

	t.Run("pause keeps manual steps", func(t *testing.T) {
		c, fx := newController(t, strings.NewReader("pause\nstep 2\nstatus\n\n"), nil)
		require.NoError(t, c.UpdateUntilEnter(context.Background()))

		for _, f := range fx.worlds {
			assert.Equal(t, 2, f.Steps)
		}
		assert.Contains(t, fx.out.String(), "2 worlds paused", "still paused after step")
	})

	t.Run("continue resumes paused worlds", func(t *testing.T) {
		c, fx := newController(t, strings.NewReader("pause\n\n"), nil)
		require.NoError(t, c.UpdateUntilEnter(context.Background()))

		assert.False(t, c.paused)
		for _, f := range fx.worlds {
			assert.False(t, f.Paused)
		}
		fx.mgr.Update(1)
		assert.Equal(t, 1, fx.worlds[0].Steps)
	})

	t.Run("resume", func(t *testing.T) {
		c, fx := newController(t, strings.NewReader("pause\nresume\n\n"), nil)
		require.NoError(t, c.UpdateUntilEnter(context.Background()))

		assert.False(t, fx.worlds[1].Paused)
		assert.Contains(t, fx.out.String(), "worlds running")
	})

	t.Run("mirror", func(t *testing.T) {
		c, fx := newController(t, strings.NewReader("mirror 1\nm 7\n\n"), nil)
		require.NoError(t, c.UpdateUntilEnter(context.Background()))

		assert.Same(t, fx.worlds[1], c.deps.Mirror.Original())
		assert.Len(t, fx.mirror.Applied, 1)
		out := fx.out.String()
		assert.Contains(t, out, "mirroring bullet_1 (bullet)")
		assert.Contains(t, out, "error: no world 7, have 2")
	})

	t.Run("mirror without mirror world", func(t *testing.T) {
		c, fx := newController(t, strings.NewReader("mirror 0\n\n"), func(d *Dependencies) { d.Mirror = nil })
		require.NoError(t, c.UpdateUntilEnter(context.Background()))
		assert.Contains(t, fx.out.String(), "error: no mirror world")
	})

	t.Run("save", func(t *testing.T) {
		dir := t.TempDir()
		c, _ := newController(t, strings.NewReader("save\n\n"), func(d *Dependencies) { d.SnapshotDir = dir })
		require.NoError(t, c.UpdateUntilEnter(context.Background()))

		for _, name := range []string{"ode_0", "bullet_1"} {
			_, err := os.Stat(filepath.Join(dir, "STest_pause_1_"+name+".world"))
			assert.NoError(t, err, name)
		}
	})

	t.Run("status", func(t *testing.T) {
		sess := session.NewContext()
		run := core.NewRun("a", "b", []string{"ode", "bullet"}, []string{"ode_0", "bullet_1"}, core.DefaultSweepParams())
		sess.SetRun(run)
		require.NoError(t, sess.Report(&core.Failure{Number: 2, Cell: core.Cell{Index: 5}}))

		c, fx := newController(t, strings.NewReader("pause\nstatus\n\n"), func(d *Dependencies) { d.Session = sess })
		require.NoError(t, c.deps.Mirror.NotifyOriginalWorldChange(fx.worlds[0]))
		require.NoError(t, c.UpdateUntilEnter(context.Background()))

		out := fx.out.String()
		assert.Contains(t, out, "run "+run.ID.String()+": a vs b on ode, bullet")
		assert.Contains(t, out, "last failure: #2 at cell 5")
		assert.Contains(t, out, "2 worlds paused")
		assert.Contains(t, out, "[0] ode_0 (ode) mirrored")
		assert.Contains(t, out, "[1] bullet_1 (bullet)\n")
	})

	t.Run("contacts", func(t *testing.T) {
		c, fx := newController(t, strings.NewReader("contacts\n\n"), nil)
		var s core.BasicState
		s.SetPosition(mgl64.Vec3{5, 0, 0})
		fx.worlds[1].SetBasicModelState("b", s)
		require.NoError(t, c.UpdateUntilEnter(context.Background()))

		out := fx.out.String()
		assert.Contains(t, out, "ode_0: a <-> b:")
		assert.Contains(t, out, "bullet_1: no contact")
	})

	t.Run("help and unknown", func(t *testing.T) {
		c, fx := newController(t, strings.NewReader("help\nfly\n\n"), nil)
		require.NoError(t, c.UpdateUntilEnter(context.Background()))

		out := fx.out.String()
		assert.Contains(t, out, "step  [n]")
		assert.Contains(t, out, "error: unknown command: fly")
	})
}

func TestPause_PrintsFailure(t *testing.T) {
	c, fx := newController(t, strings.NewReader("save\n\n"), func(d *Dependencies) { d.SnapshotDir = t.TempDir() })

	f := &core.Failure{
		Number:   3,
		Cell:     core.Cell{Position: mgl64.Vec3{0.5, 0, -0.25}},
		Positive: 0.5,
		Negative: 0.5,
		Votes: []core.Vote{
			{World: "ode_0", Colliding: true},
			{World: "bullet_1"},
		},
	}
	require.NoError(t, c.Pause(context.Background(), f))

	out := fx.out.String()
	assert.Contains(t, out, "FAIL 3: minimum agreement not reached at (0.5000, 0.0000, -0.2500)")
	assert.Contains(t, out, "colliding: ode_0")
	assert.Contains(t, out, "not colliding: bullet_1")
	assert.Contains(t, out, "STest_fail_2_pause_1_ode_0.world")
	assert.Nil(t, c.current)
}
