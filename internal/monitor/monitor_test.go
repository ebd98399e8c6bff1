package monitor

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OCAP2/collision-benchmark/internal/session"
	"github.com/OCAP2/collision-benchmark/pkg/core"
)

func newRun() *core.Run {
	return core.NewRun("unit_box_1", "unit_sphere_2", []string{"ode", "bullet"}, []string{"ode_0", "bullet_1"}, core.DefaultSweepParams())
}

func readStatus(t *testing.T, path string) Status {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var st Status
	require.NoError(t, json.Unmarshal(data, &st))
	return st
}

func TestGetStatus(t *testing.T) {
	sess := session.NewContext()
	svc := NewService(Dependencies{
		Session:  sess,
		Progress: func() (int, int) { return 9, 27 },
		Pending:  func() int { return 2 },
	})

	_, ok := svc.GetStatus()
	assert.False(t, ok, "no run yet")

	run := newRun()
	sess.SetRun(run)
	require.NoError(t, sess.Report(&core.Failure{Number: 4}))

	st, ok := svc.GetStatus()
	require.True(t, ok)
	assert.Equal(t, run.ID, st.RunID)
	assert.Equal(t, "unit_box_1", st.Model1)
	assert.Equal(t, []string{"ode", "bullet"}, st.Engines)
	assert.Equal(t, 9, st.CellsDone)
	assert.Equal(t, 27, st.CellsTotal)
	assert.InDelta(t, 33.333, st.Percent, 1e-3)
	assert.Equal(t, 4, st.Failures)
	assert.Equal(t, 2, st.Pending)
	assert.False(t, st.Finished)

	sess.SetSummary(&core.Summary{RunID: run.ID, Failures: 5, Duration: 1500 * time.Millisecond})
	st, _ = svc.GetStatus()
	assert.True(t, st.Finished)
	assert.Equal(t, 5, st.Failures)
	assert.Equal(t, "1.5s", st.Elapsed)
}

func TestWriteStatus(t *testing.T) {
	path := filepath.Join(t.TempDir(), "status.json")
	sess := session.NewContext()
	svc := NewService(Dependencies{Session: sess, StatusFile: path})

	require.NoError(t, svc.WriteStatus())
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err), "nothing written before a run")

	sess.SetRun(newRun())
	require.NoError(t, svc.WriteStatus())
	assert.Equal(t, "unit_sphere_2", readStatus(t, path).Model2)

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestStartStop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "status.json")
	sess := session.NewContext()
	sess.SetRun(newRun())

	var done int
	svc := NewService(Dependencies{
		Session:    sess,
		Progress:   func() (int, int) { return done, 8 },
		StatusFile: path,
		Interval:   5 * time.Millisecond,
	})

	require.NoError(t, svc.Start())
	require.NoError(t, svc.Start(), "second start is a no-op")
	assert.True(t, svc.IsRunning())

	assert.Eventually(t, func() bool {
		_, err := os.Stat(path)
		return err == nil
	}, time.Second, 5*time.Millisecond)

	svc.Stop()
	svc.Stop()
	assert.False(t, svc.IsRunning())

	// final write on stop
	assert.Equal(t, 8, readStatus(t, path).CellsTotal)
}

func TestStart_NoStatusFile(t *testing.T) {
	svc := NewService(Dependencies{Session: session.NewContext()})
	require.NoError(t, svc.Start())
	assert.False(t, svc.IsRunning())
	svc.Stop()
}
