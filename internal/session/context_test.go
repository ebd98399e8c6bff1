package session

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OCAP2/collision-benchmark/pkg/core"
)

func TestContext_Lifecycle(t *testing.T) {
	ctx := NewContext()
	assert.Nil(t, ctx.GetRun())
	assert.Nil(t, ctx.GetSummary())

	run := core.NewRun("a", "b", []string{"ode"}, []string{"world_ode"}, core.DefaultSweepParams())
	ctx.SetRun(run)
	assert.Same(t, run, ctx.GetRun())

	f := &core.Failure{Number: 1}
	require.NoError(t, ctx.Report(f))
	assert.Same(t, f, ctx.LastFailure())

	s := &core.Summary{RunID: run.ID}
	ctx.SetSummary(s)
	assert.Same(t, s, ctx.GetSummary())

	ctx.SetRun(core.NewRun("c", "d", nil, nil, core.DefaultSweepParams()))
	assert.Nil(t, ctx.GetSummary())
	assert.Nil(t, ctx.LastFailure())
}

func TestContext_ThreadSafe(t *testing.T) {
	ctx := NewContext()
	run := core.NewRun("a", "b", nil, nil, core.DefaultSweepParams())

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = ctx.Report(&core.Failure{Number: i})
			ctx.SetRun(run)
		}()
		go func() {
			defer wg.Done()
			_ = ctx.GetRun()
			_ = ctx.LastFailure()
		}()
	}
	wg.Wait()
	assert.Same(t, run, ctx.GetRun())
}
