package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OCAP2/collision-benchmark/internal/manager"
	"github.com/OCAP2/collision-benchmark/internal/physics"
	"github.com/OCAP2/collision-benchmark/internal/physics/physicstest"
	"github.com/OCAP2/collision-benchmark/internal/viz"
	"github.com/OCAP2/collision-benchmark/pkg/core"
)

func fakeManager(n int) ([]*physicstest.Fake, *manager.Manager) {
	fs := make([]*physicstest.Fake, n)
	ws := make([]physics.World, n)
	for i := range fs {
		fs[i] = physicstest.New("w"+string(rune('0'+i)), "fake")
		ws[i] = fs[i]
	}
	return fs, manager.New(nil, ws...)
}

func TestLoadPair(t *testing.T) {
	tests := []struct {
		name    string
		shapes  []string
		models  []string
		want    []string
		wantErr bool
	}{
		{name: "two shapes", shapes: []string{"sphere", "cube"}, want: []string{"unit_sphere_0", "unit_cube_1"}},
		{name: "shape and model", shapes: []string{"cylinder"}, models: []string{"x.sdf"}, want: []string{"unit_cylinder_0", "model0"}},
		{name: "too many", shapes: []string{"sphere", "cube", "cube"}, wantErr: true},
		{name: "too few", models: []string{"x.sdf"}, wantErr: true},
		{name: "unknown shape", shapes: []string{"cone", "cube"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			for i, m := range tt.models {
				path := filepath.Join(dir, m)
				require.NoError(t, os.WriteFile(path, []byte("<sdf/>"), 0644))
				tt.models[i] = path
			}

			fs, mgr := fakeManager(2)
			names, err := LoadPair(mgr, tt.shapes, tt.models)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, names)
			for _, f := range fs {
				assert.ElementsMatch(t, tt.want, f.ModelIDs())
			}
		})
	}
}

func TestLoadPair_NotInAllWorlds(t *testing.T) {
	fs, mgr := fakeManager(2)
	fs[1].FailAdd = true

	_, err := LoadPair(mgr, []string{"sphere", "cube"}, nil)
	assert.ErrorIs(t, err, core.ErrLoadFailed)
}

func TestPlaceTouching(t *testing.T) {
	fs, mgr := fakeManager(2)
	names, err := LoadPair(mgr, []string{"cube", "cube"}, nil)
	require.NoError(t, err)

	var off core.BasicState
	off.SetPosition(mgl64.Vec3{3, -2, 1})
	mgr.SetBasicModelState(names[0], off)

	aabb1, aabb2, err := PlaceTouching(mgr, names[0], names[1], viz.BarAxis)
	require.NoError(t, err)

	assert.Equal(t, mgl64.Vec3{-0.5, -0.5, -0.5}, aabb1.Min)
	assert.Equal(t, mgl64.Vec3{0.5, 0.5, 0.5}, aabb2.Max)
	for _, f := range fs {
		assert.Equal(t, mgl64.Vec3{}, f.States[names[0]].Position)
		assert.Equal(t, mgl64.Vec3{0, 1, 0}, f.States[names[1]].Position)
	}

	st := mgr.CollisionState(names[0], names[1])
	assert.Len(t, st.Colliding, 2, "touching boxes report contact")
	assert.InDelta(t, 0, st.MaxDepth, 1e-9)
}

func TestPlaceTouching_MissingModel(t *testing.T) {
	_, mgr := fakeManager(1)
	_, _, err := PlaceTouching(mgr, "a", "b", viz.BarAxis)
	assert.ErrorIs(t, err, core.ErrSetupInconsistency)
}

func TestSetup(t *testing.T) {
	t.Cleanup(viper.Reset)

	logs := t.TempDir()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	configDir := AddCommonFlags(fs)
	fs.Int("iterations", 0, "")
	require.NoError(t, fs.Parse([]string{"--config-dir", t.TempDir(), "--logs-dir", logs, "--iterations", "7", "--log-level", "debug"}))

	ctx := context.Background()
	env, err := Setup(ctx, "collide", *configDir, fs, map[string]string{"iterations": "run.iterations"})
	require.NoError(t, err)

	assert.Equal(t, 7, viper.GetInt("run.iterations"))
	assert.Equal(t, "debug", viper.GetString("logLevel"))
	assert.False(t, env.OTel.Enabled())

	entries, err := os.ReadDir(logs)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Name(), "collide.")

	mgr, h, ld, err := env.Worlds([]string{"ode", "bullet"})
	require.NoError(t, err)
	assert.Equal(t, []string{"ode", "bullet"}, mgr.Engines())

	m, pub, err := env.Mirror(h, ld, mgr.Engines())
	require.NoError(t, err)
	assert.IsType(t, viz.NopPublisher{}, pub)
	require.NoError(t, m.NotifyOriginalWorldChange(mgr.World(0)))
	assert.NoError(t, m.Sync())

	env.ZeroLogger("database").Info().Msg("zerolog to file")
	env.Close(ctx)

	data, err := os.ReadFile(filepath.Join(logs, entries[0].Name()))
	require.NoError(t, err)
	assert.Contains(t, string(data), "Logging to file")
	assert.Contains(t, string(data), "zerolog to file")
}

func TestSetup_UnknownEngine(t *testing.T) {
	t.Cleanup(viper.Reset)

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	configDir := AddCommonFlags(fs)
	require.NoError(t, fs.Parse([]string{"--config-dir", t.TempDir(), "--logs-dir", t.TempDir()}))

	env, err := Setup(context.Background(), "collide", *configDir, fs, nil)
	require.NoError(t, err)
	defer env.Close(context.Background())

	_, _, _, err = env.Worlds([]string{"physx"})
	assert.ErrorIs(t, err, core.ErrEngineUnavailable)
}
