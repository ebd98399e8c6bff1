// internal/storage/storage_test.go
package storage_test

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OCAP2/collision-benchmark/internal/agreement"
	"github.com/OCAP2/collision-benchmark/internal/config"
	"github.com/OCAP2/collision-benchmark/internal/storage"
	"github.com/OCAP2/collision-benchmark/internal/storage/memory"
	"github.com/OCAP2/collision-benchmark/internal/storage/postgres"
	sqlitestorage "github.com/OCAP2/collision-benchmark/internal/storage/sqlite"
	"github.com/OCAP2/collision-benchmark/internal/storage/websocket"
	"github.com/OCAP2/collision-benchmark/pkg/core"
)

// Compile-time interface checks.
var (
	_ storage.Backend    = (*memory.Backend)(nil)
	_ storage.Uploadable = (*memory.Backend)(nil)
	_ storage.Backend    = (*postgres.Backend)(nil)
	_ storage.Backend    = (*sqlitestorage.Backend)(nil)
	_ storage.Backend    = (*websocket.Backend)(nil)

	_ agreement.Reporter = storage.Reporter{}
)

func TestNewBackend(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.StorageConfig
		want    any
		wantErr bool
	}{
		{"memory", config.StorageConfig{Type: "memory"}, &memory.Backend{}, false},
		{"default", config.StorageConfig{}, &memory.Backend{}, false},
		{"postgres", config.StorageConfig{Type: "postgres"}, &postgres.Backend{}, false},
		{"sqlite", config.StorageConfig{Type: "sqlite"}, &sqlitestorage.Backend{}, false},
		{"websocket", config.StorageConfig{Type: "websocket", Websocket: config.WebsocketConfig{URL: "ws://localhost:1"}}, &websocket.Backend{}, false},
		{"websocket without url", config.StorageConfig{Type: "websocket"}, nil, true},
		{"unknown", config.StorageConfig{Type: "mongo"}, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := storage.NewBackend(tt.cfg, nil, zerolog.Nop())
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.want, b)
		})
	}
}

type failingBackend struct{ memory.Backend }

func (*failingBackend) RecordFailure(*core.Failure) error { return errors.New("disk full") }

func TestReporter(t *testing.T) {
	b := memory.New(config.MemoryConfig{OutputDir: filepath.Join(t.TempDir(), "out")})
	require.NoError(t, b.StartRun(core.NewRun("a", "b", []string{"ode"}, []string{"world_ode"}, core.DefaultSweepParams())))

	r := storage.Reporter{Backend: b}
	f := &core.Failure{Number: 1, Votes: []core.Vote{{World: "world_ode", Colliding: true}}}
	require.NoError(t, r.Report(f))
	assert.Len(t, b.Failures(), 1)

	r = storage.Reporter{Backend: &failingBackend{}}
	assert.EqualError(t, r.Report(f), "disk full")
}
