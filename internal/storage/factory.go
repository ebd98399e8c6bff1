package storage

import (
	"fmt"
	"log/slog"

	"github.com/rs/zerolog"

	"github.com/OCAP2/collision-benchmark/internal/config"
	"github.com/OCAP2/collision-benchmark/internal/storage/memory"
	"github.com/OCAP2/collision-benchmark/internal/storage/postgres"
	sqlitestorage "github.com/OCAP2/collision-benchmark/internal/storage/sqlite"
	"github.com/OCAP2/collision-benchmark/internal/storage/websocket"
)

// NewBackend creates a storage backend based on configuration
func NewBackend(cfg config.StorageConfig, logger *slog.Logger, dbLog zerolog.Logger) (Backend, error) {
	switch cfg.Type {
	case "postgres":
		return postgres.New(postgres.Dependencies{Logger: dbLog}), nil
	case "sqlite":
		return sqlitestorage.New(cfg.SQLite, dbLog)
	case "websocket":
		if cfg.Websocket.URL == "" {
			return nil, fmt.Errorf("websocket backend requires storage.websocket.url")
		}
		return websocket.New(websocket.Config{URL: cfg.Websocket.URL, Secret: cfg.Websocket.Secret}, logger), nil
	case "memory", "":
		return memory.New(cfg.Memory), nil
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
