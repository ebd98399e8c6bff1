// Package websocket streams run data to a collector service over WebSocket.
package websocket

import (
	"log/slog"
	"sync/atomic"

	"github.com/OCAP2/collision-benchmark/internal/wsconn"
	"github.com/OCAP2/collision-benchmark/pkg/core"
	"github.com/OCAP2/collision-benchmark/pkg/streaming"
)

// Config holds WebSocket backend configuration.
type Config struct {
	URL    string
	Secret string
}

// Backend streams run data over WebSocket to a collector.
// It implements storage.Backend but not storage.Uploadable.
type Backend struct {
	conn *wsconn.Conn
	cfg  Config
	sent atomic.Int64
}

// New creates a new WebSocket storage backend.
func New(cfg Config, logger *slog.Logger) *Backend {
	return &Backend{
		conn: wsconn.New(logger),
		cfg:  cfg,
	}
}

// Init connects to the WebSocket server.
func (b *Backend) Init() error {
	return b.conn.Dial(b.cfg.URL, b.cfg.Secret)
}

// Close disconnects from the WebSocket server.
func (b *Backend) Close() error {
	return b.conn.Close()
}

// StartRun sends the run description and waits for server ack.
func (b *Backend) StartRun(run *core.Run) error {
	data, err := streaming.Marshal(streaming.TypeRunStart, streaming.RunStartPayload{Run: run})
	if err != nil {
		return err
	}

	// replayed after a reconnect
	b.conn.SetReplay(data)
	b.sent.Store(0)

	return b.conn.SendAndWait(data, streaming.TypeRunStart, wsconn.AckTimeout)
}

// RecordFailure sends a failure without waiting.
func (b *Backend) RecordFailure(f *core.Failure) error {
	b.sent.Add(1)
	return b.conn.SendEnvelope(streaming.TypeAgreementFailure, streaming.AgreementFailurePayload{Failure: f})
}

// EndRun sends the summary and waits for server ack.
func (b *Backend) EndRun(summary *core.Summary) error {
	data, err := streaming.Marshal(streaming.TypeRunEnd, streaming.RunEndPayload{RunID: summary.RunID, Summary: summary})
	if err != nil {
		return err
	}
	err = b.conn.SendAndWait(data, streaming.TypeRunEnd, wsconn.AckTimeout)

	// Clear cached state regardless of error.
	b.conn.SetReplay(nil)
	return err
}

// Sent returns the number of failures sent in the current run.
func (b *Backend) Sent() int64 {
	return b.sent.Load()
}
