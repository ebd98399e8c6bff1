// Package viz streams mirror world state and helper markers to a
// visualization client over WebSocket.
package viz

import (
	"fmt"
	"log/slog"

	"github.com/OCAP2/collision-benchmark/internal/mirror"
	"github.com/OCAP2/collision-benchmark/internal/wsconn"
	"github.com/OCAP2/collision-benchmark/pkg/core"
	"github.com/OCAP2/collision-benchmark/pkg/streaming"
)

// ClientName identifies this tool in the hello message.
const ClientName = "collision-benchmark"

// Publisher sends typed messages to a visualization client.
type Publisher interface {
	Publish(msgType string, payload any) error
	Close() error
}

// NopPublisher discards everything. Used when no visualization URL is set.
type NopPublisher struct{}

func (NopPublisher) Publish(string, any) error { return nil }
func (NopPublisher) Close() error              { return nil }

// Config holds the visualization endpoint.
type Config struct {
	URL    string
	Secret string
}

// WSPublisher publishes over a wsconn.Conn.
type WSPublisher struct {
	conn   *wsconn.Conn
	logger *slog.Logger
}

// Connect dials the visualization server and completes the hello
// handshake. The hello message is replayed after reconnects.
func Connect(cfg Config, hello streaming.HelloPayload, logger *slog.Logger) (*WSPublisher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if hello.Client == "" {
		hello.Client = ClientName
	}

	conn := wsconn.New(logger)
	if err := conn.Dial(cfg.URL, cfg.Secret); err != nil {
		return nil, err
	}

	data, err := streaming.Marshal(streaming.TypeHello, hello)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	conn.SetReplay(data)
	if err := conn.SendAndWait(data, streaming.TypeHello, wsconn.AckTimeout); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("visualization handshake: %w", err)
	}

	logger.Info("Connected to visualization server", "url", cfg.URL)
	return &WSPublisher{conn: conn, logger: logger}, nil
}

// New returns a WSPublisher when cfg has a URL and a NopPublisher otherwise.
func New(cfg Config, hello streaming.HelloPayload, logger *slog.Logger) (Publisher, error) {
	if cfg.URL == "" {
		return NopPublisher{}, nil
	}
	return Connect(cfg, hello, logger)
}

func (p *WSPublisher) Publish(msgType string, payload any) error {
	return p.conn.SendEnvelope(msgType, payload)
}

func (p *WSPublisher) Close() error {
	return p.conn.Close()
}

// StateObserver returns a mirror observer forwarding each synced state as a
// world_state message. Publish errors are logged, never returned.
func StateObserver(p Publisher, logger *slog.Logger) mirror.Observer {
	if logger == nil {
		logger = slog.Default()
	}
	return func(state core.WorldState) {
		if err := p.Publish(streaming.TypeWorldState, streaming.WorldStatePayload{State: state}); err != nil {
			logger.Warn("Failed to publish world state", "world", state.Name, "error", err)
		}
	}
}

// FailureReporter publishes agreement failures. It satisfies the sweep's
// Reporter interface.
type FailureReporter struct {
	Publisher Publisher
}

func (r FailureReporter) Report(f *core.Failure) error {
	return r.Publisher.Publish(streaming.TypeAgreementFailure, streaming.AgreementFailurePayload{Failure: f})
}
