package websocket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OCAP2/collision-benchmark/pkg/core"
	"github.com/OCAP2/collision-benchmark/pkg/streaming"
)

// testServer creates an httptest server that upgrades to WebSocket,
// records received messages, and sends acks for run_start/run_end.
func testServer(t *testing.T) (*httptest.Server, *messageLog) {
	t.Helper()
	ml := &messageLog{}

	upgrader := ws.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		defer c.Close()

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				return
			}

			var env streaming.Envelope
			if err := json.Unmarshal(msg, &env); err != nil {
				continue
			}
			ml.add(env)

			if env.Type == streaming.TypeRunStart || env.Type == streaming.TypeRunEnd {
				ack := streaming.AckMessage{Type: "ack", For: env.Type}
				data, _ := json.Marshal(ack)
				if err := c.WriteMessage(ws.TextMessage, data); err != nil {
					return
				}
			}
		}
	}))

	return srv, ml
}

type messageLog struct {
	mu       sync.Mutex
	messages []streaming.Envelope
}

func (m *messageLog) add(env streaming.Envelope) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, env)
}

func (m *messageLog) all() []streaming.Envelope {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]streaming.Envelope, len(m.messages))
	copy(cp, m.messages)
	return cp
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestStartAndEndRun(t *testing.T) {
	srv, ml := testServer(t)
	defer srv.Close()

	b := New(Config{URL: wsURL(srv), Secret: "test"}, nil)
	require.NoError(t, b.Init())
	defer b.Close()

	run := core.NewRun("unit_box_1", "unit_box_2", []string{"ode"}, []string{"world_ode"}, core.DefaultSweepParams())
	require.NoError(t, b.StartRun(run))
	require.NoError(t, b.EndRun(&core.Summary{RunID: run.ID, Cells: 27}))

	msgs := ml.all()
	require.GreaterOrEqual(t, len(msgs), 2)
	assert.Equal(t, streaming.TypeRunStart, msgs[0].Type)
	assert.Equal(t, streaming.TypeRunEnd, msgs[len(msgs)-1].Type)

	var start streaming.RunStartPayload
	require.NoError(t, json.Unmarshal(msgs[0].Payload, &start))
	assert.Equal(t, run.ID, start.Run.ID)

	var end streaming.RunEndPayload
	require.NoError(t, json.Unmarshal(msgs[len(msgs)-1].Payload, &end))
	assert.Equal(t, run.ID, end.RunID)
	assert.Equal(t, 27, end.Summary.Cells)
}

func TestFailuresStreamed(t *testing.T) {
	srv, ml := testServer(t)
	defer srv.Close()

	b := New(Config{URL: wsURL(srv), Secret: "s"}, nil)
	require.NoError(t, b.Init())
	defer b.Close()

	run := core.NewRun("a", "b", []string{"ode", "bullet"}, []string{"world_ode", "world_bullet"}, core.DefaultSweepParams())
	require.NoError(t, b.StartRun(run))

	require.NoError(t, b.RecordFailure(&core.Failure{RunID: run.ID, Number: 1}))
	require.NoError(t, b.RecordFailure(&core.Failure{RunID: run.ID, Number: 2}))
	assert.Equal(t, int64(2), b.Sent())

	require.NoError(t, b.EndRun(&core.Summary{RunID: run.ID, Failures: 2}))

	// Give a moment for all messages to arrive at server.
	time.Sleep(50 * time.Millisecond)

	types := make(map[string]int)
	var numbers []int
	for _, m := range ml.all() {
		types[m.Type]++
		if m.Type == streaming.TypeAgreementFailure {
			var p streaming.AgreementFailurePayload
			require.NoError(t, json.Unmarshal(m.Payload, &p))
			numbers = append(numbers, p.Failure.Number)
		}
	}

	assert.Equal(t, 1, types[streaming.TypeRunStart])
	assert.Equal(t, 1, types[streaming.TypeRunEnd])
	assert.Equal(t, 2, types[streaming.TypeAgreementFailure])
	assert.Equal(t, []int{1, 2}, numbers)
}

func TestInitUnreachable(t *testing.T) {
	b := New(Config{URL: "ws://127.0.0.1:1/collect"}, nil)
	assert.Error(t, b.Init())
}
