package streaming

import (
	"encoding/json"
	"fmt"

	"github.com/OCAP2/collision-benchmark/pkg/core"
	"github.com/google/uuid"
)

// Message type constants matching the streaming protocol.
const (
	TypeHello            = "hello"
	TypeModelInfo        = "model_info"
	TypePoseInfo         = "pose_info"
	TypeWorldState       = "world_state"
	TypeRunStart         = "run_start"
	TypeRunEnd           = "run_end"
	TypeAgreementFailure = "agreement_failure"
)

// Envelope wraps all messages sent over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// AckMessage is the server's acknowledgement response.
type AckMessage struct {
	Type string `json:"type"` // always "ack"
	For  string `json:"for"`  // the message type being acknowledged
}

// HelloPayload identifies the client to a visualization server.
type HelloPayload struct {
	Client  string   `json:"client"`
	Worlds  []string `json:"worlds,omitempty"`
	Engines []string `json:"engines,omitempty"`
}

// Geometry describes a marker shape. Exactly one of the sizes is set.
type Geometry struct {
	Kind   string    `json:"kind"` // box, sphere or cylinder
	Size   []float64 `json:"size,omitempty"`
	Radius float64   `json:"radius,omitempty"`
	Length float64   `json:"length,omitempty"`
}

// ModelInfoPayload announces a marker model to the visualization client.
type ModelInfoPayload struct {
	Name     string    `json:"name"`
	Geometry Geometry  `json:"geometry"`
	Pose     core.Pose `json:"pose"`
	Color    string    `json:"color,omitempty"`
}

// PoseInfoPayload moves a previously announced model.
type PoseInfoPayload struct {
	Name string    `json:"name"`
	Pose core.Pose `json:"pose"`
}

// WorldStatePayload carries a mirrored world state.
type WorldStatePayload struct {
	State core.WorldState `json:"state"`
}

// RunStartPayload announces an agreement run.
type RunStartPayload struct {
	Run *core.Run `json:"run"`
}

// RunEndPayload closes an agreement run.
type RunEndPayload struct {
	RunID   uuid.UUID     `json:"runId"`
	Summary *core.Summary `json:"summary"`
}

// AgreementFailurePayload carries one failed grid cell.
type AgreementFailurePayload struct {
	Failure *core.Failure `json:"failure"`
}

// Marshal builds a JSON-encoded Envelope from a message type and payload.
func Marshal(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	data, err := json.Marshal(Envelope{Type: msgType, Payload: raw})
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return data, nil
}
