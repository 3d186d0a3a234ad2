package protocol

import "encoding/json"

const Version = "1.0"

// Message types.
const (
	TypeView       = "VIEW"
	TypeEdit       = "EDIT"
	TypeWelcome    = "WELCOME"
	TypeMesh       = "MESH"
	TypeUnload     = "UNLOAD"
	TypeEditResult = "EDIT_RESULT"
	TypeError      = "ERROR"
)

// VertexStride is the number of floats per vertex in MESH:
// position(3) color(3) uv(2) ao(1).
const VertexStride = 9

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}
