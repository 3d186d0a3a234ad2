package protocol

import (
	"github.com/go-gl/mathgl/mgl32"

	"voxelcraft.ai/internal/sim/world/chunk"
)

// VIEW (client -> server)
type ViewMsg struct {
	Type string     `json:"type"`
	Pos  [3]float32 `json:"pos"`
	Dir  [3]float32 `json:"dir"`
}

func (m ViewMsg) Position() mgl32.Vec3  { return mgl32.Vec3(m.Pos) }
func (m ViewMsg) Direction() mgl32.Vec3 { return mgl32.Vec3(m.Dir) }

const (
	EditBreak = "BREAK"
	EditPlace = "PLACE"
)

// EDIT (client -> server). The target is picked from the last VIEW.
type EditMsg struct {
	Type   string `json:"type"`
	Action string `json:"action"`
	Block  int    `json:"block,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	SessionID       string `json:"session_id"`
	ChunkSize       [3]int `json:"chunk_size"`
	AtlasSize       int    `json:"atlas_size"`
	VertexStride    int    `json:"vertex_stride"`
	Seed            int32  `json:"seed"`
	CatalogDigest   string `json:"catalog_digest,omitempty"`
}

// MESH (server -> client)
type MeshMsg struct {
	Type     string    `json:"type"`
	CX       int       `json:"cx"`
	CZ       int       `json:"cz"`
	Version  uint64    `json:"version"`
	Vertices []float32 `json:"vertices"`
	Indices  []uint32  `json:"indices"`
}

// NewMeshMsg flattens m into the VertexStride layout.
func NewMeshMsg(c chunk.Coords, m chunk.Mesh) MeshMsg {
	out := MeshMsg{
		Type:     TypeMesh,
		CX:       c.X,
		CZ:       c.Z,
		Version:  m.Version,
		Vertices: make([]float32, 0, len(m.Vertices)*VertexStride),
		Indices:  append([]uint32(nil), m.Indices...),
	}
	for _, v := range m.Vertices {
		out.Vertices = append(out.Vertices,
			v.Position[0], v.Position[1], v.Position[2],
			v.Color[0], v.Color[1], v.Color[2],
			v.UV[0], v.UV[1],
			v.AO,
		)
	}
	return out
}

// UNLOAD (server -> client)
type UnloadMsg struct {
	Type string `json:"type"`
	CX   int    `json:"cx"`
	CZ   int    `json:"cz"`
}

// EDIT_RESULT (server -> client)
type EditResultMsg struct {
	Type  string `json:"type"`
	OK    bool   `json:"ok"`
	Code  string `json:"code,omitempty"`
	Pos   [3]int `json:"pos"`
	Block int    `json:"block"`
}

// ERROR (server -> client)
type ErrorMsg struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}
