package catalogs

import (
	"bytes"
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// BlockType identifies a block kind. Zero is Empty (air) and is never registered.
type BlockType uint8

const (
	Empty     BlockType = 0
	Bedrock   BlockType = 1
	Stone     BlockType = 2
	Dirt      BlockType = 3
	Grass     BlockType = 4
	OakLog    BlockType = 5
	OakLeaves BlockType = 6
	Water     BlockType = 7
)

var ErrDuplicateBlock = errors.New("block already registered")

const blocksSchemaURL = "https://voxelcraft.ai/schemas/blocks.schema.json"

//go:embed blocks.schema.json
var blocksSchema string

// Description is the static appearance of one block type.
type Description struct {
	Name     string
	Textures []string
	// TopTexture, SideTexture and BottomTexture index into Textures.
	TopTexture    uint8
	SideTexture   uint8
	BottomTexture uint8
	Color         mgl32.Vec3
	Opaque        bool
	// CullSelf hides faces between two blocks of this same type.
	CullSelf bool
}

// TextureIndex picks the face texture for a face normal.
func (d *Description) TextureIndex(dir mgl32.Vec3) uint8 {
	switch {
	case dir.Y() > 0.5:
		return d.TopTexture
	case dir.Y() < -0.5:
		return d.BottomTexture
	default:
		return d.SideTexture
	}
}

// TexturePath returns the texture reference at index i, or the first one when i is out of range.
func (d *Description) TexturePath(i uint8) string {
	if int(i) >= len(d.Textures) {
		if len(d.Textures) == 0 {
			return ""
		}
		return d.Textures[0]
	}
	return d.Textures[i]
}

// Registry maps block types to descriptions.
type Registry struct {
	defs   map[BlockType]*Description
	errDef *Description
	empty  *Description

	Digest string
}

func NewRegistry() *Registry {
	return &Registry{
		defs: map[BlockType]*Description{},
		errDef: &Description{
			Name:     "ERROR",
			Textures: []string{"block/error.png"},
			Color:    mgl32.Vec3{1, 1, 1},
			Opaque:   true,
		},
		empty: &Description{Name: "EMPTY"},
	}
}

func (r *Registry) Register(id BlockType, d Description) error {
	if id == Empty {
		return fmt.Errorf("register %s: id 0 is reserved for empty", d.Name)
	}
	if len(d.Textures) == 0 {
		return fmt.Errorf("register %s: no textures", d.Name)
	}
	for _, ti := range []uint8{d.TopTexture, d.SideTexture, d.BottomTexture} {
		if int(ti) >= len(d.Textures) {
			return fmt.Errorf("register %s: texture index %d out of range", d.Name, ti)
		}
	}
	if existing, ok := r.defs[id]; ok {
		return fmt.Errorf("register %s (id %d, existing %s): %w", d.Name, id, existing.Name, ErrDuplicateBlock)
	}
	dd := d
	dd.Textures = append([]string(nil), d.Textures...)
	r.defs[id] = &dd
	return nil
}

// Describe never fails: Empty gets a non-opaque description with no textures
// and unknown ids get the error description.
func (r *Registry) Describe(id BlockType) *Description {
	if id == Empty {
		return r.empty
	}
	if d, ok := r.defs[id]; ok {
		return d
	}
	return r.errDef
}

func (r *Registry) Known(id BlockType) bool {
	_, ok := r.defs[id]
	return ok
}

// IsOpaque reports whether id hides the faces of its neighbors.
func (r *Registry) IsOpaque(id BlockType) bool {
	if id == Empty {
		return false
	}
	return r.Describe(id).Opaque
}

// Types returns the registered ids in ascending order.
func (r *Registry) Types() []BlockType {
	out := make([]BlockType, 0, len(r.defs))
	for id := range r.defs {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ErrorDescription is what unknown ids resolve to.
func (r *Registry) ErrorDescription() *Description {
	return r.errDef
}

type blockDef struct {
	ID       int         `json:"id"`
	Name     string      `json:"name"`
	Textures []string    `json:"textures"`
	Top      uint8       `json:"top,omitempty"`
	Side     uint8       `json:"side,omitempty"`
	Bottom   uint8       `json:"bottom,omitempty"`
	Color    *[3]float32 `json:"color,omitempty"`
	Opaque   *bool       `json:"opaque,omitempty"`
	CullSelf bool        `json:"cull_self,omitempty"`
}

// Load reads <configDir>/blocks.json.
func Load(configDir string) (*Registry, error) {
	raw, err := os.ReadFile(filepath.Join(configDir, "blocks.json"))
	if err != nil {
		return nil, err
	}
	return Parse(raw)
}

// Parse validates raw against the block catalog schema and builds a registry.
func Parse(raw []byte) (*Registry, error) {
	schema, err := compileSchema()
	if err != nil {
		return nil, err
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("blocks.json: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("blocks.json: %w", err)
	}

	var defs []blockDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return nil, fmt.Errorf("blocks.json: %w", err)
	}
	r := NewRegistry()
	for _, d := range defs {
		desc := Description{
			Name:          d.Name,
			Textures:      d.Textures,
			TopTexture:    d.Top,
			SideTexture:   d.Side,
			BottomTexture: d.Bottom,
			Color:         mgl32.Vec3{1, 1, 1},
			Opaque:        true,
			CullSelf:      d.CullSelf,
		}
		if d.Color != nil {
			desc.Color = mgl32.Vec3(*d.Color)
		}
		if d.Opaque != nil {
			desc.Opaque = *d.Opaque
		}
		if err := r.Register(BlockType(d.ID), desc); err != nil {
			return nil, fmt.Errorf("blocks.json: %w", err)
		}
	}
	r.Digest = sha256Hex(raw)
	return r, nil
}

func compileSchema() (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	if err := c.AddResource(blocksSchemaURL, bytes.NewReader([]byte(blocksSchema))); err != nil {
		return nil, fmt.Errorf("blocks schema: %w", err)
	}
	s, err := c.Compile(blocksSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("blocks schema: %w", err)
	}
	return s, nil
}

// Defaults is the built-in block table.
func Defaults() *Registry {
	r := NewRegistry()
	must := func(id BlockType, d Description) {
		if d.Color == (mgl32.Vec3{}) {
			d.Color = mgl32.Vec3{1, 1, 1}
		}
		if err := r.Register(id, d); err != nil {
			panic(err)
		}
	}
	must(Bedrock, Description{Name: "BEDROCK", Textures: []string{"block/bedrock.png"}, Opaque: true})
	must(Stone, Description{Name: "STONE", Textures: []string{"block/stone.png"}, Opaque: true})
	must(Dirt, Description{Name: "DIRT", Textures: []string{"block/dirt.png"}, Opaque: true})
	must(Grass, Description{
		Name:          "GRASS",
		Textures:      []string{"block/grass_top.png", "block/grass_side.png", "block/dirt.png"},
		TopTexture:    0,
		SideTexture:   1,
		BottomTexture: 2,
		Opaque:        true,
	})
	must(OakLog, Description{
		Name:          "OAK_LOG",
		Textures:      []string{"block/log_oak.png", "block/log_oak_top.png"},
		TopTexture:    1,
		SideTexture:   0,
		BottomTexture: 1,
		Opaque:        true,
	})
	must(OakLeaves, Description{
		Name:     "OAK_LEAVES",
		Textures: []string{"block/leaves_oak.png"},
		Color:    mgl32.Vec3{0.2, 0.8, 0.3},
	})
	must(Water, Description{
		Name:     "WATER",
		Textures: []string{"block/water.png"},
		CullSelf: true,
	})
	return r
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
