package atlas

import (
	"errors"
	"fmt"
	"image"
	"io"
	"log"
	"sync"

	"github.com/go-gl/mathgl/mgl32"

	"voxelcraft.ai/internal/atlas/rectpack"
	"voxelcraft.ai/internal/sim/catalogs"
)

var (
	ErrAtlasFull    = errors.New("atlas full")
	ErrEmptyTexture = errors.New("empty texture")
)

// Loader decodes a texture reference into RGBA pixels.
type Loader interface {
	Load(ref string) (*image.RGBA, error)
}

// Texture is the GPU side of the atlas.
type Texture interface {
	Upload(at rectpack.Rect, pixels *image.RGBA) error
	GenerateMipmaps()
	Bind(unit int)
}

// UV is a rectangle in normalized atlas coordinates.
type UV struct {
	Origin mgl32.Vec2
	Size   mgl32.Vec2
}

type key struct {
	block catalogs.BlockType
	tex   uint8
}

// Atlas lazily packs block face textures into one shared texture.
// It is safe for concurrent use.
type Atlas struct {
	reg    *catalogs.Registry
	loader Loader
	tex    Texture
	log    *log.Logger

	mu     sync.Mutex
	packer *rectpack.Packer
	size   float32
	uvs    map[key]UV
	byRef  map[string]UV
}

func New(size int, reg *catalogs.Registry, loader Loader, tex Texture, logger *log.Logger) *Atlas {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Atlas{
		reg:    reg,
		loader: loader,
		tex:    tex,
		log:    logger,
		packer: rectpack.New(uint32(size), uint32(size)),
		size:   float32(size),
		uvs:    map[key]UV{},
		byRef:  map[string]UV{},
	}
}

// UVs returns the atlas rectangle for the face of block id pointing along dir.
// Errors are not recoverable: the texture could not be decoded or the atlas
// has no room left for it.
func (a *Atlas) UVs(id catalogs.BlockType, dir mgl32.Vec3) (mgl32.Vec2, mgl32.Vec2, error) {
	desc := a.reg.Describe(id)
	ti := desc.TextureIndex(dir)
	k := key{block: id, tex: ti}

	a.mu.Lock()
	defer a.mu.Unlock()

	if uv, ok := a.uvs[k]; ok {
		return uv.Origin, uv.Size, nil
	}
	ref := desc.TexturePath(ti)
	uv, ok := a.byRef[ref]
	if !ok {
		var err error
		uv, err = a.place(ref)
		if err != nil {
			return mgl32.Vec2{}, mgl32.Vec2{}, err
		}
		a.byRef[ref] = uv
	}
	a.uvs[k] = uv
	return uv.Origin, uv.Size, nil
}

func (a *Atlas) place(ref string) (UV, error) {
	px, err := a.loader.Load(ref)
	if err != nil {
		return UV{}, fmt.Errorf("load texture %q: %w", ref, err)
	}
	b := px.Bounds()
	if b.Empty() {
		return UV{}, fmt.Errorf("load texture %q: %w", ref, ErrEmptyTexture)
	}
	r, ok := a.packer.Pack(rectpack.Size{W: uint32(b.Dx()), H: uint32(b.Dy())})
	if !ok {
		return UV{}, fmt.Errorf("texture %q (%dx%d): %w", ref, b.Dx(), b.Dy(), ErrAtlasFull)
	}
	if err := a.tex.Upload(r, px); err != nil {
		return UV{}, fmt.Errorf("upload texture %q: %w", ref, err)
	}
	a.tex.GenerateMipmaps()
	a.log.Printf("atlas: placed %s at (%d,%d) size (%d,%d)", ref, r.X, r.Y, r.W, r.H)

	return UV{
		Origin: mgl32.Vec2{float32(r.X) / a.size, float32(r.Y) / a.size},
		Size:   mgl32.Vec2{float32(r.W) / a.size, float32(r.H) / a.size},
	}, nil
}

var faceDirs = []mgl32.Vec3{{0, 1, 0}, {1, 0, 0}, {0, -1, 0}}

// Preload places every face texture of every registered block plus the error
// texture, so asset problems surface at startup.
func (a *Atlas) Preload() error {
	for _, id := range a.reg.Types() {
		for _, d := range faceDirs {
			if _, _, err := a.UVs(id, d); err != nil {
				return err
			}
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	ref := a.reg.ErrorDescription().TexturePath(0)
	if _, ok := a.byRef[ref]; ok {
		return nil
	}
	uv, err := a.place(ref)
	if err != nil {
		return err
	}
	a.byRef[ref] = uv
	return nil
}

// Bind exposes the atlas texture on a texture unit.
func (a *Atlas) Bind(unit int) {
	a.tex.Bind(unit)
}

// Len is the number of cached (block, face texture) entries.
func (a *Atlas) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.uvs)
}
