package atlas

import (
	"fmt"
	"image"
	"image/png"
	"io"
	"sync"

	"golang.org/x/image/draw"

	"voxelcraft.ai/internal/atlas/rectpack"
)

// ImageTexture keeps the atlas in memory with a full mip chain. It backs the
// atlas when there is no GPU, e.g. when the atlas is served to remote viewers.
type ImageTexture struct {
	mu      sync.RWMutex
	levels  []*image.RGBA
	uploads int
	unit    int
}

func NewImageTexture(size, mipLevels int) *ImageTexture {
	if mipLevels < 1 {
		mipLevels = 1
	}
	t := &ImageTexture{unit: -1}
	for i, s := 0, size; i < mipLevels && s > 0; i, s = i+1, s/2 {
		t.levels = append(t.levels, image.NewRGBA(image.Rect(0, 0, s, s)))
	}
	return t
}

func (t *ImageTexture) Upload(at rectpack.Rect, pixels *image.RGBA) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	base := t.levels[0]
	dst := image.Rect(int(at.X), int(at.Y), int(at.X+at.W), int(at.Y+at.H))
	if !dst.In(base.Bounds()) {
		return fmt.Errorf("upload %v outside texture %v", dst, base.Bounds())
	}
	draw.Draw(base, dst, pixels, pixels.Bounds().Min, draw.Src)
	t.uploads++
	return nil
}

func (t *ImageTexture) GenerateMipmaps() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i := 1; i < len(t.levels); i++ {
		src, dst := t.levels[i-1], t.levels[i]
		draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	}
}

func (t *ImageTexture) Bind(unit int) {
	t.mu.Lock()
	t.unit = unit
	t.mu.Unlock()
}

// BoundUnit is the last unit passed to Bind, or -1.
func (t *ImageTexture) BoundUnit() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.unit
}

func (t *ImageTexture) Uploads() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.uploads
}

func (t *ImageTexture) Levels() int {
	return len(t.levels)
}

// Level returns a copy of mip level i.
func (t *ImageTexture) Level(i int) *image.RGBA {
	t.mu.RLock()
	defer t.mu.RUnlock()

	src := t.levels[i]
	out := image.NewRGBA(src.Bounds())
	copy(out.Pix, src.Pix)
	return out
}

// EncodePNG writes the base level.
func (t *ImageTexture) EncodePNG(w io.Writer) error {
	return png.Encode(w, t.Level(0))
}
