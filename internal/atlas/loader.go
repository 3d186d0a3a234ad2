package atlas

import (
	"fmt"
	"hash/fnv"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"

	"golang.org/x/image/draw"
)

// DirLoader decodes textures from files under Root.
type DirLoader struct {
	Root string
}

func (l DirLoader) Load(ref string) (*image.RGBA, error) {
	f, err := os.Open(filepath.Join(l.Root, filepath.FromSlash(ref)))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return toRGBA(img), nil
}

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Bounds().Min == (image.Point{}) {
		return rgba
	}
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out
}

// PlaceholderLoader synthesizes a checkered square per reference, colored from
// a hash of the reference. Used when no texture directory is configured.
type PlaceholderLoader struct {
	Size int
}

func (l PlaceholderLoader) Load(ref string) (*image.RGBA, error) {
	size := l.Size
	if size <= 0 {
		size = 16
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(ref))
	sum := h.Sum32()
	base := color.RGBA{R: uint8(sum), G: uint8(sum >> 8), B: uint8(sum >> 16), A: 0xff}
	dark := color.RGBA{R: base.R / 2, G: base.G / 2, B: base.B / 2, A: 0xff}

	img := image.NewRGBA(image.Rect(0, 0, size, size))
	cell := size / 4
	if cell == 0 {
		cell = 1
	}
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			if (x/cell+y/cell)%2 == 0 {
				img.SetRGBA(x, y, base)
			} else {
				img.SetRGBA(x, y, dark)
			}
		}
	}
	return img, nil
}
