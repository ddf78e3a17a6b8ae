// Package lightmap packs per-face lightmaps into fixed-size atlas pages.
package lightmap

import (
	"image"

	"golang.org/x/image/draw"
)

// DefaultPageSize is the edge length of a page in pixels.
const DefaultPageSize = 512

// whiteBlock is the edge of the reserved white square in the page's
// bottom-right corner, sampled by unlit faces.
const whiteBlock = 2

// Placement maps a face's normalized lightmap coordinates into its page:
// page_uv = uv * Scale + Offset.
type Placement struct {
	OffsetX, OffsetY float32
	ScaleX, ScaleY   float32
}

// Apply transforms a face-local coordinate into page space.
func (p Placement) Apply(u, v float32) (float32, float32) {
	return u*p.ScaleX + p.OffsetX, v*p.ScaleY + p.OffsetY
}

// Page is one lightmap atlas texture. Faces are packed with a one-pixel
// border copied from their edge luxels.
type Page struct {
	Size   int
	Pixels *image.RGBA
	// Mips holds levels 1..n after Finalize; level 0 is Pixels.
	Mips  []*image.RGBA
	Faces int

	root      rectNode
	finalized bool
}

// NewPage returns an empty page with its white block in place. The last
// whiteBlock rows are kept out of the allocator.
func NewPage(size int) *Page {
	p := &Page{
		Size:   size,
		Pixels: image.NewRGBA(image.Rect(0, 0, size, size)),
		root:   rectNode{w: size, h: size - whiteBlock},
	}
	for y := size - whiteBlock; y < size; y++ {
		for x := size - whiteBlock; x < size; x++ {
			i := p.Pixels.PixOffset(x, y)
			copy(p.Pixels.Pix[i:i+4], []byte{255, 255, 255, 255})
		}
	}
	return p
}

// White returns the placement that samples the white block.
func (p *Page) White() Placement {
	c := (float32(p.Size) - whiteBlock/2) / float32(p.Size)
	return Placement{OffsetX: c, OffsetY: c}
}

// Finalized reports whether Finalize has run.
func (p *Page) Finalized() bool {
	return p.finalized
}

// Add packs a face's lighting. ok is false when the page has no room.
func (p *Page) Add(f Face) (pl Placement, ok bool) {
	if p.finalized {
		return pl, false
	}
	w, h := f.Width+2, f.Height+2
	node := p.root.allocate(w, h)
	if node == nil {
		return pl, false
	}

	src := f.pixels()
	for y := 0; y < h; y++ {
		sy := clamp(y-1, 0, f.Height-1)
		for x := 0; x < w; x++ {
			sx := clamp(x-1, 0, f.Width-1)
			si := (sy*f.Width + sx) * 4
			di := p.Pixels.PixOffset(node.x+x, node.y+y)
			copy(p.Pixels.Pix[di:di+4], src[si:si+4])
		}
	}
	p.Faces++

	size := float32(p.Size)
	return Placement{
		OffsetX: float32(node.x+1) / size,
		OffsetY: float32(node.y+1) / size,
		ScaleX:  float32(f.Width) / size,
		ScaleY:  float32(f.Height) / size,
	}, true
}

// Finalize builds the mip chain down to 1x1. Further Adds are not allowed.
func (p *Page) Finalize() {
	if p.finalized {
		return
	}
	p.finalized = true

	var src image.Image = p.Pixels
	for s := p.Size / 2; s >= 1; s /= 2 {
		dst := image.NewRGBA(image.Rect(0, 0, s, s))
		draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
		p.Mips = append(p.Mips, dst)
		src = dst
	}
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
