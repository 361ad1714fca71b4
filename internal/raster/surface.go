// Package raster is the reference drawing sink: an in-memory RGBA surface
// that replays stroke segments and round-trips full-layer snapshots as PNG.
// The session engine only ever sees the Sink capability and opaque snapshot
// bytes; everything pixel-shaped lives here.
package raster

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"

	"golang.org/x/image/vector"

	"github.com/paintroom/paintroom/internal/model"
)

// Surface is one layer's raster state.
type Surface struct {
	w, h int
	img  *image.RGBA
}

// NewSurface returns a fully transparent surface of the given dimensions.
func NewSurface(w, h int) *Surface {
	return &Surface{w: w, h: h, img: image.NewRGBA(image.Rect(0, 0, w, h))}
}

// StrokeLine paints one segment: a quad along the from→to line plus round
// end caps unless the style asks for butt caps. Zero-length segments stamp
// a single cap so taps still leave a mark.
func (s *Surface) StrokeLine(from, to model.Point, style model.StrokeStyle) {
	col := ParseColor(style.Color)
	half := style.Width / 2
	if half <= 0 {
		half = 0.5
	}

	z := vector.NewRasterizer(s.w, s.h)
	z.DrawOp = draw.Over

	dx, dy := to.X-from.X, to.Y-from.Y
	if dx == 0 && dy == 0 {
		discPath(z, from, half)
	} else {
		// Unit perpendicular scaled to half-width.
		l := math.Hypot(dx, dy)
		px, py := -dy/l*half, dx/l*half
		z.MoveTo(float32(from.X+px), float32(from.Y+py))
		z.LineTo(float32(to.X+px), float32(to.Y+py))
		z.LineTo(float32(to.X-px), float32(to.Y-py))
		z.LineTo(float32(from.X-px), float32(from.Y-py))
		z.ClosePath()
		if style.CapStyle != "butt" {
			discPath(z, from, half)
			discPath(z, to, half)
		}
	}
	z.Draw(s.img, s.img.Bounds(), image.NewUniform(col), image.Point{})
}

// Fill covers the whole surface with the given color at the given alpha.
// Used for the golden power-up overlay.
func (s *Surface) Fill(colorHex string, alpha float64) {
	c := ParseColor(colorHex)
	if alpha < 0 {
		alpha = 0
	}
	if alpha > 1 {
		alpha = 1
	}
	c.A = uint8(alpha * 255)
	draw.Draw(s.img, s.img.Bounds(), image.NewUniform(c), image.Point{}, draw.Over)
}

// Clear resets every pixel to fully transparent.
func (s *Surface) Clear() {
	for i := range s.img.Pix {
		s.img.Pix[i] = 0
	}
}

// Snapshot captures the full raster state as PNG bytes.
func (s *Surface) Snapshot() (model.Snapshot, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, s.img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Restore replaces the raster state with a previously captured snapshot.
// An empty snapshot restores a blank surface.
func (s *Surface) Restore(snap model.Snapshot) error {
	s.Clear()
	if len(snap) == 0 {
		return nil
	}
	img, err := png.Decode(bytes.NewReader(snap))
	if err != nil {
		return err
	}
	draw.Draw(s.img, s.img.Bounds(), img, image.Point{}, draw.Src)
	return nil
}

// discPath appends a circle approximated by four quadratic Béziers.
func discPath(z *vector.Rasterizer, c model.Point, r float64) {
	x, y := float32(c.X), float32(c.Y)
	rf := float32(r)
	z.MoveTo(x+rf, y)
	z.QuadTo(x+rf, y+rf, x, y+rf)
	z.QuadTo(x-rf, y+rf, x-rf, y)
	z.QuadTo(x-rf, y-rf, x, y-rf)
	z.QuadTo(x+rf, y-rf, x+rf, y)
	z.ClosePath()
}

// ParseColor accepts #rgb, #rrggbb and #rrggbbaa hex colors, defaulting to
// opaque black for anything unparseable.
func ParseColor(s string) color.NRGBA {
	black := color.NRGBA{A: 0xff}
	if len(s) == 0 || s[0] != '#' {
		return black
	}
	hex := s[1:]
	nib := func(b byte) (uint8, bool) {
		switch {
		case b >= '0' && b <= '9':
			return b - '0', true
		case b >= 'a' && b <= 'f':
			return b - 'a' + 10, true
		case b >= 'A' && b <= 'F':
			return b - 'A' + 10, true
		}
		return 0, false
	}
	byteAt := func(i int) (uint8, bool) {
		hi, ok1 := nib(hex[i])
		lo, ok2 := nib(hex[i+1])
		return hi<<4 | lo, ok1 && ok2
	}
	switch len(hex) {
	case 3:
		r, ok1 := nib(hex[0])
		g, ok2 := nib(hex[1])
		b, ok3 := nib(hex[2])
		if !(ok1 && ok2 && ok3) {
			return black
		}
		return color.NRGBA{R: r * 17, G: g * 17, B: b * 17, A: 0xff}
	case 6:
		r, ok1 := byteAt(0)
		g, ok2 := byteAt(2)
		b, ok3 := byteAt(4)
		if !(ok1 && ok2 && ok3) {
			return black
		}
		return color.NRGBA{R: r, G: g, B: b, A: 0xff}
	case 8:
		r, ok1 := byteAt(0)
		g, ok2 := byteAt(2)
		b, ok3 := byteAt(4)
		a, ok4 := byteAt(6)
		if !(ok1 && ok2 && ok3 && ok4) {
			return black
		}
		return color.NRGBA{R: r, G: g, B: b, A: a}
	}
	return black
}
