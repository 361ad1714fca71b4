package raster

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/png"

	"github.com/paintroom/paintroom/internal/model"
)

// Layer pairs an opaque snapshot with the display state needed to stack it.
type Layer struct {
	Snapshot model.Snapshot
	Visible  bool
	Opacity  float64
}

// Composite stacks visible layer snapshots bottom-to-top onto a white
// background and returns the result as PNG. Empty snapshots contribute
// nothing; per-layer opacity is applied through a uniform alpha mask.
func Composite(w, h int, layers []Layer) ([]byte, error) {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	for _, l := range layers {
		if !l.Visible || len(l.Snapshot) == 0 {
			continue
		}
		img, err := png.Decode(bytes.NewReader(l.Snapshot))
		if err != nil {
			return nil, err
		}
		op := l.Opacity
		if op < 0 {
			op = 0
		}
		if op > 1 {
			op = 1
		}
		mask := image.NewUniform(color.Alpha{A: uint8(op * 255)})
		draw.DrawMask(dst, dst.Bounds(), img, image.Point{}, mask, image.Point{}, draw.Over)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
