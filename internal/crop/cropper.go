// Package crop turns raw images and bounding boxes into display-ready
// square thumbnails, and caches the results in a bounded memory tier backed
// by an optional on-disk store.
package crop

import (
	"errors"
	"image"
	"image/color"
	"image/draw"

	xdraw "golang.org/x/image/draw"

	"cell-review/pkg/geometry"
)

// ErrInvalidBox indicates a detection box with non-positive width or height.
var ErrInvalidBox = errors.New("invalid box geometry")

// Crop extracts a padded, forced-square region around box and resamples it
// to a targetSize x targetSize buffer.
//
// The box is expanded by paddingFactor times its width and height on each
// side, then squared by growing the shorter dimension symmetrically around
// the box center. Pixels outside the source image are black rather than
// clamped, so the annotator keeps a meaningful coordinate frame. The crop
// is assembled at the source bit depth and only flattened to 8-bit display
// range after resampling, so 16-bit sources lose no precision during the
// crop arithmetic. Same inputs always produce bit-identical output.
func Crop(src image.Image, box geometry.Box, paddingFactor float64, targetSize int) (*image.RGBA, error) {
	if !box.Valid() {
		return nil, ErrInvalidBox
	}
	if targetSize <= 0 {
		targetSize = 1
	}

	region := box.PaddedSquare(paddingFactor)

	// Assemble the square at 16 bits per channel on an opaque black canvas.
	canvas := image.NewRGBA64(image.Rect(0, 0, region.Side, region.Side))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.Black), image.Point{}, draw.Src)

	srcBounds := src.Bounds()
	x0 := maxInt(region.Left, srcBounds.Min.X)
	y0 := maxInt(region.Top, srcBounds.Min.Y)
	x1 := minInt(region.Right(), srcBounds.Max.X)
	y1 := minInt(region.Bottom(), srcBounds.Max.Y)

	if x0 < x1 && y0 < y1 {
		dst := image.Rect(x0-region.Left, y0-region.Top, x1-region.Left, y1-region.Top)
		draw.Draw(canvas, dst, src, image.Point{X: x0, Y: y0}, draw.Src)
	}

	out := image.NewRGBA(image.Rect(0, 0, targetSize, targetSize))
	xdraw.BiLinear.Scale(out, out.Bounds(), canvas, canvas.Bounds(), xdraw.Src, nil)
	return out, nil
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
