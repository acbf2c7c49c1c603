// Package geometry provides basic geometric types used throughout the application.
package geometry

import (
	"fmt"
	"math"
)

// PointInt represents a 2D point with integer pixel coordinates.
type PointInt struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Box is an axis-aligned bounding box in pixel coordinates.
// A well-formed box has XMin < XMax and YMin < YMax.
type Box struct {
	XMin int `json:"xmin"`
	YMin int `json:"ymin"`
	XMax int `json:"xmax"`
	YMax int `json:"ymax"`
}

// NewBox creates a Box from the four corner coordinates.
func NewBox(xmin, ymin, xmax, ymax int) Box {
	return Box{XMin: xmin, YMin: ymin, XMax: xmax, YMax: ymax}
}

// BoxFromFloats creates a Box by rounding floating-point coordinates,
// as produced by detection models.
func BoxFromFloats(xmin, ymin, xmax, ymax float64) Box {
	return Box{
		XMin: int(math.Round(xmin)),
		YMin: int(math.Round(ymin)),
		XMax: int(math.Round(xmax)),
		YMax: int(math.Round(ymax)),
	}
}

// Width returns the box width in pixels.
func (b Box) Width() int {
	return b.XMax - b.XMin
}

// Height returns the box height in pixels.
func (b Box) Height() int {
	return b.YMax - b.YMin
}

// Valid reports whether the box has positive width and height.
func (b Box) Valid() bool {
	return b.Width() > 0 && b.Height() > 0
}

// Center returns the box center, truncated to integer coordinates.
func (b Box) Center() PointInt {
	return PointInt{
		X: (b.XMin + b.XMax) / 2,
		Y: (b.YMin + b.YMax) / 2,
	}
}

func (b Box) String() string {
	return fmt.Sprintf("(%d,%d)-(%d,%d)", b.XMin, b.YMin, b.XMax, b.YMax)
}

// SquareRegion is a square pixel region, possibly extending outside an
// image's bounds.
type SquareRegion struct {
	Left int
	Top  int
	Side int
}

// Right returns the exclusive right edge of the region.
func (s SquareRegion) Right() int { return s.Left + s.Side }

// Bottom returns the exclusive bottom edge of the region.
func (s SquareRegion) Bottom() int { return s.Top + s.Side }

// PaddedSquare expands the box by factor times its width and height on each
// side, then forces the result square by growing the shorter dimension
// symmetrically around the box center. The region may extend outside any
// image that contains the box.
func (b Box) PaddedSquare(factor float64) SquareRegion {
	padX := int(float64(b.Width()) * factor)
	padY := int(float64(b.Height()) * factor)

	halfX := b.Width()/2 + padX
	halfY := b.Height()/2 + padY
	half := halfX
	if halfY > half {
		half = halfY
	}

	c := b.Center()
	return SquareRegion{
		Left: c.X - half,
		Top:  c.Y - half,
		Side: 2 * half,
	}
}
