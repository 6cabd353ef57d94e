// Package raster holds the drawing surface strokes are accumulated on during a gesture.
package raster

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"golang.org/x/image/vector"
)

const (
	// DefaultSize is the side of the default square drawing surface.
	DefaultSize = 600
	// DefaultPenWidth is the stroke width used when an event doesn't carry one.
	DefaultPenWidth = 50
)

// kappa is the control-point distance for approximating a quarter circle with a cubic Bézier.
const kappa = 0.5522847498

// Point is a position on the surface, in pixels.
type Point struct {
	X, Y float32
}

// Canvas is a grayscale drawing surface. Pen strokes paint white on a black background,
// eraser strokes paint black.
type Canvas struct {
	img *image.Gray
	z   *vector.Rasterizer
}

// NewCanvas creates a blank surface of the given size.
func NewCanvas(width, height int) *Canvas {
	width, height = max(width, 1), max(height, 1)
	z := vector.NewRasterizer(width, height)
	z.DrawOp = draw.Over
	return &Canvas{
		img: image.NewGray(image.Rect(0, 0, width, height)),
		z:   z,
	}
}

// Bounds of the surface.
func (c *Canvas) Bounds() image.Rectangle { return c.img.Bounds() }

// Clear wipes the surface.
func (c *Canvas) Clear() {
	clear(c.img.Pix)
}

// Raster returns a snapshot of the surface.
func (c *Canvas) Raster() *image.Gray {
	snapshot := image.NewGray(c.img.Bounds())
	copy(snapshot.Pix, c.img.Pix)
	return snapshot
}

// Stroke draws a round-capped segment of the given width from one point to the other.
// A zero-length segment draws a disc.
func (c *Canvas) Stroke(from, to Point, width float32, erase bool) {
	if width <= 0 {
		width = DefaultPenWidth
	}
	b := c.img.Bounds()
	c.z.Reset(b.Dx(), b.Dy())
	c.z.DrawOp = draw.Over
	capsule(c.z, from, to, width/2)

	ink := color.Gray{Y: 255}
	if erase {
		ink = color.Gray{Y: 0}
	}
	c.z.Draw(c.img, b, image.NewUniform(ink), image.Point{})
}

// capsule adds to z the outline of the segment a-b thickened by r on each side, with
// semicircular caps.
func capsule(z *vector.Rasterizer, a, b Point, r float32) {
	dx, dy := b.X-a.X, b.Y-a.Y
	length := float32(math.Hypot(float64(dx), float64(dy)))
	if length == 0 {
		dx, dy, length = 1, 0, 1
	}
	// d is the unit direction a->b and n its normal.
	d := Point{dx / length * r, dy / length * r}
	n := Point{-d.Y, d.X}
	k := float32(kappa)

	z.MoveTo(a.X+n.X, a.Y+n.Y)
	z.LineTo(b.X+n.X, b.Y+n.Y)
	// Cap around b, from +n through +d to -n.
	z.CubeTo(b.X+n.X+d.X*k, b.Y+n.Y+d.Y*k, b.X+d.X+n.X*k, b.Y+d.Y+n.Y*k, b.X+d.X, b.Y+d.Y)
	z.CubeTo(b.X+d.X-n.X*k, b.Y+d.Y-n.Y*k, b.X-n.X+d.X*k, b.Y-n.Y+d.Y*k, b.X-n.X, b.Y-n.Y)
	z.LineTo(a.X-n.X, a.Y-n.Y)
	// Cap around a, from -n through -d back to +n.
	z.CubeTo(a.X-n.X-d.X*k, a.Y-n.Y-d.Y*k, a.X-d.X-n.X*k, a.Y-d.Y-n.Y*k, a.X-d.X, a.Y-d.Y)
	z.CubeTo(a.X-d.X+n.X*k, a.Y-d.Y+n.Y*k, a.X+n.X-d.X*k, a.Y+n.Y-d.Y*k, a.X+n.X, a.Y+n.Y)
	z.ClosePath()
}
