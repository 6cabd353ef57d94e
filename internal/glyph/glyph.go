// Package glyph turns an arbitrary grayscale raster into the canonical 28x28 glyph
// consumed by the classifier: the content is cropped to its bounding box, resized to fit
// a 20x20 box while keeping its aspect ratio, and pasted so its center of mass lands on
// the center of the canvas.
package glyph

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/nfnt/resize"
)

const (
	// Size is the side of the canonical glyph.
	Size = 28
	// Box is the side of the region the content is resized to fit in.
	Box = 20

	center = Size / 2
)

// Glyph is a canonical Size x Size grayscale glyph, row-major.
// 0 is the background and 255 the ink. The zero value is the blank glyph.
type Glyph [Size * Size]uint8

var _ image.Image = Glyph{}

// ColorModel implements the image.Image interface.
func (g Glyph) ColorModel() color.Model { return color.GrayModel }

// Bounds implements the image.Image interface.
func (g Glyph) Bounds() image.Rectangle { return image.Rect(0, 0, Size, Size) }

// At implements the image.Image interface.
func (g Glyph) At(x, y int) color.Color {
	if x < 0 || y < 0 || x >= Size || y >= Size {
		return color.Gray{}
	}
	return color.Gray{Y: g[y*Size+x]}
}

// Set modifies the pixel at (x,y).
func (g *Glyph) Set(x, y int, v uint8) {
	g[y*Size+x] = v
}

// IsBlank reports whether no pixel carries ink.
func (g Glyph) IsBlank() bool {
	for _, v := range g {
		if v != 0 {
			return false
		}
	}
	return true
}

// Gray returns a copy of the glyph as an *image.Gray.
func (g Glyph) Gray() *image.Gray {
	img := image.NewGray(g.Bounds())
	copy(img.Pix, g[:])
	return img
}

// Input returns the glyph scaled to [0,1], row-major. The same values serve both the
// Flat and the Channel layouts, only the declared dimensions differ.
func (g Glyph) Input() []float32 {
	out := make([]float32, len(g))
	for i, v := range g {
		out[i] = float32(v) / 255.0
	}
	return out
}

// Normalize converts src into a canonical glyph. It never fails: an empty raster, or one
// whose ink fits in a single pixel, yields the blank glyph. So does a raster that can't be
// read at all, such as a typed nil image.
//
// When the centroid-based placement would push part of the resized content outside the
// canvas, the overflowing pixels are clipped.
func Normalize(src image.Image) (g Glyph) {
	if src == nil {
		return g
	}
	defer func() {
		if r := recover(); r != nil {
			g = Glyph{}
		}
	}()
	gray := toGray(src)
	box, ok := boundingBox(gray)
	if !ok || (box.Dx() <= 1 && box.Dy() <= 1) {
		return g
	}

	w, h := box.Dx(), box.Dy()
	cropped := image.NewGray(image.Rect(0, 0, w, h))
	draw.Draw(cropped, cropped.Bounds(), gray, box.Min, draw.Src)

	scale := math.Min(Box/float64(w), Box/float64(h))
	rw, rh := scaledSide(w, scale), scaledSide(h, scale)
	resized := toGray(resize.Resize(uint(rw), uint(rh), cropped, resize.Lanczos3))

	cy, cx, ok := centroid(resized)
	if !ok {
		return g
	}
	offset := image.Pt(center-int(math.Round(cx)), center-int(math.Round(cy)))
	paste(&g, resized, offset)
	return g
}

func scaledSide(side int, scale float64) int {
	return max(1, int(math.Round(float64(side)*scale)))
}

// boundingBox returns the smallest rectangle holding every pixel > 0.
func boundingBox(img *image.Gray) (image.Rectangle, bool) {
	b := img.Bounds()
	minX, minY, maxX, maxY := b.Max.X, b.Max.Y, b.Min.X-1, b.Min.Y-1
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := img.Pix[img.PixOffset(b.Min.X, y):img.PixOffset(b.Min.X, y)+b.Dx()]
		for i, v := range row {
			if v == 0 {
				continue
			}
			x := b.Min.X + i
			minX, maxX = min(minX, x), max(maxX, x)
			minY, maxY = min(minY, y), max(maxY, y)
		}
	}
	if maxX < minX {
		return image.Rectangle{}, false
	}
	return image.Rect(minX, minY, maxX+1, maxY+1), true
}

// centroid returns the intensity-weighted (row, column) center of img, relative to its
// top-left corner. ok is false when img carries no mass.
func centroid(img *image.Gray) (row, col float64, ok bool) {
	b := img.Bounds()
	var mass, sumRow, sumCol float64
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			v := float64(img.Pix[img.PixOffset(x, y)])
			mass += v
			sumRow += v * float64(y-b.Min.Y)
			sumCol += v * float64(x-b.Min.X)
		}
	}
	if mass == 0 {
		return 0, 0, false
	}
	return sumRow / mass, sumCol / mass, true
}

// paste draws src onto g with its top-left corner at offset, clipping to the canvas.
func paste(g *Glyph, src *image.Gray, offset image.Point) {
	canvas := image.NewGray(g.Bounds())
	r := image.Rectangle{Min: offset, Max: offset.Add(src.Bounds().Size())}
	draw.Draw(canvas, r, src, src.Bounds().Min, draw.Src)
	copy(g[:], canvas.Pix)
}

func toGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}
	b := img.Bounds()
	g := image.NewGray(b)
	draw.Draw(g, b, img, b.Min, draw.Src)
	return g
}
