package raster

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStroke(t *testing.T) {
	c := NewCanvas(100, 100)
	c.Stroke(Point{20, 50}, Point{80, 50}, 10, false)

	img := c.Raster()
	assert.Equal(t, uint8(255), img.GrayAt(50, 50).Y, "middle of the segment")
	assert.Equal(t, uint8(255), img.GrayAt(20, 52).Y, "inside the start cap")
	assert.Equal(t, uint8(255), img.GrayAt(83, 50).Y, "inside the end cap")
	assert.Zero(t, img.GrayAt(50, 60).Y, "outside the stroke width")
	assert.Zero(t, img.GrayAt(90, 50).Y, "past the end cap")
	assert.Zero(t, img.GrayAt(5, 5).Y)
}

func TestStrokeDot(t *testing.T) {
	c := NewCanvas(40, 40)
	c.Stroke(Point{20, 20}, Point{20, 20}, 8, false)

	img := c.Raster()
	assert.Equal(t, uint8(255), img.GrayAt(20, 20).Y)
	assert.Equal(t, uint8(255), img.GrayAt(17, 20).Y)
	assert.Zero(t, img.GrayAt(20, 26).Y)
}

func TestEraseAndClear(t *testing.T) {
	c := NewCanvas(100, 100)
	c.Stroke(Point{10, 50}, Point{90, 50}, 20, false)
	c.Stroke(Point{50, 20}, Point{50, 80}, 10, true)

	img := c.Raster()
	assert.Zero(t, img.GrayAt(50, 50).Y, "erased")
	assert.Equal(t, uint8(255), img.GrayAt(20, 50).Y, "untouched by the eraser")

	c.Clear()
	for _, v := range c.Raster().Pix {
		require.Zero(t, v)
	}
}

func TestRasterIsSnapshot(t *testing.T) {
	c := NewCanvas(30, 30)
	before := c.Raster()
	c.Stroke(Point{5, 5}, Point{25, 25}, 6, false)
	for _, v := range before.Pix {
		require.Zero(t, v, "snapshot must not follow later strokes")
	}
	assert.Equal(t, c.Bounds(), before.Bounds())
}
