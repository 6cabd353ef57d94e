package glyph

import (
	"image"
	"image/color"
	"image/draw"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fill paints the rectangle r of img with v.
func fill(img *image.Gray, r image.Rectangle, v uint8) {
	draw.Draw(img, r, &image.Uniform{C: color.Gray{Y: v}}, image.Point{}, draw.Src)
}

// inkBox returns the bounding box of the glyph's nonzero pixels.
func inkBox(t *testing.T, g Glyph) image.Rectangle {
	box, ok := boundingBox(g.Gray())
	require.True(t, ok, "glyph should not be blank")
	return box
}

func glyphCentroid(t *testing.T, g Glyph) (row, col float64) {
	row, col, ok := centroid(g.Gray())
	require.True(t, ok, "glyph should not be blank")
	return
}

func TestNormalizeBlank(t *testing.T) {
	assert.True(t, Normalize(image.NewGray(image.Rect(0, 0, 600, 600))).IsBlank())
	assert.True(t, Normalize(nil).IsBlank())
	assert.True(t, Normalize(image.NewGray(image.Rectangle{})).IsBlank())
	assert.NotPanics(t, func() {
		assert.True(t, Normalize((*image.Gray)(nil)).IsBlank())
		assert.True(t, Normalize((*image.RGBA)(nil)).IsBlank())
	})

	// A single inked pixel is too small to be recentered.
	dot := image.NewGray(image.Rect(0, 0, 50, 50))
	dot.SetGray(10, 20, color.Gray{Y: 255})
	assert.True(t, Normalize(dot).IsBlank())
}

func TestNormalizeCenteredSquare(t *testing.T) {
	for _, k := range []int{2, 7, 40, 100} {
		src := image.NewGray(image.Rect(0, 0, 600, 600))
		lo := 300 - k/2
		fill(src, image.Rect(lo, lo, lo+k, lo+k), 255)

		g := Normalize(src)
		box := inkBox(t, g)
		assert.LessOrEqualf(t, box.Dx(), Box, "k=%d: ink wider than the fit box", k)
		assert.LessOrEqualf(t, box.Dy(), Box, "k=%d: ink taller than the fit box", k)

		row, col := glyphCentroid(t, g)
		assert.InDeltaf(t, float64(center), row, 1.0, "k=%d: centroid row", k)
		assert.InDeltaf(t, float64(center), col, 1.0, "k=%d: centroid col", k)
	}
}

func TestNormalizeKeepsAspectRatio(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 300, 300))
	fill(src, image.Rect(100, 50, 110, 150), 255) // 10 wide, 100 tall.

	box := inkBox(t, Normalize(src))
	assert.Equal(t, Box, box.Dy())
	assert.Equal(t, 2, box.Dx())
}

func TestNormalizeOffCenterContent(t *testing.T) {
	// Ink in a corner of the surface ends up centered all the same.
	src := image.NewGray(image.Rect(0, 0, 600, 600))
	fill(src, image.Rect(0, 0, 30, 60), 200)

	row, col := glyphCentroid(t, Normalize(src))
	assert.InDelta(t, float64(center), row, 1.0)
	assert.InDelta(t, float64(center), col, 1.0)
}

func TestNormalizeDeterministic(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 120, 80))
	fill(src, image.Rect(10, 10, 70, 20), 255)
	fill(src, image.Rect(60, 10, 70, 75), 128)
	assert.Equal(t, Normalize(src), Normalize(src))
}

func TestNormalizeConvertsColorInput(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 64, 64))
	draw.Draw(src, image.Rect(16, 16, 48, 48), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	draw.Draw(src, image.Rect(0, 0, 64, 16), &image.Uniform{C: color.Black}, image.Point{}, draw.Src)

	g := Normalize(src)
	require.False(t, g.IsBlank())
	row, col := glyphCentroid(t, g)
	assert.InDelta(t, float64(center), row, 1.0)
	assert.InDelta(t, float64(center), col, 1.0)
}

func TestPasteClipsOverflow(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, Box, Box))
	fill(src, src.Bounds(), 255)

	var g Glyph
	paste(&g, src, image.Pt(center, center))
	box := inkBox(t, g)
	assert.Equal(t, image.Rect(center, center, Size, Size), box)

	g = Glyph{}
	paste(&g, src, image.Pt(-5, -3))
	box = inkBox(t, g)
	assert.Equal(t, image.Rect(0, 0, Box-5, Box-3), box)
}

func TestInput(t *testing.T) {
	var g Glyph
	g.Set(3, 1, 255)
	g.Set(0, 0, 51)

	in := g.Input()
	require.Len(t, in, Size*Size)
	assert.InDelta(t, 1.0, in[1*Size+3], 1e-6)
	assert.InDelta(t, 0.2, in[0], 1e-6)
	assert.Zero(t, in[5])
}

func TestLayoutFromShape(t *testing.T) {
	for _, tc := range []struct {
		shape []int64
		want  Layout
	}{
		{[]int64{784}, Flat},
		{[]int64{1, 784}, Flat},
		{[]int64{1, 28, 28}, Channel},
		{[]int64{1, 1, 28, 28}, Channel},
	} {
		got, err := LayoutFromShape(tc.shape)
		require.NoErrorf(t, err, "shape %v", tc.shape)
		assert.Equalf(t, tc.want, got, "shape %v", tc.shape)
	}

	for _, shape := range [][]int64{{1, 3, 48, 48}, {10}, {}} {
		_, err := LayoutFromShape(shape)
		assert.Errorf(t, err, "shape %v", shape)
	}

	assert.Equal(t, []int{784}, Flat.Dims())
	assert.Equal(t, []int{1, 28, 28}, Channel.Dims())
}

func TestSave(t *testing.T) {
	var g Glyph
	for y := 5; y < 20; y++ {
		g.Set(12, y, 255)
	}
	path := filepath.Join(t.TempDir(), "nested", "glyph.png")
	require.NoError(t, Save(g, path))

	img, err := imaging.Open(path)
	require.NoError(t, err)
	assert.Equal(t, g.Bounds(), img.Bounds())
	assert.Equal(t, g.Gray().Pix, toGray(img).Pix)
}
