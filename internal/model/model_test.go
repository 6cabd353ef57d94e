package model

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Brownie44l1/handwriting-api/internal/glyph"
)

func TestRank(t *testing.T) {
	r := Rank([]float32{0.1, 0.5, 0.1, 0.3}, []string{"a", "b", "c", "d"})
	require.Len(t, r, 4)

	classes := make([]int, len(r))
	for i, s := range r {
		assert.Equal(t, i, s.Rank)
		classes[i] = s.Class
	}
	assert.Equal(t, []int{1, 3, 0, 2}, classes, "ties ordered by class index")
	assert.Equal(t, "b", r[0].Label)
	assert.Equal(t, float32(0.5), r[0].Probability)
}

func TestRankAllTied(t *testing.T) {
	r := Rank([]float32{0.25, 0.25, 0.25, 0.25}, nil)
	for i, s := range r {
		assert.Equal(t, i, s.Class)
		assert.Equal(t, i, s.Rank)
	}
	assert.Equal(t, "3", r[3].Label, "unnamed classes fall back to their index")
}

func TestResponse(t *testing.T) {
	resp := Rank([]float32{0.2, 0.7, 0.1}, []string{"0", "1", "2"}).Response()
	assert.Equal(t, "1", resp.Class)
	assert.Equal(t, float32(0.7), resp.Confidence)
	assert.Len(t, resp.Predictions, 3)
	assert.Equal(t, float32(0.1), resp.Predictions["2"])

	empty := Ranking{}.Response()
	assert.Empty(t, empty.Class)
	_, ok := Ranking{}.Top()
	assert.False(t, ok)
}

func TestLoadMetadata(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		return path
	}

	meta, layout, err := LoadMetadata(write("dense.json",
		`{"input_shape":[1,784],"output_shape":[1,10],"classes":["0","1","2","3","4","5","6","7","8","9"],"image_size":28}`))
	require.NoError(t, err)
	assert.Equal(t, glyph.Flat, layout)
	assert.Len(t, meta.Classes, 10)

	_, layout, err = LoadMetadata(write("cnn.json", `{"input_shape":[1,1,28,28],"output_shape":[1,27]}`))
	require.NoError(t, err)
	assert.Equal(t, glyph.Channel, layout)

	_, _, err = LoadMetadata(write("rgb.json", `{"input_shape":[1,3,48,48],"output_shape":[1,7]}`))
	assert.Error(t, err)
	_, _, err = LoadMetadata(write("noout.json", `{"input_shape":[1,784]}`))
	assert.Error(t, err)
	_, _, err = LoadMetadata(write("broken.json", `{`))
	assert.Error(t, err)
	_, _, err = LoadMetadata(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}
