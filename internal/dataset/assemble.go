// Package dataset assembles decoded IDX containers into labeled train, validation and test
// sets ready for training: samples scaled to [0,1], labels one-hot encoded, and the training
// file partitioned deterministically, in source order, without shuffling.
package dataset

import (
	"fmt"

	"github.com/Brownie44l1/handwriting-api/internal/glyph"
	"github.com/Brownie44l1/handwriting-api/internal/idx"
)

// Set is a parallel array of samples and their one-hot labels.
type Set struct {
	Samples [][]float32
	Labels  [][]float32
	// Dims of every sample: [H*W] for the flat layout, [1 H W] for the channel layout.
	Dims []int
}

// Len is the number of examples in the set.
func (s Set) Len() int { return len(s.Samples) }

// Slice returns the examples in [from, to), sharing storage.
func (s Set) Slice(from, to int) Set {
	return Set{Samples: s.Samples[from:to], Labels: s.Labels[from:to], Dims: s.Dims}
}

// Split is the ordered (train, validation, test) triple.
type Split struct {
	Train, Validation, Test Set
	NumClasses              int
	// Classes holds the printable name of every class index.
	Classes []string
}

// Decoded holds the four raw containers of a dataset.
type Decoded struct {
	TrainImages, TrainLabels *idx.Tensor
	TestImages, TestLabels   *idx.Tensor
}

// Partition decides how many of the n training examples, taken from the front, form the
// training set. The rest, in order, is the validation set.
type Partition interface {
	TrainCount(n int) int
}

// FixedPartition keeps the first TrainSize examples for training.
type FixedPartition struct {
	TrainSize int
}

// TrainCount implements Partition.
func (p FixedPartition) TrainCount(n int) int { return max(0, min(n, p.TrainSize)) }

// HoldoutPartition holds out the last Percent percent of the examples for validation.
type HoldoutPartition struct {
	Percent int
}

// TrainCount implements Partition: floor(n * (100-Percent) / 100).
func (p HoldoutPartition) TrainCount(n int) int {
	pct := max(0, min(100, p.Percent))
	return n * (100 - pct) / 100
}

// Normalize scales every sample of images to [0,1]. All samples share one allocation.
func Normalize(images *idx.Tensor) [][]float32 {
	n, size := images.Len(), images.SampleSize()
	flat := make([]float32, n*size)
	for i, v := range images.Data[:n*size] {
		flat[i] = float32(v) / 255.0
	}
	samples := make([][]float32, n)
	for i := range samples {
		samples[i] = flat[i*size : (i+1)*size : (i+1)*size]
	}
	return samples
}

// OneHot encodes label into a vector of numClasses values.
func OneHot(label, numClasses int) []float32 {
	v := make([]float32, numClasses)
	if label >= 0 && label < numClasses {
		v[label] = 1
	}
	return v
}

// NumClasses discovers the class count as the largest label of all given containers plus one.
func NumClasses(labels ...*idx.Tensor) int {
	var m uint8
	for _, t := range labels {
		if t != nil {
			m = max(m, t.Max())
		}
	}
	return int(m) + 1
}

// Assemble builds the split. numClasses <= 0 means the class count is discovered from the
// labels of both the training and the test containers.
func Assemble(d *Decoded, partition Partition, layout glyph.Layout, numClasses int) (*Split, error) {
	if numClasses <= 0 {
		numClasses = NumClasses(d.TrainLabels, d.TestLabels)
	}
	full, err := buildSet("train", d.TrainImages, d.TrainLabels, layout, numClasses)
	if err != nil {
		return nil, err
	}
	test, err := buildSet("test", d.TestImages, d.TestLabels, layout, numClasses)
	if err != nil {
		return nil, err
	}
	cut := partition.TrainCount(full.Len())
	return &Split{
		Train:      full.Slice(0, cut),
		Validation: full.Slice(cut, full.Len()),
		Test:       test,
		NumClasses: numClasses,
	}, nil
}

func buildSet(name string, images, labels *idx.Tensor, layout glyph.Layout, numClasses int) (Set, error) {
	if images == nil || labels == nil {
		return Set{}, formatError(name, "missing images or labels")
	}
	if len(images.Shape) != 3 {
		return Set{}, formatError(name, fmt.Sprintf("images have shape %v, expected [N H W]", images.Shape))
	}
	if images.Len() != labels.Len() {
		return Set{}, formatError(name, fmt.Sprintf("%d images but %d labels", images.Len(), labels.Len()))
	}

	oneHot := make([]float32, labels.Len()*numClasses)
	encoded := make([][]float32, labels.Len())
	for i, l := range labels.Data[:labels.Len()] {
		if int(l) >= numClasses {
			return Set{}, formatError(name, fmt.Sprintf("label %d of example %d outside %d classes", l, i, numClasses))
		}
		row := oneHot[i*numClasses : (i+1)*numClasses : (i+1)*numClasses]
		row[l] = 1
		encoded[i] = row
	}

	h, w := images.Shape[1], images.Shape[2]
	dims := []int{h * w}
	if layout == glyph.Channel {
		dims = []int{1, h, w}
	}
	return Set{Samples: Normalize(images), Labels: encoded, Dims: dims}, nil
}

func formatError(set, reason string) *idx.FormatError {
	return &idx.FormatError{Source: set + " set", Reason: reason}
}
