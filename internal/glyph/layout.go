package glyph

import (
	"github.com/pkg/errors"
)

// Layout is the input arrangement a classifier expects for one glyph.
type Layout int

const (
	// Flat is a vector of Size*Size values.
	Flat Layout = iota
	// Channel is a single-channel (1, Size, Size) tensor.
	Channel
)

func (l Layout) String() string {
	switch l {
	case Flat:
		return "flat"
	case Channel:
		return "channel"
	}
	return "unknown"
}

// Dims returns the per-sample dimensions of the layout.
func (l Layout) Dims() []int {
	if l == Channel {
		return []int{1, Size, Size}
	}
	return []int{Size * Size}
}

// ParseLayout converts a flag value ("flat" or "channel") into a Layout.
func ParseLayout(s string) (Layout, error) {
	switch s {
	case "flat", "dense":
		return Flat, nil
	case "channel", "conv":
		return Channel, nil
	}
	return Flat, errors.Errorf("unknown layout %q, expected \"flat\" or \"channel\"", s)
}

// LayoutFromShape resolves the layout from a model input shape, with or without the
// leading batch dimension. It is meant to be called once, when the model is loaded.
func LayoutFromShape(shape []int64) (Layout, error) {
	dims := shape
	// Drop a leading batch axis when present.
	if len(dims) == 2 || len(dims) == 4 {
		dims = dims[1:]
	}
	switch {
	case len(dims) == 1 && dims[0] == Size*Size:
		return Flat, nil
	case len(dims) == 3 && dims[0] == 1 && dims[1] == Size && dims[2] == Size:
		return Channel, nil
	}
	return Flat, errors.Errorf("unsupported model input shape %v: expected [%d] or [1 %d %d]",
		shape, Size*Size, Size, Size)
}
