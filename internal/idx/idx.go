// Package idx decodes IDX containers: a fixed-size header followed by a flat array of
// unsigned bytes holding the samples in row-major order.
package idx

import (
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
)

const (
	// ImageOffset is the header length of an image container.
	ImageOffset = 16
	// LabelOffset is the header length of a label container.
	LabelOffset = 8

	// ImageMagic and LabelMagic are the first four bytes of unsigned-byte containers
	// with 3 and 1 dimensions respectively.
	ImageMagic = 0x00000803
	LabelMagic = 0x00000801
)

// FormatError reports a container that doesn't hold what it is declared to hold.
type FormatError struct {
	Source string
	Reason string
}

func (e *FormatError) Error() string {
	if e.Source == "" {
		return "idx: " + e.Reason
	}
	return fmt.Sprintf("idx: %s: %s", e.Source, e.Reason)
}

func formatErrorf(format string, args ...any) *FormatError {
	return &FormatError{Reason: fmt.Sprintf(format, args...)}
}

// Header is the parsed header of a container.
type Header struct {
	Magic uint32
	Dims  []int
}

// ParseHeader reads the magic number and the big-endian dimension sizes at the start of
// a container. The number of dimensions is the last byte of the magic number.
func ParseHeader(data []byte) (*Header, error) {
	if len(data) < 4 {
		return nil, formatErrorf("container of %d bytes is too short for a header", len(data))
	}
	h := &Header{Magic: binary.BigEndian.Uint32(data)}
	if h.Magic>>16 != 0 || byte(h.Magic>>8) != 0x08 {
		return nil, formatErrorf("magic 0x%08x is not an unsigned-byte container", h.Magic)
	}
	rank := int(byte(h.Magic))
	if len(data) < 4+4*rank {
		return nil, formatErrorf("container of %d bytes is too short for a %d-dimensional header", len(data), rank)
	}
	for i := range rank {
		h.Dims = append(h.Dims, int(binary.BigEndian.Uint32(data[4+4*i:])))
	}
	return h, nil
}

// Size is the length in bytes of the header.
func (h *Header) Size() int { return 4 + 4*len(h.Dims) }

// Count is the number of samples the header declares.
func (h *Header) Count() int {
	if len(h.Dims) == 0 {
		return 0
	}
	return h.Dims[0]
}

// Decode skips offset header bytes of data and reshapes the remaining payload to shape.
// At most one dimension may be -1, in which case it is inferred from the payload length.
// It returns a *FormatError when the payload length doesn't match the shape.
func Decode(data []byte, offset int, shape ...int) (*Tensor, error) {
	if offset < 0 || offset > len(data) {
		return nil, formatErrorf("header offset %d out of range for a container of %d bytes", offset, len(data))
	}
	payload := data[offset:]
	resolved, err := resolveShape(shape, len(payload))
	if err != nil {
		return nil, err
	}
	return &Tensor{Data: payload, Shape: resolved}, nil
}

// ReadFile gunzips the container at path and decodes it with Decode.
func ReadFile(path string, offset int, shape ...int) (*Tensor, error) {
	data, err := ReadGzip(path)
	if err != nil {
		return nil, err
	}
	t, err := Decode(data, offset, shape...)
	if err != nil {
		var fe *FormatError
		if errors.As(err, &fe) {
			fe.Source = path
		}
		return nil, err
	}
	return t, nil
}

// ReadGzip returns the decompressed contents of the gzip file at path.
func ReadGzip(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %q", path)
	}
	defer func() { _ = f.Close() }()

	reader, err := gzip.NewReader(f)
	if err != nil {
		return nil, &FormatError{Source: path, Reason: "not a gzip stream: " + err.Error()}
	}
	defer func() { _ = reader.Close() }()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, &FormatError{Source: path, Reason: "truncated gzip stream: " + err.Error()}
	}
	return data, nil
}

func resolveShape(shape []int, n int) ([]int, error) {
	if len(shape) == 0 {
		return nil, formatErrorf("empty target shape")
	}
	resolved := append([]int(nil), shape...)
	inferred := -1
	known := 1
	for i, d := range resolved {
		switch {
		case d == -1 && inferred == -1:
			inferred = i
		case d == -1:
			return nil, formatErrorf("shape %v has more than one inferred dimension", shape)
		case d < 0:
			return nil, formatErrorf("shape %v has a negative dimension", shape)
		default:
			known *= d
		}
	}
	if inferred >= 0 {
		if known == 0 || n%known != 0 {
			return nil, formatErrorf("payload of %d bytes can't be reshaped to %v", n, shape)
		}
		resolved[inferred] = n / known
		return resolved, nil
	}
	if known != n {
		return nil, formatErrorf("payload of %d bytes doesn't match shape %v (%d elements)", n, shape, known)
	}
	return resolved, nil
}
