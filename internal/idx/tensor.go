package idx

// Tensor is a decoded N-dimensional array of unsigned bytes. The first dimension indexes
// the samples; len(Data) always equals the product of Shape.
type Tensor struct {
	Data  []uint8
	Shape []int
}

// Len is the number of samples.
func (t *Tensor) Len() int {
	if len(t.Shape) == 0 {
		return 0
	}
	return t.Shape[0]
}

// SampleSize is the number of elements in one sample.
func (t *Tensor) SampleSize() int {
	if len(t.Shape) == 0 {
		return 0
	}
	size := 1
	for _, d := range t.Shape[1:] {
		size *= d
	}
	return size
}

// Sample returns the i-th sample, sharing the underlying storage.
func (t *Tensor) Sample(i int) []uint8 {
	size := t.SampleSize()
	return t.Data[i*size : (i+1)*size]
}

// Max returns the largest value in the tensor, 0 for an empty one.
func (t *Tensor) Max() uint8 {
	var m uint8
	for _, v := range t.Data {
		m = max(m, v)
	}
	return m
}

// Transpose returns a new tensor with the last two axes of every sample swapped.
// Tensors with fewer than three dimensions are returned unchanged.
func (t *Tensor) Transpose() *Tensor {
	rank := len(t.Shape)
	if rank < 3 {
		return t
	}
	rows, cols := t.Shape[rank-2], t.Shape[rank-1]
	plane := rows * cols

	out := &Tensor{
		Data:  make([]uint8, len(t.Data)),
		Shape: append([]int(nil), t.Shape...),
	}
	out.Shape[rank-2], out.Shape[rank-1] = cols, rows
	for base := 0; base+plane <= len(t.Data); base += plane {
		src := t.Data[base : base+plane]
		dst := out.Data[base : base+plane]
		for r := range rows {
			for c := range cols {
				dst[c*rows+r] = src[r*cols+c]
			}
		}
	}
	return out
}
