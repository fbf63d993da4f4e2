package rcnn

import (
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// Anchors tiles the base anchor set over every cell of a feature map. Each
// base box is translated by (col*stride, row*stride), producing an
// (height, width, A, 4) tensor enumerated row-major with the anchor index
// innermost, so a reshape to (height*width*A, 4) keeps cell-major order.
func Anchors(height, width, stride int, baseAnchors *tensor.Dense) (*tensor.Dense, error) {
	shape := baseAnchors.Shape()
	if len(shape) != 2 || shape[1] != 4 {
		return nil, errors.Errorf("base anchors must have shape (A, 4), got %v", shape)
	}
	if height <= 0 || width <= 0 || stride <= 0 {
		return nil, errors.Errorf("invalid grid %dx%d with stride %d", height, width, stride)
	}

	a := shape[0]
	base := baseAnchors.Float32s()

	data := make([]float32, height*width*a*4)
	idx := 0
	for ih := range height {
		sh := float32(ih * stride)
		for iw := range width {
			sw := float32(iw * stride)
			for k := range a {
				data[idx] = base[k*4] + sw
				data[idx+1] = base[k*4+1] + sh
				data[idx+2] = base[k*4+2] + sw
				data[idx+3] = base[k*4+3] + sh
				idx += 4
			}
		}
	}

	return tensor.New(
		tensor.Of(tensor.Float32),
		tensor.WithShape(height, width, a, 4),
		tensor.WithBacking(data),
	), nil
}

// InsideIndices returns the indices of anchors lying inside an image of the
// given size, tolerating allowedBorder pixels of overhang. An empty result is
// valid; downstream stages fill the whole grid with ignore values.
func InsideIndices(anchors *tensor.Dense, imHeight, imWidth int, allowedBorder float32) ([]int, error) {
	shape := anchors.Shape()
	if len(shape) != 2 || shape[1] != 4 {
		return nil, errors.Errorf("anchors must have shape (N, 4), got %v", shape)
	}

	n := shape[0]
	data := anchors.Float32s()
	height := float32(imHeight)
	width := float32(imWidth)

	inds := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if data[i*4] >= -allowedBorder &&
			data[i*4+1] >= -allowedBorder &&
			data[i*4+2] < width+allowedBorder &&
			data[i*4+3] < height+allowedBorder {
			inds = append(inds, i)
		}
	}

	return inds, nil
}
