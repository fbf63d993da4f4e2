package processing

import (
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// UnmapVector scatters per-subset values back to a vector of size count,
// filling positions outside the subset with fill. inds[i] is the destination
// of data[i].
func UnmapVector(data []float32, count int, inds []int, fill float32) []float32 {
	out := make([]float32, count)
	for i := range out {
		out[i] = fill
	}
	for i, idx := range inds {
		out[idx] = data[i]
	}
	return out
}

// UnmapRows scatters the rows of a (len(inds), C) tensor back to a (count, C)
// tensor, filling absent rows with fill.
func UnmapRows(data *tensor.Dense, count int, inds []int, fill float32) (*tensor.Dense, error) {
	shape := data.Shape()
	if len(shape) != 2 {
		return nil, errors.Errorf("row data must be 2D, got %v", shape)
	}
	if shape[0] != len(inds) {
		return nil, errors.Errorf("row count %d does not match %d indices", shape[0], len(inds))
	}
	cols := shape[1]

	out := make([]float32, count*cols)
	for i := range out {
		out[i] = fill
	}

	src := data.Float32s()
	for i, idx := range inds {
		copy(out[idx*cols:(idx+1)*cols], src[i*cols:(i+1)*cols])
	}

	return tensor.New(
		tensor.Of(tensor.Float32),
		tensor.WithShape(count, cols),
		tensor.WithBacking(out),
	), nil
}

// PackLabels rearranges a full-grid label vector, enumerated cell-major and
// anchor-minor, into the (1, 1, A*H, W) layout consumed by the classification
// loss. The anchor index becomes the leading block of the third axis, the
// transpose of the (H, W, A) enumeration.
func PackLabels(labels []float32, numAnchors, height, width int) (*tensor.Dense, error) {
	if len(labels) != numAnchors*height*width {
		return nil, errors.Errorf("expected %d labels for a (%d, %d, %d) grid, got %d",
			numAnchors*height*width, height, width, numAnchors, len(labels))
	}

	out := make([]float32, len(labels))
	for a := 0; a < numAnchors; a++ {
		for h := 0; h < height; h++ {
			for w := 0; w < width; w++ {
				out[(a*height+h)*width+w] = labels[(h*width+w)*numAnchors+a]
			}
		}
	}

	return tensor.New(
		tensor.Of(tensor.Float32),
		tensor.WithShape(1, 1, numAnchors*height, width),
		tensor.WithBacking(out),
	), nil
}

// PackQuads rearranges a full-grid (K*A, 4) tensor into the (1, 4*A, H, W)
// layout consumed by the regression loss: component c of anchor a maps to
// channel a*4+c.
func PackQuads(rows *tensor.Dense, numAnchors, height, width int) (*tensor.Dense, error) {
	shape := rows.Shape()
	if len(shape) != 2 || shape[1] != 4 {
		return nil, errors.Errorf("row data must have shape (K*A, 4), got %v", shape)
	}
	if shape[0] != numAnchors*height*width {
		return nil, errors.Errorf("expected %d rows for a (%d, %d, %d) grid, got %d",
			numAnchors*height*width, height, width, numAnchors, shape[0])
	}

	data := rows.Float32s()
	out := make([]float32, len(data))
	for a := 0; a < numAnchors; a++ {
		for c := 0; c < 4; c++ {
			ch := a*4 + c
			for h := 0; h < height; h++ {
				for w := 0; w < width; w++ {
					out[(ch*height+h)*width+w] = data[((h*width+w)*numAnchors+a)*4+c]
				}
			}
		}
	}

	return tensor.New(
		tensor.Of(tensor.Float32),
		tensor.WithShape(1, 4*numAnchors, height, width),
		tensor.WithBacking(out),
	), nil
}
