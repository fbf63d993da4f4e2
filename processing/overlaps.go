package processing

import (
	"sort"

	"github.com/chewxy/math32"
	"github.com/pkg/errors"
	"github.com/xtgo/set"
	"gorgonia.org/tensor"
	"gorgonia.org/vecf32"
)

// Overlaps computes the pairwise IoU matrix between boxes (N, 4+) and query
// boxes (M, 4+). Only the first four columns of each row are read, so ground
// truth rows carrying a trailing class id can be passed directly. Widths are
// inclusive (x2 - x1 + 1), matching the anchor template and target encoding.
func Overlaps(boxes, query *tensor.Dense) (*tensor.Dense, error) {
	bShape := boxes.Shape()
	qShape := query.Shape()
	if len(bShape) != 2 || bShape[1] < 4 {
		return nil, errors.Errorf("boxes must have shape (N, 4+), got %v", bShape)
	}
	if len(qShape) != 2 || qShape[1] < 4 {
		return nil, errors.Errorf("query boxes must have shape (M, 4+), got %v", qShape)
	}

	n, m := bShape[0], qShape[0]
	if n == 0 || m == 0 {
		return tensor.New(tensor.Of(tensor.Float32), tensor.WithShape(n, m)), nil
	}

	bStride, qStride := bShape[1], qShape[1]
	bData := boxes.Float32s()
	qData := query.Float32s()

	qAreas := queryAreas(qData, m, qStride)

	out := make([]float32, n*m)
	for i := 0; i < n; i++ {
		bx1 := bData[i*bStride]
		by1 := bData[i*bStride+1]
		bx2 := bData[i*bStride+2]
		by2 := bData[i*bStride+3]
		bArea := (bx2 - bx1 + 1) * (by2 - by1 + 1)

		for j := 0; j < m; j++ {
			iw := math32.Min(bx2, qData[j*qStride+2]) - math32.Max(bx1, qData[j*qStride]) + 1
			if iw <= 0 {
				continue
			}
			ih := math32.Min(by2, qData[j*qStride+3]) - math32.Max(by1, qData[j*qStride+1]) + 1
			if ih <= 0 {
				continue
			}
			inter := iw * ih
			out[i*m+j] = inter / (bArea + qAreas[j] - inter)
		}
	}

	return tensor.New(tensor.Of(tensor.Float32), tensor.WithShape(n, m), tensor.WithBacking(out)), nil
}

func queryAreas(qData []float32, m, stride int) []float32 {
	x1 := make([]float32, m)
	y1 := make([]float32, m)
	ws := make([]float32, m)
	hs := make([]float32, m)
	for j := 0; j < m; j++ {
		x1[j] = qData[j*stride]
		y1[j] = qData[j*stride+1]
		ws[j] = qData[j*stride+2]
		hs[j] = qData[j*stride+3]
	}
	vecf32.Sub(ws, x1)
	vecf32.Trans(ws, 1)
	vecf32.Sub(hs, y1)
	vecf32.Trans(hs, 1)
	vecf32.Mul(ws, hs)
	return ws
}

// BestOverlaps reduces an (N, M) overlap matrix along its columns: for each
// row the index of the best query box (first index on ties) and the overlap
// value itself.
func BestOverlaps(overlaps *tensor.Dense) ([]int, []float32, error) {
	shape := overlaps.Shape()
	if len(shape) != 2 {
		return nil, nil, errors.Errorf("overlap matrix must be 2D, got %v", shape)
	}
	n, m := shape[0], shape[1]

	argmax := make([]int, n)
	maxOverlaps := make([]float32, n)
	if n == 0 || m == 0 {
		return argmax, maxOverlaps, nil
	}

	data := overlaps.Float32s()
	for i := 0; i < n; i++ {
		best := 0
		bestVal := data[i*m]
		for j := 1; j < m; j++ {
			if data[i*m+j] > bestVal {
				best = j
				bestVal = data[i*m+j]
			}
		}
		argmax[i] = best
		maxOverlaps[i] = bestVal
	}

	return argmax, maxOverlaps, nil
}

// BestAnchorsPerGT returns the sorted, deduplicated row indices that reach the
// column maximum for at least one query box. Exact equality against the column
// maximum keeps every tied row, not just the first.
func BestAnchorsPerGT(overlaps *tensor.Dense) ([]int, error) {
	shape := overlaps.Shape()
	if len(shape) != 2 {
		return nil, errors.Errorf("overlap matrix must be 2D, got %v", shape)
	}
	n, m := shape[0], shape[1]
	if n == 0 || m == 0 {
		return []int{}, nil
	}

	data := overlaps.Float32s()

	colMax := make([]float32, m)
	for j := 0; j < m; j++ {
		colMax[j] = data[j]
	}
	for i := 1; i < n; i++ {
		for j := 0; j < m; j++ {
			if data[i*m+j] > colMax[j] {
				colMax[j] = data[i*m+j]
			}
		}
	}

	rows := make([]int, 0, m)
	for i := 0; i < n; i++ {
		for j := 0; j < m; j++ {
			if data[i*m+j] == colMax[j] {
				rows = append(rows, i)
			}
		}
	}

	sort.Ints(rows)
	size := set.Uniq(sort.IntSlice(rows))
	return rows[:size], nil
}
