package processing

import (
	"github.com/chewxy/math32"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// TransformBoxes encodes the regression deltas (dx, dy, dw, dh) that map each
// example box onto its paired target box. Rows are paired by index; targets
// may carry trailing columns (class id) which are ignored. Widths and centers
// use the inclusive pixel convention shared with the overlap computation.
func TransformBoxes(ex, gt *tensor.Dense) (*tensor.Dense, error) {
	exShape := ex.Shape()
	gtShape := gt.Shape()
	if len(exShape) != 2 || exShape[1] != 4 {
		return nil, errors.Errorf("example boxes must have shape (N, 4), got %v", exShape)
	}
	if len(gtShape) != 2 || gtShape[1] < 4 {
		return nil, errors.Errorf("target boxes must have shape (N, 4+), got %v", gtShape)
	}
	if exShape[0] != gtShape[0] {
		return nil, errors.Errorf("box counts differ: %d vs %d", exShape[0], gtShape[0])
	}

	n := exShape[0]
	gtStride := gtShape[1]
	exData := ex.Float32s()
	gtData := gt.Float32s()

	dx := make([]float32, n)
	dy := make([]float32, n)
	dw := make([]float32, n)
	dh := make([]float32, n)

	for i := 0; i < n; i++ {
		exW := exData[i*4+2] - exData[i*4] + 1
		exH := exData[i*4+3] - exData[i*4+1] + 1
		exCtrX := exData[i*4] + 0.5*exW
		exCtrY := exData[i*4+1] + 0.5*exH

		gtW := gtData[i*gtStride+2] - gtData[i*gtStride] + 1
		gtH := gtData[i*gtStride+3] - gtData[i*gtStride+1] + 1
		gtCtrX := gtData[i*gtStride] + 0.5*gtW
		gtCtrY := gtData[i*gtStride+1] + 0.5*gtH

		dx[i] = (gtCtrX - exCtrX) / exW
		dy[i] = (gtCtrY - exCtrY) / exH
		dw[i] = math32.Log(gtW / exW)
		dh[i] = math32.Log(gtH / exH)
	}

	col0 := tensor.New(tensor.Of(tensor.Float32), tensor.WithShape(n, 1), tensor.WithBacking(dx))
	col1 := tensor.New(tensor.Of(tensor.Float32), tensor.WithShape(n, 1), tensor.WithBacking(dy))
	col2 := tensor.New(tensor.Of(tensor.Float32), tensor.WithShape(n, 1), tensor.WithBacking(dw))
	col3 := tensor.New(tensor.Of(tensor.Float32), tensor.WithShape(n, 1), tensor.WithBacking(dh))

	targets, err := col0.Hstack(col1, col2, col3)
	if err != nil {
		return nil, err
	}

	return targets, nil
}

// TransformBoxesInv decodes regression deltas back into absolute boxes. It is
// the exact inverse of TransformBoxes: zero deltas return the box unchanged,
// including the inclusive x2/y2 coordinate.
func TransformBoxesInv(boxes, deltas *tensor.Dense) (*tensor.Dense, error) {
	bShape := boxes.Shape()
	dShape := deltas.Shape()
	if len(bShape) != 2 || bShape[1] != 4 {
		return nil, errors.Errorf("boxes must have shape (N, 4), got %v", bShape)
	}
	if len(dShape) != 2 || dShape[1] != 4 {
		return nil, errors.Errorf("deltas must have shape (N, 4), got %v", dShape)
	}
	if bShape[0] != dShape[0] {
		return nil, errors.Errorf("box counts differ: %d vs %d", bShape[0], dShape[0])
	}

	n := bShape[0]
	bData := boxes.Float32s()
	dData := deltas.Float32s()

	out := make([]float32, n*4)
	for i := 0; i < n; i++ {
		w := bData[i*4+2] - bData[i*4] + 1
		h := bData[i*4+3] - bData[i*4+1] + 1
		ctrX := bData[i*4] + 0.5*w
		ctrY := bData[i*4+1] + 0.5*h

		predCtrX := dData[i*4]*w + ctrX
		predCtrY := dData[i*4+1]*h + ctrY
		predW := math32.Exp(dData[i*4+2]) * w
		predH := math32.Exp(dData[i*4+3]) * h

		out[i*4] = predCtrX - 0.5*predW
		out[i*4+1] = predCtrY - 0.5*predH
		out[i*4+2] = predCtrX + 0.5*predW - 1
		out[i*4+3] = predCtrY + 0.5*predH - 1
	}

	return tensor.New(
		tensor.Of(tensor.Float32),
		tensor.WithShape(n, 4),
		tensor.WithBacking(out),
	), nil
}

// ClipBoxes clamps box coordinates in place to [0, width-1] x [0, height-1]
// for an image shape given as (height, width). Trailing columns beyond the
// four coordinates are untouched.
func ClipBoxes(boxes *tensor.Dense, imgShape []int) (*tensor.Dense, error) {
	shape := boxes.Shape()
	if len(shape) != 2 || shape[1] < 4 {
		return nil, errors.Errorf("boxes must have shape (N, 4+), got %v", shape)
	}
	if len(imgShape) < 2 {
		return nil, errors.Errorf("image shape must be (height, width), got %v", imgShape)
	}

	height := float32(imgShape[0] - 1)
	width := float32(imgShape[1] - 1)
	stride := shape[1]
	data := boxes.Float32s()

	for i := 0; i < shape[0]; i++ {
		row := data[i*stride : i*stride+4]
		row[0] = math32.Max(math32.Min(row[0], width), 0)
		row[1] = math32.Max(math32.Min(row[1], height), 0)
		row[2] = math32.Max(math32.Min(row[2], width), 0)
		row[3] = math32.Max(math32.Min(row[3], height), 0)
	}

	return boxes, nil
}
