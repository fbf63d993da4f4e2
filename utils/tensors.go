package utils

import (
	"encoding/binary"
	"fmt"
	"math"

	"gorgonia.org/tensor"
)

func VStack(tensors []*tensor.Dense) (*tensor.Dense, error) {
	var nonEmptyTensors []*tensor.Dense
	for _, t := range tensors {
		shape := t.Shape()
		if shape[0] > 0 {
			nonEmptyTensors = append(nonEmptyTensors, t)
		}
	}

	if len(nonEmptyTensors) == 0 {
		return tensor.New(tensor.Of(tensor.Float32), tensor.WithShape(0, 1)), nil
	}

	result, err := nonEmptyTensors[0].Concat(0, nonEmptyTensors[1:]...)
	if err != nil {
		return nil, fmt.Errorf("error concatenating tensors: %v", err)
	}

	return result, nil
}

func SelectRows2D(t *tensor.Dense, indices []int) (*tensor.Dense, error) {
	shape := t.Shape()
	if len(shape) != 2 {
		return nil, fmt.Errorf("expected a 2D tensor")
	}
	numCols := shape[1]

	selectedData := make([]float32, 0, len(indices)*numCols)

	for _, idx := range indices {
		row, err := t.Slice(tensor.S(idx), nil)
		if err != nil {
			return nil, err
		}

		switch row.Data().(type) {
		case []float32:
			rowData := row.Data().([]float32)
			selectedData = append(selectedData, rowData...)
		case float32:
			rowData := row.Data().(float32)
			selectedData = append(selectedData, rowData)
		}

	}

	selectedTensor := tensor.New(
		tensor.Of(tensor.Float32),
		tensor.WithShape(len(indices), numCols),
		tensor.WithBacking(selectedData),
	)

	return selectedTensor, nil
}

// BytesToT32 reinterprets little-endian raw bytes as a slice of 32-bit values.
// Trailing bytes that do not fill a full element are dropped.
func BytesToT32[T float32 | int32 | uint32](data []byte) []T {
	n := len(data) / 4
	out := make([]T, n)
	for i := 0; i < n; i++ {
		bits := binary.LittleEndian.Uint32(data[i*4 : i*4+4])
		switch p := any(&out[i]).(type) {
		case *float32:
			*p = math.Float32frombits(bits)
		case *int32:
			*p = int32(bits)
		case *uint32:
			*p = bits
		}
	}
	return out
}

func RefPointer[T any](v T) *T {
	return &v
}

func DerefPointer[T any](v *T) T {
	if v == nil {
		var zero T
		return zero
	}
	return *v
}
