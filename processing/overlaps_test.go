package processing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gorgonia.org/tensor"
)

func boxTensor(rows, cols int, data []float32) *tensor.Dense {
	return tensor.New(
		tensor.Of(tensor.Float32),
		tensor.WithShape(rows, cols),
		tensor.WithBacking(data),
	)
}

func TestOverlaps_Pairwise(t *testing.T) {
	boxes := boxTensor(2, 4, []float32{
		0, 0, 9, 9,
		10, 10, 14, 14,
	})
	query := boxTensor(2, 5, []float32{
		0, 0, 9, 9, 1,
		5, 5, 14, 14, 2,
	})

	overlaps, err := Overlaps(boxes, query)
	assert.NoError(t, err)
	assert.Equal(t, tensor.Shape{2, 2}, overlaps.Shape())

	data := overlaps.Float32s()
	assert.Equal(t, float32(1), data[0])
	assert.InDelta(t, 25.0/175.0, data[1], 1e-6)
	assert.Equal(t, float32(0), data[2])
	assert.InDelta(t, 0.25, data[3], 1e-6)
}

func TestOverlaps_Disjoint(t *testing.T) {
	boxes := boxTensor(1, 4, []float32{0, 0, 4, 4})
	query := boxTensor(1, 4, []float32{10, 10, 14, 14})

	overlaps, err := Overlaps(boxes, query)
	assert.NoError(t, err)
	assert.Equal(t, []float32{0}, overlaps.Float32s())
}

func TestOverlaps_SharedEdge(t *testing.T) {
	// inclusive coordinates: boxes touching at x=5 still share a pixel column
	boxes := boxTensor(1, 4, []float32{0, 0, 5, 9})
	query := boxTensor(1, 4, []float32{5, 0, 10, 9})

	overlaps, err := Overlaps(boxes, query)
	assert.NoError(t, err)
	assert.InDelta(t, 10.0/110.0, overlaps.Float32s()[0], 1e-6)
}

func TestOverlaps_EmptyQuery(t *testing.T) {
	boxes := boxTensor(2, 4, []float32{
		0, 0, 9, 9,
		10, 10, 14, 14,
	})
	empty := tensor.New(tensor.Of(tensor.Float32), tensor.WithShape(0, 4))

	overlaps, err := Overlaps(boxes, empty)
	assert.NoError(t, err)
	assert.Equal(t, tensor.Shape{2, 0}, overlaps.Shape())

	argmax, maxOverlaps, err := BestOverlaps(overlaps)
	assert.NoError(t, err)
	assert.Equal(t, []int{0, 0}, argmax)
	assert.Equal(t, []float32{0, 0}, maxOverlaps)
}

func TestOverlaps_InvalidShape(t *testing.T) {
	boxes := boxTensor(2, 4, []float32{0, 0, 9, 9, 10, 10, 14, 14})
	bad := tensor.New(tensor.Of(tensor.Float32), tensor.WithShape(4), tensor.WithBacking([]float32{0, 0, 9, 9}))

	_, err := Overlaps(boxes, bad)
	assert.Error(t, err)

	_, err = Overlaps(bad, boxes)
	assert.Error(t, err)
}

func TestBestOverlaps_FirstIndexOnTies(t *testing.T) {
	overlaps := boxTensor(2, 3, []float32{
		0.5, 0.5, 0.2,
		0.1, 0.4, 0.4,
	})

	argmax, maxOverlaps, err := BestOverlaps(overlaps)
	assert.NoError(t, err)
	assert.Equal(t, []int{0, 1}, argmax)
	assert.Equal(t, []float32{0.5, 0.4}, maxOverlaps)
}

func TestBestAnchorsPerGT_KeepsAllTiedRows(t *testing.T) {
	overlaps := boxTensor(3, 1, []float32{0.3, 0.7, 0.7})

	rows, err := BestAnchorsPerGT(overlaps)
	assert.NoError(t, err)
	assert.Equal(t, []int{1, 2}, rows)
}

func TestBestAnchorsPerGT_DeduplicatesAcrossColumns(t *testing.T) {
	overlaps := boxTensor(2, 2, []float32{
		0.2, 0.1,
		0.6, 0.9,
	})

	rows, err := BestAnchorsPerGT(overlaps)
	assert.NoError(t, err)
	assert.Equal(t, []int{1}, rows)
}

func TestBestAnchorsPerGT_PerColumn(t *testing.T) {
	overlaps := boxTensor(3, 2, []float32{
		0.9, 0.1,
		0.2, 0.8,
		0.3, 0.4,
	})

	rows, err := BestAnchorsPerGT(overlaps)
	assert.NoError(t, err)
	assert.Equal(t, []int{0, 1}, rows)
}
