package processing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAssignLabels_Thresholds(t *testing.T) {
	maxOverlaps := []float32{0.1, 0.5, 0.8}

	labels := AssignLabels(maxOverlaps, nil, false, 0.7, 0.3)
	assert.Equal(t, []float32{LabelBackground, LabelIgnore, LabelForeground}, labels)
}

func TestAssignLabels_BestAnchorForced(t *testing.T) {
	maxOverlaps := []float32{0.1, 0.5, 0.8}

	labels := AssignLabels(maxOverlaps, []int{1}, false, 0.7, 0.3)
	assert.Equal(t, []float32{LabelBackground, LabelForeground, LabelForeground}, labels)
}

func TestAssignLabels_ClobberDemotesBestAnchor(t *testing.T) {
	// the only candidate anchor overlaps its box below the negative threshold
	maxOverlaps := []float32{0.1}

	labels := AssignLabels(maxOverlaps, []int{0}, false, 0.7, 0.3)
	assert.Equal(t, []float32{LabelForeground}, labels)

	labels = AssignLabels(maxOverlaps, []int{0}, true, 0.7, 0.3)
	assert.Equal(t, []float32{LabelBackground}, labels)
}

func TestAssignLabels_Empty(t *testing.T) {
	labels := AssignLabels(nil, nil, false, 0.7, 0.3)
	assert.Equal(t, []float32{}, labels)
}
