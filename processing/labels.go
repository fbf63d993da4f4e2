package processing

// Per-anchor training labels.
const (
	LabelIgnore     float32 = -1
	LabelBackground float32 = 0
	LabelForeground float32 = 1
)

// AssignLabels turns per-anchor best overlaps into tri-state labels. The
// passes run in a fixed order that encodes the assignment policy: background
// below the negative threshold first (unless clobbering), then the forced
// foreground for each query box's best anchors, then foreground above the
// positive threshold, and finally the background pass when clobbering is on so
// low-overlap anchors override a forced foreground. Untouched anchors stay
// ignored.
func AssignLabels(maxOverlaps []float32, bestAnchors []int, clobberPositives bool, positiveOverlap, negativeOverlap float32) []float32 {
	labels := make([]float32, len(maxOverlaps))
	for i := range labels {
		labels[i] = LabelIgnore
	}

	if !clobberPositives {
		markBackground(labels, maxOverlaps, negativeOverlap)
	}

	for _, idx := range bestAnchors {
		labels[idx] = LabelForeground
	}

	markForeground(labels, maxOverlaps, positiveOverlap)

	if clobberPositives {
		markBackground(labels, maxOverlaps, negativeOverlap)
	}

	return labels
}

func markBackground(labels, maxOverlaps []float32, negativeOverlap float32) {
	for i, overlap := range maxOverlaps {
		if overlap < negativeOverlap {
			labels[i] = LabelBackground
		}
	}
}

func markForeground(labels, maxOverlaps []float32, positiveOverlap float32) {
	for i, overlap := range maxOverlaps {
		if overlap >= positiveOverlap {
			labels[i] = LabelForeground
		}
	}
}
