package processing

import (
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/sampleuv"
)

// SubsampleLabels caps the number of foreground and background labels in
// place. At most floor(foregroundFraction*batchSize) anchors keep the
// foreground label; the background quota is recomputed from the surviving
// foreground count so the labeled total never exceeds batchSize. Demoted
// anchors are chosen uniformly without replacement and reset to ignore. A
// shortfall on either side is left as is. A nil src draws from the shared
// locked source.
func SubsampleLabels(labels []float32, batchSize int, foregroundFraction float32, src rand.Source) {
	numFG := int(foregroundFraction * float32(batchSize))
	fgInds := labelIndices(labels, LabelForeground)
	if len(fgInds) > numFG {
		demoteRandom(labels, fgInds, len(fgInds)-numFG, src)
	}

	numBG := batchSize - labelCount(labels, LabelForeground)
	bgInds := labelIndices(labels, LabelBackground)
	if len(bgInds) > numBG {
		demoteRandom(labels, bgInds, len(bgInds)-numBG, src)
	}
}

func labelIndices(labels []float32, label float32) []int {
	inds := make([]int, 0, len(labels))
	for i, l := range labels {
		if l == label {
			inds = append(inds, i)
		}
	}
	return inds
}

func labelCount(labels []float32, label float32) int {
	count := 0
	for _, l := range labels {
		if l == label {
			count++
		}
	}
	return count
}

func demoteRandom(labels []float32, inds []int, excess int, src rand.Source) {
	if excess <= 0 {
		return
	}
	picks := make([]int, excess)
	sampleuv.WithoutReplacement(picks, len(inds), src)
	for _, p := range picks {
		labels[inds[p]] = LabelIgnore
	}
}
