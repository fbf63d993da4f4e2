package processing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/exp/rand"
)

func genOversizedLabels() []float32 {
	labels := make([]float32, 600)
	for i := range labels {
		switch {
		case i < 300:
			labels[i] = LabelForeground
		case i < 500:
			labels[i] = LabelBackground
		default:
			labels[i] = LabelIgnore
		}
	}
	return labels
}

func TestSubsampleLabels_CapsBothSides(t *testing.T) {
	labels := genOversizedLabels()

	SubsampleLabels(labels, 256, 0.5, rand.NewSource(42))

	assert.Equal(t, 128, labelCount(labels, LabelForeground))
	assert.Equal(t, 128, labelCount(labels, LabelBackground))
	assert.Equal(t, 344, labelCount(labels, LabelIgnore))
}

func TestSubsampleLabels_BackgroundQuotaTracksForeground(t *testing.T) {
	labels := make([]float32, 400)
	for i := range labels {
		if i < 100 {
			labels[i] = LabelForeground
		} else {
			labels[i] = LabelBackground
		}
	}

	SubsampleLabels(labels, 256, 0.5, rand.NewSource(1))

	// only 100 foreground anchors exist, so the background side absorbs the
	// remainder of the batch
	assert.Equal(t, 100, labelCount(labels, LabelForeground))
	assert.Equal(t, 156, labelCount(labels, LabelBackground))
}

func TestSubsampleLabels_ShortfallUntouched(t *testing.T) {
	labels := make([]float32, 40)
	for i := range labels {
		if i < 10 {
			labels[i] = LabelForeground
		} else {
			labels[i] = LabelBackground
		}
	}
	before := append([]float32(nil), labels...)

	SubsampleLabels(labels, 256, 0.5, rand.NewSource(7))

	assert.Equal(t, before, labels)
}

func TestSubsampleLabels_Deterministic(t *testing.T) {
	first := genOversizedLabels()
	second := genOversizedLabels()

	SubsampleLabels(first, 256, 0.5, rand.NewSource(1234))
	SubsampleLabels(second, 256, 0.5, rand.NewSource(1234))

	assert.Equal(t, first, second)
}

func TestSubsampleLabels_SharedSource(t *testing.T) {
	labels := genOversizedLabels()

	SubsampleLabels(labels, 256, 0.5, nil)

	assert.Equal(t, 128, labelCount(labels, LabelForeground))
	assert.Equal(t, 128, labelCount(labels, LabelBackground))
}
