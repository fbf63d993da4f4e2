package processing

import (
	"github.com/chewxy/math32"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// GenerateAnchors produces the base anchor template: a baseSize window
// enumerated over every aspect ratio, then each ratio anchor over every scale.
// The result has |ratios|*|scales| rows of (x1, y1, x2, y2) around a cell
// origin, with inclusive pixel widths (x2 - x1 + 1).
func GenerateAnchors(baseSize int, ratios, scales []float32) (*tensor.Dense, error) {
	if baseSize <= 0 {
		return nil, errors.Errorf("base size must be positive, got %d", baseSize)
	}
	if len(ratios) == 0 || len(scales) == 0 {
		return nil, errors.New("ratios and scales must not be empty")
	}

	ratioTensor := tensor.New(
		tensor.Of(tensor.Float32),
		tensor.WithShape(1, len(ratios)),
		tensor.WithBacking(append([]float32(nil), ratios...)),
	)
	scaleTensor := tensor.New(
		tensor.Of(tensor.Float32),
		tensor.WithShape(1, len(scales)),
		tensor.WithBacking(append([]float32(nil), scales...)),
	)

	baseAnchor := tensor.New(
		tensor.Of(tensor.Float32),
		tensor.WithShape(1, 4),
		tensor.WithBacking([]float32{0, 0, float32(baseSize) - 1, float32(baseSize) - 1}),
	)

	ratioAnchors, err := ratioEnum(baseAnchor, ratioTensor)
	if err != nil {
		return nil, err
	}

	scaledAnchors := make([]*tensor.Dense, 0)
	for i := range ratioAnchors.Shape()[0] {
		sliced, err := ratioAnchors.Slice(tensor.S(i))
		if err != nil {
			return nil, err
		}
		scaled, err := scaleEnum(sliced.(*tensor.Dense), scaleTensor)
		if err != nil {
			return nil, err
		}
		scaledAnchors = append(scaledAnchors, scaled)
	}

	anchors, err := scaledAnchors[0].Vstack(scaledAnchors[1:]...)
	if err != nil {
		return nil, err
	}

	return anchors, nil
}

func ratioEnum(anchor, ratios *tensor.Dense) (*tensor.Dense, error) {

	w, h, centerX, centerY := whctrs(anchor)
	size := w * h
	sizeRatios, err := ratios.DivScalar(size, false)
	if err != nil {
		return nil, err
	}

	wsRaw, err := tensor.Sqrt(sizeRatios)
	if err != nil {
		return nil, err
	}

	// the reference enumeration keeps integral widths and heights
	ws, err := wsRaw.(*tensor.Dense).Apply(math32.Round)
	if err != nil {
		return nil, err
	}

	hsRaw, err := ws.(*tensor.Dense).Mul(ratios)
	if err != nil {
		return nil, err
	}
	hs, err := hsRaw.Apply(math32.Round)
	if err != nil {
		return nil, err
	}

	anchors, err := mkanchors(ws.(*tensor.Dense), hs.(*tensor.Dense), centerX, centerY)
	if err != nil {
		return nil, err
	}

	return anchors, nil
}

func whctrs(anchor *tensor.Dense) (float32, float32, float32, float32) {

	rawAnchors := anchor.Float32s()

	w := rawAnchors[2] - rawAnchors[0] + 1
	h := rawAnchors[3] - rawAnchors[1] + 1
	centerX := rawAnchors[0] + 0.5*(w-1)
	centerY := rawAnchors[1] + 0.5*(h-1)

	return w, h, centerX, centerY

}

func mkanchors(ws, hs *tensor.Dense, centerX, centerY float32) (*tensor.Dense, error) {

	wsShape := ws.Shape()
	err := ws.Reshape(wsShape[1], 1)
	if err != nil {
		return nil, err
	}

	hsShape := hs.Shape()
	err = hs.Reshape(hsShape[1], 1)
	if err != nil {
		return nil, err
	}
	ws, err = ws.SubScalar(float32(1.0), true)
	if err != nil {
		return nil, err
	}
	ws, err = ws.MulScalar(float32(0.5), true)
	if err != nil {
		return nil, err
	}
	anchor0, err := ws.SubScalar(centerX, false)
	if err != nil {
		return nil, err
	}
	anchor2, err := ws.AddScalar(centerX, false)
	if err != nil {
		return nil, err
	}
	hs, err = hs.SubScalar(float32(1.0), true)
	if err != nil {
		return nil, err
	}
	hs, err = hs.MulScalar(float32(0.5), true)
	if err != nil {
		return nil, err
	}
	anchor1, err := hs.SubScalar(centerY, false)
	if err != nil {
		return nil, err
	}
	anchor3, err := hs.AddScalar(centerY, false)
	if err != nil {
		return nil, err
	}

	anchors, err := anchor0.Hstack(anchor1, anchor2, anchor3)
	if err != nil {
		return nil, err
	}

	return anchors, nil
}

func scaleEnum(anchor, scales *tensor.Dense) (*tensor.Dense, error) {

	w, h, centerX, centerY := whctrs(anchor)

	ws, err := scales.MulScalar(w, true)
	if err != nil {
		return nil, err
	}

	hs, err := scales.MulScalar(h, true)
	if err != nil {
		return nil, err
	}

	anchors, err := mkanchors(ws, hs, centerX, centerY)
	if err != nil {
		return nil, err
	}

	return anchors, nil
}
