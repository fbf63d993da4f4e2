package utils

import (
	"image"
	"image/color"

	"github.com/okieraised/go-anchor-target/processing"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
	"gorgonia.org/tensor"
)

// ImageToOpenCV converts the raw image into OpenCV Matrix
func ImageToOpenCV(bImage []byte) (*gocv.Mat, error) {
	dstMat := gocv.Mat{}
	srcMat, err := gocv.IMDecode(bImage, gocv.IMReadUnchanged)
	if err != nil {
		return &gocv.Mat{}, err
	}

	// Add the rows, columns, and number of channel to the dimension
	dimension := []int{}
	dimension = append(dimension, srcMat.Size()...)
	dimension = append(dimension, srcMat.Channels())

	if len(dimension) < 3 {
		return &dstMat, errors.Errorf("invalid number of dimension: %d", len(dimension))
	}

	if dimension[2] == 4 { // RGBA
		gocv.CvtColor(srcMat, &dstMat, gocv.ColorBGRAToBGR)
	} else if dimension[2] == 1 { // Grayscale
		gocv.CvtColor(srcMat, &dstMat, gocv.ColorGrayToBGR)
	} else {
		dstMat = srcMat
	}
	return &dstMat, nil
}

// DrawLabeledAnchors renders labeled anchors onto an image for training
// inspection: foreground anchors in green, background in red, ignored ones
// skipped. Anchor boxes are (N, 4+) rows of (x1, y1, x2, y2) inclusive
// coordinates paired with one label each.
func DrawLabeledAnchors(img *gocv.Mat, anchors *tensor.Dense, labels []float32) error {
	shape := anchors.Shape()
	if len(shape) != 2 || shape[1] < 4 {
		return errors.Errorf("anchors must have shape (N, 4+), got %v", shape)
	}
	if shape[0] != len(labels) {
		return errors.Errorf("anchor count %d does not match label count %d", shape[0], len(labels))
	}

	foreground := color.RGBA{G: 255, A: 255}
	background := color.RGBA{R: 255, A: 255}

	stride := shape[1]
	data := anchors.Float32s()
	for i, label := range labels {
		var boxColor color.RGBA
		switch label {
		case processing.LabelForeground:
			boxColor = foreground
		case processing.LabelBackground:
			boxColor = background
		default:
			continue
		}
		rect := image.Rect(
			int(data[i*stride]),
			int(data[i*stride+1]),
			int(data[i*stride+2])+1,
			int(data[i*stride+3])+1,
		)
		gocv.Rectangle(img, rect, boxColor, 1)
	}

	return nil
}
