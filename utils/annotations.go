package utils

import (
	"encoding/json"
	"os"

	"github.com/chewxy/math32"
	"github.com/okieraised/go-anchor-target/processing"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

type annotationImage struct {
	ID       int    `json:"id"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	FileName string `json:"file_name"`
}

type annotationEntry struct {
	ImageID    int       `json:"image_id"`
	CategoryID int       `json:"category_id"`
	BBox       []float32 `json:"bbox"`
}

type annotationFile struct {
	Images      []annotationImage `json:"images"`
	Annotations []annotationEntry `json:"annotations"`
}

// GroundTruth ties one annotated image to its (M, 5) ground truth tensor with
// rows of (x1, y1, x2, y2, class).
type GroundTruth struct {
	FileName string
	Width    int
	Height   int
	Boxes    *tensor.Dense
}

// LoadGroundTruth reads a COCO-style annotation file (bbox given as
// x, y, width, height) and builds per-image ground truth tensors keyed by
// image id. Boxes are converted to inclusive corner coordinates and clamped
// to the image; annotations with non-positive extent are dropped. Images
// without annotations map to an empty (0, 5) tensor.
func LoadGroundTruth(path string) (map[int]*GroundTruth, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read annotation file")
	}

	var parsed annotationFile
	if err := json.Unmarshal(content, &parsed); err != nil {
		return nil, errors.Wrap(err, "failed to parse annotation file")
	}

	grouped := make(map[int][]*tensor.Dense)
	for _, ann := range parsed.Annotations {
		if len(ann.BBox) != 4 {
			return nil, errors.Errorf("annotation for image %d has %d bbox fields, want 4", ann.ImageID, len(ann.BBox))
		}
		if ann.BBox[2] <= 0 || ann.BBox[3] <= 0 {
			continue
		}

		x1 := ann.BBox[0]
		y1 := ann.BBox[1]
		x2 := x1 + math32.Max(ann.BBox[2]-1, 0)
		y2 := y1 + math32.Max(ann.BBox[3]-1, 0)

		row := tensor.New(
			tensor.Of(tensor.Float32),
			tensor.WithShape(1, 5),
			tensor.WithBacking([]float32{x1, y1, x2, y2, float32(ann.CategoryID)}),
		)
		grouped[ann.ImageID] = append(grouped[ann.ImageID], row)
	}

	out := make(map[int]*GroundTruth, len(parsed.Images))
	for _, img := range parsed.Images {
		gt := &GroundTruth{
			FileName: img.FileName,
			Width:    img.Width,
			Height:   img.Height,
		}

		rows := grouped[img.ID]
		if len(rows) == 0 {
			gt.Boxes = tensor.New(tensor.Of(tensor.Float32), tensor.WithShape(0, 5))
			out[img.ID] = gt
			continue
		}

		boxes, err := VStack(rows)
		if err != nil {
			return nil, err
		}
		boxes, err = processing.ClipBoxes(boxes, []int{img.Height, img.Width})
		if err != nil {
			return nil, err
		}
		gt.Boxes = boxes
		out[img.ID] = gt
	}

	return out, nil
}
