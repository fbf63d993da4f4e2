package modules

import (
	"github.com/okieraised/go-anchor-target/config"
	"github.com/okieraised/go-anchor-target/logger"
	"github.com/okieraised/go-anchor-target/processing"
	"github.com/okieraised/go-anchor-target/rcnn"
	"github.com/okieraised/go-anchor-target/utils"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/exp/rand"
	"gorgonia.org/tensor"
)

// AnchorTargetResult holds the per-image training targets in the layout the
// loss network consumes: labels as (1, 1, A*H, W) with values in {-1, 0, 1},
// the remaining tensors as (1, 4*A, H, W).
type AnchorTargetResult struct {
	Labels             *tensor.Dense `json:"labels"`
	BBoxTargets        *tensor.Dense `json:"bbox_targets"`
	BBoxInsideWeights  *tensor.Dense `json:"bbox_inside_weights"`
	BBoxOutsideWeights *tensor.Dense `json:"bbox_outside_weights"`
}

// AnchorTargetClient assigns training labels and regression targets to the
// anchor grid of one image. The base anchor template is generated once at
// construction and shared read-only across calls; every Infer call is
// otherwise stateless, so a single client can serve concurrent training
// workers.
type AnchorTargetClient struct {
	GenParams    *config.AnchorGenParams
	TargetParams *config.AnchorTargetParams
	baseAnchors  *tensor.Dense
	numAnchors   int
	featStride   int
}

func NewAnchorTargetClient(genCfg *config.AnchorGenParams, targetCfg *config.AnchorTargetParams) (*AnchorTargetClient, error) {
	if err := genCfg.Validate(); err != nil {
		return nil, err
	}
	if err := targetCfg.Validate(); err != nil {
		return nil, err
	}

	baseAnchors, err := processing.GenerateAnchors(genCfg.BaseSize, genCfg.Ratios, genCfg.Scales)
	if err != nil {
		return nil, err
	}

	client := &AnchorTargetClient{
		GenParams:    genCfg,
		TargetParams: targetCfg,
		baseAnchors:  baseAnchors,
		numAnchors:   baseAnchors.Shape()[0],
		featStride:   genCfg.FeatStride[0],
	}
	return client, nil
}

// NumAnchors reports the number of anchors per feature map cell.
func (c *AnchorTargetClient) NumAnchors() int {
	return c.numAnchors
}

// BaseAnchors returns the cached anchor template of shape (A, 4).
func (c *AnchorTargetClient) BaseAnchors() *tensor.Dense {
	return c.baseAnchors
}

// Infer computes training targets for one image. featHeight and featWidth are
// the spatial size of the score map, imHeight and imWidth the image extent in
// pixels, and gtBoxes the ground truth as (M, 5) rows of
// (x1, y1, x2, y2, class). M=0, a nil tensor, or an image with no anchors
// inside are all valid and produce fully filled ignore/zero grids.
func (c *AnchorTargetClient) Infer(featHeight, featWidth, imHeight, imWidth int, gtBoxes *tensor.Dense) (*AnchorTargetResult, error) {
	numGT := 0
	if gtBoxes != nil {
		gtShape := gtBoxes.Shape()
		if len(gtShape) != 2 {
			return nil, errors.Errorf("ground truth must be 2D, got %v", gtShape)
		}
		if gtShape[0] > 0 && gtShape[1] != 5 {
			return nil, errors.Errorf("ground truth rows must be (x1, y1, x2, y2, class), got %v", gtShape)
		}
		numGT = gtShape[0]
	}

	allAnchors, err := rcnn.Anchors(featHeight, featWidth, c.featStride, c.baseAnchors)
	if err != nil {
		return nil, err
	}
	totalAnchors := featHeight * featWidth * c.numAnchors
	err = allAnchors.Reshape(totalAnchors, 4)
	if err != nil {
		return nil, err
	}

	insideInds, err := rcnn.InsideIndices(allAnchors, imHeight, imWidth, c.TargetParams.AllowedBorder)
	if err != nil {
		return nil, err
	}
	numInside := len(insideInds)

	anchors, err := utils.SelectRows2D(allAnchors, insideInds)
	if err != nil {
		return nil, err
	}

	argmax := make([]int, numInside)
	maxOverlaps := make([]float32, numInside)
	var bestAnchors []int

	if numGT > 0 && numInside > 0 {
		overlaps, err := processing.Overlaps(anchors, gtBoxes)
		if err != nil {
			return nil, err
		}
		argmax, maxOverlaps, err = processing.BestOverlaps(overlaps)
		if err != nil {
			return nil, err
		}
		bestAnchors, err = processing.BestAnchorsPerGT(overlaps)
		if err != nil {
			return nil, err
		}
	}

	labels := processing.AssignLabels(
		maxOverlaps,
		bestAnchors,
		c.TargetParams.ClobberPositives,
		c.TargetParams.PositiveOverlap,
		c.TargetParams.NegativeOverlap,
	)

	var src rand.Source
	if c.TargetParams.RandomSeed != nil {
		src = rand.NewSource(utils.DerefPointer(c.TargetParams.RandomSeed))
	}
	processing.SubsampleLabels(labels, c.TargetParams.BatchSize, c.TargetParams.ForegroundFraction, src)

	// Targets are encoded for every inside anchor against its best ground
	// truth; the weight tensors, not the targets, gate the loss.
	var bboxTargets *tensor.Dense
	if numGT > 0 && numInside > 0 {
		matchedGT, err := utils.SelectRows2D(gtBoxes, argmax)
		if err != nil {
			return nil, err
		}
		bboxTargets, err = processing.TransformBoxes(anchors, matchedGT)
		if err != nil {
			return nil, err
		}
	} else {
		bboxTargets = tensor.New(tensor.Of(tensor.Float32), tensor.WithShape(numInside, 4))
	}

	insideWeights := make([]float32, numInside*4)
	outsideWeights := make([]float32, numInside*4)
	fgCount, bgCount := 0, 0
	for i, label := range labels {
		switch label {
		case processing.LabelForeground:
			copy(insideWeights[i*4:i*4+4], c.TargetParams.BBoxInsideWeights[:])
			fgCount++
		case processing.LabelBackground:
			bgCount++
		}
	}

	// Uniform example weighting, with one extra count so an all-ignore grid
	// never divides by zero.
	numExamples := fgCount + bgCount + 1
	uniform := 1.0 / float32(numExamples)
	for i, label := range labels {
		if label != processing.LabelIgnore {
			outsideWeights[i*4] = uniform
			outsideWeights[i*4+1] = uniform
			outsideWeights[i*4+2] = uniform
			outsideWeights[i*4+3] = uniform
		}
	}

	insideWeightRows := tensor.New(
		tensor.Of(tensor.Float32),
		tensor.WithShape(numInside, 4),
		tensor.WithBacking(insideWeights),
	)
	outsideWeightRows := tensor.New(
		tensor.Of(tensor.Float32),
		tensor.WithShape(numInside, 4),
		tensor.WithBacking(outsideWeights),
	)

	fullLabels := processing.UnmapVector(labels, totalAnchors, insideInds, processing.LabelIgnore)
	fullTargets, err := processing.UnmapRows(bboxTargets, totalAnchors, insideInds, 0)
	if err != nil {
		return nil, err
	}
	fullInsideWeights, err := processing.UnmapRows(insideWeightRows, totalAnchors, insideInds, 0)
	if err != nil {
		return nil, err
	}
	fullOutsideWeights, err := processing.UnmapRows(outsideWeightRows, totalAnchors, insideInds, 0)
	if err != nil {
		return nil, err
	}

	packedLabels, err := processing.PackLabels(fullLabels, c.numAnchors, featHeight, featWidth)
	if err != nil {
		return nil, err
	}
	packedTargets, err := processing.PackQuads(fullTargets, c.numAnchors, featHeight, featWidth)
	if err != nil {
		return nil, err
	}
	packedInsideWeights, err := processing.PackQuads(fullInsideWeights, c.numAnchors, featHeight, featWidth)
	if err != nil {
		return nil, err
	}
	packedOutsideWeights, err := processing.PackQuads(fullOutsideWeights, c.numAnchors, featHeight, featWidth)
	if err != nil {
		return nil, err
	}

	logger.GetLogger().Debug("assigned anchor targets",
		zap.Int("total_anchors", totalAnchors),
		zap.Int("inside_anchors", numInside),
		zap.Int("ground_truth", numGT),
		zap.Int("foreground", fgCount),
		zap.Int("background", bgCount),
	)

	return &AnchorTargetResult{
		Labels:             packedLabels,
		BBoxTargets:        packedTargets,
		BBoxInsideWeights:  packedInsideWeights,
		BBoxOutsideWeights: packedOutsideWeights,
	}, nil
}
