package go_anchor_target

import (
	"github.com/okieraised/go-anchor-target/config"
	"github.com/okieraised/go-anchor-target/modules"
	"github.com/okieraised/go-anchor-target/processing"
	gotritonclient "github.com/okieraised/go-triton-client"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
	"gorgonia.org/tensor"
)

// TrainingTargetResult carries the four loss-layout tensors for one image
// plus summary counts over the full anchor grid. ScoreMap is set only on the
// model-backed path.
type TrainingTargetResult struct {
	Labels             *tensor.Dense `json:"labels"`
	BBoxTargets        *tensor.Dense `json:"bbox_targets"`
	BBoxInsideWeights  *tensor.Dense `json:"bbox_inside_weights"`
	BBoxOutsideWeights *tensor.Dense `json:"bbox_outside_weights"`
	ScoreMap           *tensor.Dense `json:"score_map,omitempty"`
	AnchorCount        int           `json:"anchor_count"`
	ForegroundCount    int           `json:"foreground_count"`
	BackgroundCount    int           `json:"background_count"`
}

type AnchorTargetPipeline struct {
	tritonClient *gotritonclient.TritonGRPCClient
	rpnTarget    *modules.RPNTargetClient
	anchorTarget *modules.AnchorTargetClient
}

// NewAnchorTargetPipeline initializes the training target pipeline against a
// served RPN model.
func NewAnchorTargetPipeline(tritonClient *gotritonclient.TritonGRPCClient) (*AnchorTargetPipeline, error) {
	client := &AnchorTargetPipeline{}

	rpnTarget, err := modules.NewRPNTargetClient(
		tritonClient,
		config.DefaultRPNScoreMapParams,
		config.DefaultAnchorGenParams,
		config.DefaultAnchorTargetParams,
	)
	if err != nil {
		return client, err
	}
	client.rpnTarget = rpnTarget
	client.anchorTarget = rpnTarget.AnchorTarget()
	client.tritonClient = tritonClient

	return client, nil
}

// NewOfflineAnchorTargetPipeline initializes the pipeline without a serving
// backend. The feature map shape must then be supplied by the caller through
// ComputeTargetsForShape.
func NewOfflineAnchorTargetPipeline(genCfg *config.AnchorGenParams, targetCfg *config.AnchorTargetParams) (*AnchorTargetPipeline, error) {
	client := &AnchorTargetPipeline{}

	anchorTarget, err := modules.NewAnchorTargetClient(genCfg, targetCfg)
	if err != nil {
		return client, err
	}
	client.anchorTarget = anchorTarget

	return client, nil
}

// ComputeTargets letterboxes the image, runs the served RPN once to obtain
// the score map, and assigns anchor targets against the ground truth boxes
// given in original image coordinates.
func (c *AnchorTargetPipeline) ComputeTargets(img gocv.Mat, gtBoxes *tensor.Dense) (*TrainingTargetResult, error) {
	resp := &TrainingTargetResult{}

	if c.rpnTarget == nil {
		return resp, errors.New("pipeline was initialized without a serving backend")
	}

	result, scoreMap, err := c.rpnTarget.Infer(img, gtBoxes)
	if err != nil {
		return resp, err
	}
	fillTrainingTargetResult(resp, result)
	resp.ScoreMap = scoreMap

	return resp, nil
}

// ComputeTargetsForShape assigns anchor targets for an already known feature
// map shape and image extent, without touching any serving backend.
func (c *AnchorTargetPipeline) ComputeTargetsForShape(featHeight, featWidth, imHeight, imWidth int, gtBoxes *tensor.Dense) (*TrainingTargetResult, error) {
	resp := &TrainingTargetResult{}

	result, err := c.anchorTarget.Infer(featHeight, featWidth, imHeight, imWidth, gtBoxes)
	if err != nil {
		return resp, err
	}
	fillTrainingTargetResult(resp, result)

	return resp, nil
}

func fillTrainingTargetResult(resp *TrainingTargetResult, result *modules.AnchorTargetResult) {
	resp.Labels = result.Labels
	resp.BBoxTargets = result.BBoxTargets
	resp.BBoxInsideWeights = result.BBoxInsideWeights
	resp.BBoxOutsideWeights = result.BBoxOutsideWeights

	labels := result.Labels.Float32s()
	resp.AnchorCount = len(labels)
	for _, label := range labels {
		switch label {
		case processing.LabelForeground:
			resp.ForegroundCount++
		case processing.LabelBackground:
			resp.BackgroundCount++
		}
	}
}
