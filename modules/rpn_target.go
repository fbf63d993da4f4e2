package modules

import (
	"image"

	"github.com/okieraised/go-anchor-target/config"
	"github.com/okieraised/go-anchor-target/utils"
	gotritonclient "github.com/okieraised/go-triton-client"
	"github.com/okieraised/go-triton-client/triton_proto"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
	"gorgonia.org/tensor"
)

// RPNTargetClient computes anchor targets against a served RPN model: the
// image is letterboxed to the configured input size, the model is run once,
// and the spatial shape of its classification score map drives the anchor
// grid. Ground truth boxes are rescaled into network input coordinates before
// assignment.
type RPNTargetClient struct {
	tritonClient *gotritonclient.TritonGRPCClient
	ModelParams  *config.RPNScoreMapParams
	ModelConfig  *triton_proto.ModelConfigResponse
	anchorTarget *AnchorTargetClient
	imageSize    [2]int
	pixelMeans   []float32
	pixelStds    []float32
	pixelScale   float32
}

func NewRPNTargetClient(tritonClient *gotritonclient.TritonGRPCClient, cfg *config.RPNScoreMapParams, genCfg *config.AnchorGenParams, targetCfg *config.AnchorTargetParams) (*RPNTargetClient, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	anchorTarget, err := NewAnchorTargetClient(genCfg, targetCfg)
	if err != nil {
		return nil, err
	}

	inferenceConfig, err := tritonClient.GetModelConfiguration(cfg.Timeout, cfg.ModelName, "")
	if err != nil {
		return nil, err
	}

	client := &RPNTargetClient{
		tritonClient: tritonClient,
		ModelParams:  cfg,
		ModelConfig:  inferenceConfig,
		anchorTarget: anchorTarget,
		imageSize:    cfg.ImageSize,
		pixelMeans:   []float32{102.9801, 115.9465, 122.7717},
		pixelStds:    []float32{1, 1, 1},
		pixelScale:   1.0,
	}
	return client, nil
}

// AnchorTarget exposes the geometry client sharing this model's anchor
// configuration.
func (c *RPNTargetClient) AnchorTarget() *AnchorTargetClient {
	return c.anchorTarget
}

func (c *RPNTargetClient) preprocess(img gocv.Mat) (gocv.Mat, float64, [2]int, error) {

	imgShape := img.Size()
	imRatio := float64(imgShape[0]) / float64(imgShape[1])
	modelRatio := float64(c.imageSize[0]) / float64(c.imageSize[1])

	var newWidth, newHeight int

	if imRatio > modelRatio {
		newHeight = c.imageSize[0]
		newWidth = int(float64(newHeight) / imRatio)
	} else {
		newWidth = c.imageSize[1]
		newHeight = int(float64(newWidth) * imRatio)
	}
	scale := float64(newHeight) / float64(imgShape[0])

	resizedImg := gocv.NewMat()
	defer resizedImg.Close()
	gocv.Resize(img, &resizedImg, image.Point{X: newWidth, Y: newHeight}, 0.0, 0.0, gocv.InterpolationLinear)

	inputImg := gocv.NewMatWithSizesWithScalar([]int{c.imageSize[0], c.imageSize[1]}, gocv.MatTypeCV8UC3, gocv.NewScalar(0, 0, 0, 0))
	roi := inputImg.Region(image.Rect(0, 0, newWidth, newHeight))
	gocv.Resize(resizedImg, &roi, image.Point{X: roi.Size()[1], Y: roi.Size()[0]}, 0, 0, gocv.InterpolationLinear)

	return inputImg, scale, [2]int{newHeight, newWidth}, nil
}

// Infer runs the served model once and assigns anchor targets for the image
// from the resulting score map shape. It returns the targets together with
// the decoded score map so a trainer can feed both into its loss.
func (c *RPNTargetClient) Infer(img gocv.Mat, gtBoxes *tensor.Dense) (*AnchorTargetResult, *tensor.Dense, error) {
	preprocessedImg, scale, contentSize, err := c.preprocess(img)
	if err != nil {
		return nil, nil, err
	}
	defer func() {
		_ = preprocessedImg.Close()
	}()

	imgShape := preprocessedImg.Size()
	imgTensors := tensor.New(
		tensor.Of(tensor.Float32),
		tensor.WithShape(1, 3, imgShape[0], imgShape[1]),
	)

	for z := range 3 {
		for y := range imgShape[0] {
			for x := range imgShape[1] {
				err := imgTensors.SetAt((float32(preprocessedImg.GetVecbAt(y, x)[2-z])/c.pixelScale-c.pixelMeans[2-z])/c.pixelStds[2-z], 0, z, y, x)
				if err != nil {
					return nil, nil, err
				}
			}
		}
	}

	modelRequest := &triton_proto.ModelInferRequest{
		ModelName: c.ModelParams.ModelName,
	}

	modelInputs := make([]*triton_proto.ModelInferRequest_InferInputTensor, 0)
	for _, inputCfg := range c.ModelConfig.Config.Input {
		modelInput := &triton_proto.ModelInferRequest_InferInputTensor{
			Name:     inputCfg.Name,
			Datatype: inputCfg.DataType.String()[5:],
			Shape:    inputCfg.Dims,
			Contents: &triton_proto.InferTensorContents{
				Fp32Contents: imgTensors.Float32s(),
			},
		}
		modelInputs = append(modelInputs, modelInput)
	}

	modelRequest.Inputs = modelInputs
	inferResp, err := c.tritonClient.ModelGRPCInfer(c.ModelParams.Timeout, modelRequest)
	if err != nil {
		return nil, nil, err
	}
	if len(inferResp.Outputs) == 0 {
		return nil, nil, errors.Errorf("model %s returned no outputs", c.ModelParams.ModelName)
	}

	scoreIdx := 0
	for idx, out := range inferResp.Outputs {
		if out.Name == c.ModelParams.ScoreTensorName {
			scoreIdx = idx
			break
		}
	}

	outShape := make([]int, 0)
	for _, dim := range inferResp.Outputs[scoreIdx].Shape {
		outShape = append(outShape, int(dim))
	}
	if len(outShape) != 4 {
		return nil, nil, errors.Errorf("score map must be 4D (N, C, H, W), got %v", outShape)
	}
	featHeight, featWidth := outShape[2], outShape[3]

	scoreMap := tensor.New(
		tensor.Of(tensor.Float32),
		tensor.WithShape(outShape...),
		tensor.WithBacking(utils.BytesToT32[float32](inferResp.RawOutputContents[scoreIdx])),
	)

	scaledGT := gtBoxes
	if gtBoxes != nil && len(gtBoxes.Shape()) == 2 && gtBoxes.Shape()[0] > 0 && gtBoxes.Shape()[1] >= 4 {
		scaledGT = gtBoxes.Clone().(*tensor.Dense)
		stride := scaledGT.Shape()[1]
		data := scaledGT.Float32s()
		for i := 0; i < scaledGT.Shape()[0]; i++ {
			for j := 0; j < 4; j++ {
				data[i*stride+j] *= float32(scale)
			}
		}
	}

	result, err := c.anchorTarget.Infer(featHeight, featWidth, contentSize[0], contentSize[1], scaledGT)
	if err != nil {
		return nil, nil, err
	}

	return result, scoreMap, nil
}
