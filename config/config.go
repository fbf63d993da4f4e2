package config

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

var validate = validator.New()

// AnchorGenParams controls the base anchor template: a BaseSize window
// enumerated over Ratios, then over Scales, yielding
// len(Ratios)*len(Scales) anchors per feature map cell. FeatStride holds the
// pixel strides of the backbone; only the first entry drives the single-level
// grid.
type AnchorGenParams struct {
	BaseSize   int       `json:"base_size" validate:"gt=0"`
	Ratios     []float32 `json:"ratios" validate:"required,min=1,dive,gt=0"`
	Scales     []float32 `json:"scales" validate:"required,min=1,dive,gt=0"`
	FeatStride []int     `json:"feat_stride" validate:"required,min=1,dive,gt=0"`
}

var DefaultAnchorGenParams = &AnchorGenParams{
	BaseSize:   16,
	Ratios:     []float32{0.5, 1, 2},
	Scales:     []float32{8, 16, 32},
	FeatStride: []int{16},
}

func NewAnchorGenParams(baseSize int, ratios, scales []float32, featStride []int) *AnchorGenParams {
	return &AnchorGenParams{
		BaseSize:   baseSize,
		Ratios:     ratios,
		Scales:     scales,
		FeatStride: featStride,
	}
}

func (p *AnchorGenParams) Validate() error {
	if err := validate.Struct(p); err != nil {
		return errors.Wrap(err, "invalid anchor generation params")
	}
	return nil
}

// AnchorTargetParams controls label assignment and sampling. RandomSeed, when
// set, makes every invocation draw from a fresh deterministic source; when
// nil, draws come from the shared locked source.
type AnchorTargetParams struct {
	AllowedBorder      float32    `json:"allowed_border" validate:"gte=0"`
	ClobberPositives   bool       `json:"clobber_positives"`
	PositiveOverlap    float32    `json:"positive_overlap" validate:"gt=0,lt=1"`
	NegativeOverlap    float32    `json:"negative_overlap" validate:"gt=0,lt=1"`
	ForegroundFraction float32    `json:"foreground_fraction" validate:"gt=0,lt=1"`
	BatchSize          int        `json:"batch_size" validate:"gt=0"`
	BBoxInsideWeights  [4]float32 `json:"bbox_inside_weights"`
	RandomSeed         *uint64    `json:"random_seed,omitempty"`
}

var DefaultAnchorTargetParams = &AnchorTargetParams{
	AllowedBorder:      0,
	ClobberPositives:   false,
	PositiveOverlap:    0.7,
	NegativeOverlap:    0.3,
	ForegroundFraction: 0.5,
	BatchSize:          256,
	BBoxInsideWeights:  [4]float32{1, 1, 1, 1},
}

func NewAnchorTargetParams(allowedBorder float32, clobberPositives bool, positiveOverlap, negativeOverlap, foregroundFraction float32, batchSize int, bboxInsideWeights [4]float32) *AnchorTargetParams {
	return &AnchorTargetParams{
		AllowedBorder:      allowedBorder,
		ClobberPositives:   clobberPositives,
		PositiveOverlap:    positiveOverlap,
		NegativeOverlap:    negativeOverlap,
		ForegroundFraction: foregroundFraction,
		BatchSize:          batchSize,
		BBoxInsideWeights:  bboxInsideWeights,
	}
}

func (p *AnchorTargetParams) Validate() error {
	if err := validate.Struct(p); err != nil {
		return errors.Wrap(err, "invalid anchor target params")
	}
	if p.NegativeOverlap >= p.PositiveOverlap {
		return errors.Errorf(
			"negative overlap %.2f must be below positive overlap %.2f",
			p.NegativeOverlap, p.PositiveOverlap,
		)
	}
	return nil
}

// RPNScoreMapParams configures the served RPN model used to discover the
// feature map shape. ImageSize is (height, width) of the network input;
// ScoreTensorName selects the classification score output, falling back to the
// first output when the name is not present in the response.
type RPNScoreMapParams struct {
	ModelName       string        `json:"model_name" validate:"required"`
	ScoreTensorName string        `json:"score_tensor_name"`
	Timeout         time.Duration `json:"timeout" validate:"gt=0"`
	ImageSize       [2]int        `json:"image_size" validate:"dive,gt=0"`
	MaxBatchSize    int           `json:"max_batch_size" validate:"gt=0"`
}

var DefaultRPNScoreMapParams = &RPNScoreMapParams{
	ModelName:       "rpn",
	ScoreTensorName: "rpn_cls_score",
	Timeout:         20 * time.Second,
	ImageSize:       [2]int{600, 1000},
	MaxBatchSize:    1,
}

func NewRPNScoreMapParams(modelName, scoreTensorName string, timeout time.Duration, imgSize [2]int, maxBatchSize int) *RPNScoreMapParams {
	return &RPNScoreMapParams{
		ModelName:       modelName,
		ScoreTensorName: scoreTensorName,
		Timeout:         timeout,
		ImageSize:       imgSize,
		MaxBatchSize:    maxBatchSize,
	}
}

func (p *RPNScoreMapParams) Validate() error {
	if err := validate.Struct(p); err != nil {
		return errors.Wrap(err, "invalid rpn score map params")
	}
	return nil
}
