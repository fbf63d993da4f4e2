package modules

import (
	"os"
	"testing"

	"github.com/okieraised/go-anchor-target/config"
	gotritonclient "github.com/okieraised/go-triton-client"
	"github.com/stretchr/testify/assert"
	"gocv.io/x/gocv"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
	"gorgonia.org/tensor"
)

var tritonTestURL = os.Getenv("TRITON_TEST_URL")

func genTestImage(height, width int) gocv.Mat {
	return gocv.NewMatWithSizesWithScalar(
		[]int{height, width},
		gocv.MatTypeCV8UC3,
		gocv.NewScalar(90, 120, 150, 0),
	)
}

func TestRPNTargetClient_Preprocess(t *testing.T) {
	client := &RPNTargetClient{
		imageSize:  [2]int{600, 1000},
		pixelMeans: []float32{102.9801, 115.9465, 122.7717},
		pixelStds:  []float32{1, 1, 1},
		pixelScale: 1.0,
	}

	img := genTestImage(480, 640)
	defer img.Close()

	preprocessed, scale, contentSize, err := client.preprocess(img)
	assert.NoError(t, err)
	defer preprocessed.Close()

	assert.Equal(t, []int{600, 1000}, preprocessed.Size())
	assert.Equal(t, 3, preprocessed.Channels())
	assert.InDelta(t, 1.25, scale, 1e-9)
	assert.Equal(t, [2]int{600, 800}, contentSize)

	content := preprocessed.GetVecbAt(100, 100)
	assert.Equal(t, uint8(90), content[0])
	assert.Equal(t, uint8(120), content[1])
	assert.Equal(t, uint8(150), content[2])

	// the region right of the resized content stays letterbox black
	padding := preprocessed.GetVecbAt(100, 950)
	assert.Equal(t, uint8(0), padding[0])
	assert.Equal(t, uint8(0), padding[1])
	assert.Equal(t, uint8(0), padding[2])
}

func TestRPNTargetClient_PreprocessWideImage(t *testing.T) {
	client := &RPNTargetClient{
		imageSize:  [2]int{600, 1000},
		pixelMeans: []float32{102.9801, 115.9465, 122.7717},
		pixelStds:  []float32{1, 1, 1},
		pixelScale: 1.0,
	}

	img := genTestImage(500, 2000)
	defer img.Close()

	preprocessed, scale, contentSize, err := client.preprocess(img)
	assert.NoError(t, err)
	defer preprocessed.Close()

	assert.Equal(t, []int{600, 1000}, preprocessed.Size())
	assert.InDelta(t, 0.5, scale, 1e-9)
	assert.Equal(t, [2]int{250, 1000}, contentSize)
}

func TestNewRPNTargetClient_Live(t *testing.T) {
	if tritonTestURL == "" {
		t.Skip("TRITON_TEST_URL not set")
	}

	tritonClient, err := gotritonclient.NewTritonGRPCClient(
		tritonTestURL,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{PermitWithoutStream: true}),
	)
	assert.NoError(t, err)

	client, err := NewRPNTargetClient(
		tritonClient,
		config.DefaultRPNScoreMapParams,
		config.DefaultAnchorGenParams,
		config.DefaultAnchorTargetParams,
	)
	assert.NoError(t, err)

	img := genTestImage(480, 640)
	defer img.Close()

	gt := tensor.New(
		tensor.Of(tensor.Float32),
		tensor.WithShape(1, 5),
		tensor.WithBacking([]float32{100, 100, 300, 300, 1}),
	)

	result, scoreMap, err := client.Infer(img, gt)
	assert.NoError(t, err)
	assert.NotNil(t, result)
	assert.NotNil(t, scoreMap)

	assert.Equal(t, 4, len(result.Labels.Shape()))
	assert.Equal(t, 4, len(scoreMap.Shape()))
	assert.Equal(t, result.Labels.Shape()[3], scoreMap.Shape()[3])
}
