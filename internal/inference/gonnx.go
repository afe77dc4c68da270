package inference

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/advancedclimatesystems/gonnx"
	"gorgonia.org/tensor"

	"github.com/cozy-creator/medpredict/internal/imaging"
)

// GoPredictor executes ONNX graphs in pure Go.
type GoPredictor struct {
	mu         sync.Mutex
	model      *gonnx.Model
	inputName  string
	outputName string
	inputShape []int64
}

func NewGoPredictor(path string) (*GoPredictor, error) {
	onnxBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model: %w", err)
	}

	model, err := gonnx.NewModelFromBytes(onnxBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse model %s: %w", path, err)
	}

	inputNames := model.InputNames()
	outputNames := model.OutputNames()
	if len(inputNames) != 1 || len(outputNames) < 1 {
		return nil, fmt.Errorf("model %s must have exactly one input and at least one output, got %d/%d",
			path, len(inputNames), len(outputNames))
	}

	shape := model.InputShapes()[inputNames[0]]
	dimensions := make([]int64, len(shape))
	for i, dim := range shape {
		dimensions[i] = dim.Size
	}

	return &GoPredictor{
		model:      model,
		inputName:  inputNames[0],
		outputName: outputNames[0],
		inputShape: dimensions,
	}, nil
}

func (p *GoPredictor) Predict(ctx context.Context, input *imaging.Tensor) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	shape := make([]int, len(input.Shape))
	for i, dim := range input.Shape {
		shape[i] = int(dim)
	}

	inputs := map[string]tensor.Tensor{
		p.inputName: tensor.New(
			tensor.Of(tensor.Float32),
			tensor.WithShape(shape...),
			tensor.WithBacking(input.Data),
		),
	}

	p.mu.Lock()
	outputs, err := p.model.Run(inputs)
	p.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	output, ok := outputs[p.outputName]
	if !ok {
		return nil, fmt.Errorf("model produced no %q output", p.outputName)
	}

	outShape := make([]int64, len(output.Shape()))
	for i, dim := range output.Shape() {
		outShape[i] = int64(dim)
	}

	switch data := output.Data().(type) {
	case []float32:
		return rows(data, outShape)
	case []float64:
		converted := make([]float32, len(data))
		for i, v := range data {
			converted[i] = float32(v)
		}
		return rows(converted, outShape)
	case float32:
		return rows([]float32{data}, outShape)
	default:
		return nil, fmt.Errorf("output type %T is not supported", data)
	}
}

func (p *GoPredictor) InputShape() []int64 {
	return p.inputShape
}

func (p *GoPredictor) Close() error {
	return nil
}
