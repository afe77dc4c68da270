//go:build ORT

package inference

import (
	"context"
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/cozy-creator/medpredict/internal/imaging"
)

var ortMu sync.Mutex

// ORTPredictor executes ONNX graphs through the ONNX Runtime shared library.
type ORTPredictor struct {
	mu         sync.Mutex
	session    *ort.DynamicAdvancedSession
	options    *ort.SessionOptions
	inputShape []int64
}

func initialiseORT(opts Options) error {
	ortMu.Lock()
	defer ortMu.Unlock()

	if ort.IsInitialized() {
		return nil
	}

	if opts.LibraryPath != "" {
		ort.SetSharedLibraryPath(opts.LibraryPath)
	}

	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("failed to initialize ONNX environment: %w", err)
	}

	return ort.DisableTelemetry()
}

func NewORTPredictor(path string, opts Options) (Predictor, error) {
	if err := initialiseORT(opts); err != nil {
		return nil, err
	}

	inputs, outputs, err := ort.GetInputOutputInfo(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model info %s: %w", path, err)
	}
	if len(inputs) != 1 || len(outputs) < 1 {
		return nil, fmt.Errorf("model %s must have exactly one input and at least one output, got %d/%d",
			path, len(inputs), len(outputs))
	}

	sessionOptions, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("failed to create session options: %w", err)
	}

	if opts.IntraOpNumThreads > 0 {
		if err := sessionOptions.SetIntraOpNumThreads(opts.IntraOpNumThreads); err != nil {
			sessionOptions.Destroy()
			return nil, err
		}
	}

	session, err := ort.NewDynamicAdvancedSession(path,
		[]string{inputs[0].Name}, []string{outputs[0].Name}, sessionOptions)
	if err != nil {
		sessionOptions.Destroy()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	return &ORTPredictor{
		session:    session,
		options:    sessionOptions,
		inputShape: []int64(inputs[0].Dimensions),
	}, nil
}

func (p *ORTPredictor) Predict(ctx context.Context, input *imaging.Tensor) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	inputTensor, err := ort.NewTensor(ort.NewShape(input.Shape...), input.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer inputTensor.Destroy()

	outputs := []ort.Value{nil}

	p.mu.Lock()
	err = p.session.Run([]ort.Value{inputTensor}, outputs)
	p.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}
	defer outputs[0].Destroy()

	outputTensor, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("output type %T is not supported", outputs[0])
	}

	return rows(outputTensor.GetData(), []int64(outputTensor.GetShape()))
}

func (p *ORTPredictor) InputShape() []int64 {
	return p.inputShape
}

func (p *ORTPredictor) Close() error {
	if err := p.session.Destroy(); err != nil {
		return err
	}
	return p.options.Destroy()
}

// Shutdown releases the ONNX Runtime environment once every predictor is closed.
func Shutdown() error {
	ortMu.Lock()
	defer ortMu.Unlock()

	if !ort.IsInitialized() {
		return nil
	}
	return ort.DestroyEnvironment()
}
