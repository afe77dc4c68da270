package inference

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cozy-creator/medpredict/internal/imaging"
)

const (
	RuntimeGo  = "go"
	RuntimeORT = "ort"
)

var (
	ErrUnknownRuntime = errors.New("unknown inference runtime")
	ErrEmptyOutput    = errors.New("model returned no output")
	ErrInvalidOutput  = errors.New("model returned a non-finite value")
)

// Predictor runs one opaque model. Implementations must be safe for
// concurrent use.
type Predictor interface {
	Predict(ctx context.Context, input *imaging.Tensor) ([][]float32, error)
	// InputShape is the declared model input shape; dynamic dimensions are <= 0.
	InputShape() []int64
	Close() error
}

type Options struct {
	LibraryPath       string
	IntraOpNumThreads int
}

// Open loads the model at path with the requested runtime.
func Open(runtime, path string, opts Options) (Predictor, error) {
	switch strings.ToLower(runtime) {
	case "", RuntimeGo:
		predictor, err := NewGoPredictor(path)
		if err != nil {
			return nil, err
		}
		return predictor, nil
	case RuntimeORT:
		return NewORTPredictor(path, opts)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownRuntime, runtime)
	}
}

// FuncPredictor adapts a plain function to the Predictor interface.
type FuncPredictor struct {
	Shape []int64
	Fn    func(ctx context.Context, input *imaging.Tensor) ([][]float32, error)
}

func (p *FuncPredictor) Predict(ctx context.Context, input *imaging.Tensor) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return p.Fn(ctx, input)
}

func (p *FuncPredictor) InputShape() []int64 {
	return p.Shape
}

func (p *FuncPredictor) Close() error {
	return nil
}

// rows splits a flat output buffer into [batch][outputs].
func rows(data []float32, shape []int64) ([][]float32, error) {
	if len(data) == 0 {
		return nil, ErrEmptyOutput
	}

	batch := 1
	if len(shape) >= 2 && shape[0] > 0 {
		batch = int(shape[0])
	}
	if len(data)%batch != 0 {
		return nil, fmt.Errorf("output of %d values does not divide into batch of %d", len(data), batch)
	}

	width := len(data) / batch
	out := make([][]float32, batch)
	for i := range out {
		row := make([]float32, width)
		copy(row, data[i*width:(i+1)*width])
		out[i] = row
	}

	return out, nil
}
