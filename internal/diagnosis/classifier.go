package diagnosis

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/cozy-creator/medpredict/internal/imaging"
	"github.com/cozy-creator/medpredict/internal/inference"
)

var (
	ErrModelNotLoaded  = errors.New("model not loaded")
	ErrChannelMismatch = errors.New("input channel mismatch")
)

// Classifier binds a Spec to a loaded predictor.
type Classifier struct {
	spec      Spec
	predictor inference.Predictor
	filter    imaging.Filter
}

func NewClassifier(spec Spec, predictor inference.Predictor, filter imaging.Filter) *Classifier {
	if filter == "" {
		filter = imaging.DefaultFilter
	}
	return &Classifier{spec: spec, predictor: predictor, filter: filter}
}

func (c *Classifier) Spec() Spec {
	return c.spec
}

func (c *Classifier) InputShape() []int64 {
	return c.predictor.InputShape()
}

// Classify decodes data, runs the model and interprets its output.
func (c *Classifier) Classify(ctx context.Context, data []byte) (*Result, error) {
	img, _, err := imaging.Decode(data)
	if err != nil {
		return nil, err
	}

	input, err := c.Preprocess(img)
	if err != nil {
		return nil, err
	}

	raw, err := c.predictor.Predict(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("%s: prediction failed: %w", c.spec.Disease, err)
	}

	return c.Interpret(raw)
}

// Preprocess converts, resizes and normalises img into the model's input
// tensor, repeating a grey channel when the model wants more.
func (c *Classifier) Preprocess(img image.Image) (*imaging.Tensor, error) {
	size := c.spec.ImageSize

	var prepared image.Image
	switch c.spec.ColorMode {
	case ColorGrayscale:
		resized, err := imaging.Resize(imaging.Luma(img), size, size, c.filter)
		if err != nil {
			return nil, err
		}
		prepared = imaging.Luma(resized)
	case ColorRGBToGrayscale:
		resized, err := imaging.Resize(imaging.RGB(img), size, size, c.filter)
		if err != nil {
			return nil, err
		}
		prepared = imaging.Luma(resized)
	default:
		resized, err := imaging.Resize(imaging.RGB(img), size, size, c.filter)
		if err != nil {
			return nil, err
		}
		prepared = imaging.RGB(resized)
	}

	tensor, err := imaging.FromImage(prepared, c.spec.channels(), c.spec.Layout)
	if err != nil {
		return nil, err
	}

	return c.reconcileChannels(tensor)
}

func (c *Classifier) reconcileChannels(t *imaging.Tensor) (*imaging.Tensor, error) {
	shape := c.predictor.InputShape()
	if len(shape) != 4 {
		return t, nil
	}

	want := shape[3]
	if t.Layout == imaging.LayoutNCHW {
		want = shape[1]
	}

	have := t.Channels()
	if want <= 0 || int(want) == have {
		return t, nil
	}
	if have != 1 {
		return nil, fmt.Errorf("%w: %s expects %d channels, image has %d", ErrChannelMismatch, c.spec.Disease, want, have)
	}

	return t.RepeatChannels(int(want))
}

// Interpret maps raw model output to a Result according to the activation.
func (c *Classifier) Interpret(raw [][]float32) (*Result, error) {
	if len(raw) == 0 || len(raw[0]) == 0 {
		return nil, fmt.Errorf("%s: %w", c.spec.Disease, inference.ErrEmptyOutput)
	}
	if err := checkFinite(raw); err != nil {
		return nil, fmt.Errorf("%s: %w", c.spec.Disease, err)
	}

	var (
		index      int
		confidence float64
	)

	switch c.spec.Activation {
	case Softmax:
		best := raw[0][0]
		for i, v := range raw[0] {
			if v > best {
				best, index = v, i
			}
		}
		confidence = float64(maxValue(raw))
	default:
		p := float64(raw[0][0])
		if p >= float64(c.spec.Threshold) {
			index = 1
			confidence = p
		} else {
			confidence = 1 - p
		}
		confidence = clamp01(confidence)
	}

	label := c.spec.Label(index)
	return &Result{
		Prediction:       label,
		IsDiseasePresent: c.spec.isPresent(index, label),
		Confidence:       confidence,
		Raw:              raw,
	}, nil
}

func (c *Classifier) Close() error {
	return c.predictor.Close()
}

// checkFinite rejects NaN and Inf, which cannot be encoded as JSON.
func checkFinite(raw [][]float32) error {
	for i, row := range raw {
		for j, v := range row {
			f := float64(v)
			if math.IsNaN(f) || math.IsInf(f, 0) {
				return fmt.Errorf("%w: raw[%d][%d] = %v", inference.ErrInvalidOutput, i, j, v)
			}
		}
	}
	return nil
}

func maxValue(raw [][]float32) float32 {
	best := raw[0][0]
	for _, row := range raw {
		for _, v := range row {
			if v > best {
				best = v
			}
		}
	}
	return best
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
