package inference

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cozy-creator/medpredict/internal/imaging"
)

func TestFuncPredictor(t *testing.T) {
	p := &FuncPredictor{
		Shape: []int64{-1, 224, 224, 3},
		Fn: func(_ context.Context, input *imaging.Tensor) ([][]float32, error) {
			return [][]float32{{float32(len(input.Data))}}, nil
		},
	}

	out, err := p.Predict(context.Background(), &imaging.Tensor{Data: make([]float32, 6)})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{6}}, out)
	assert.Equal(t, []int64{-1, 224, 224, 3}, p.InputShape())
	assert.NoError(t, p.Close())
}

func TestFuncPredictorHonoursCancellation(t *testing.T) {
	called := false
	p := &FuncPredictor{Fn: func(context.Context, *imaging.Tensor) ([][]float32, error) {
		called = true
		return nil, nil
	}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Predict(ctx, &imaging.Tensor{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestOpenUnknownRuntime(t *testing.T) {
	_, err := Open("tensorflow", "model.onnx", Options{})
	assert.ErrorIs(t, err, ErrUnknownRuntime)
}

func TestOpenMissingModel(t *testing.T) {
	_, err := Open(RuntimeGo, filepath.Join(t.TempDir(), "missing.onnx"), Options{})
	assert.Error(t, err)
}

func TestRows(t *testing.T) {
	out, err := rows([]float32{0.1, 0.2, 0.3, 0.4}, []int64{2, 2})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{0.1, 0.2}, {0.3, 0.4}}, out)

	out, err = rows([]float32{0.7}, []int64{1, 1})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{0.7}}, out)

	out, err = rows([]float32{0.7, 0.3}, []int64{2})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{0.7, 0.3}}, out)

	_, err = rows(nil, []int64{1, 1})
	assert.ErrorIs(t, err, ErrEmptyOutput)

	_, err = rows([]float32{1, 2, 3}, []int64{2, 1})
	assert.Error(t, err)
}
