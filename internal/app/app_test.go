package app

import (
	"testing"

	"github.com/cozy-creator/medpredict/internal/config"
	"github.com/cozy-creator/medpredict/internal/diagnosis"
	"github.com/cozy-creator/medpredict/internal/inference"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Environment:    "test",
		ModelsDir:      t.TempDir(),
		Runtime:        inference.RuntimeGo,
		DisableAuth:    true,
		MaxUploadSize:  1 << 20,
		FilesystemType: config.FilesystemLocal,
	}
}

func TestNewAppRejectsBadModelConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		target error
	}{
		{
			name:   "unknown enabled model",
			mutate: func(c *config.Config) { c.EnabledModels = []string{"brain_tumour"} },
			target: diagnosis.ErrUnknownModel,
		},
		{
			name: "unknown override key",
			mutate: func(c *config.Config) {
				c.Models = map[string]config.ModelConfig{"covid": {Threshold: 0.4}}
			},
			target: diagnosis.ErrUnknownModel,
		},
		{
			name:   "unknown runtime",
			mutate: func(c *config.Config) { c.Runtime = "tensorflow" },
			target: inference.ErrUnknownRuntime,
		},
		{
			name:   "unknown resize filter",
			mutate: func(c *config.Config) { c.ResizeFilter = "sharpest" },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			tt.mutate(cfg)

			a, err := NewApp(cfg, WithModels())
			require.Error(t, err)
			assert.Nil(t, a)
			if tt.target != nil {
				assert.ErrorIs(t, err, tt.target)
			}
		})
	}
}

func TestNewAppServesWithMissingModelFiles(t *testing.T) {
	cfg := testConfig(t)
	cfg.EnabledModels = []string{"pneumonia", "anemia"}

	a, err := NewApp(cfg, WithModels())
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })

	assert.Equal(t, 2, a.Registry().Catalog().Len())
	assert.Equal(t, 0, a.Registry().Loaded())

	_, err = a.Registry().Get(diagnosis.Pneumonia)
	assert.ErrorIs(t, err, diagnosis.ErrModelNotLoaded)
}

func TestNewAppContinuesPastOptionalFailures(t *testing.T) {
	cfg := testConfig(t)
	cfg.DB = &config.DBConfig{Driver: "oracle", DSN: "oracle://nowhere"}

	a, err := NewApp(cfg, WithDBInitialization())
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })

	assert.Nil(t, a.DB())
	assert.Nil(t, a.PredictionRepository)
	assert.NotNil(t, a.Registry())
}
