package diagnosis

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/cozy-creator/medpredict/internal/imaging"
	"github.com/cozy-creator/medpredict/internal/inference"

	"go.uber.org/zap"
)

// ModelInfo is the public view of one catalog entry.
type ModelInfo struct {
	Disease    Disease    `json:"disease"`
	File       string     `json:"file"`
	Classes    []string   `json:"classes"`
	ColorMode  ColorMode  `json:"color_mode"`
	Activation Activation `json:"activation"`
	ImageSize  int        `json:"image_size"`
	InputShape []int64    `json:"input_shape,omitempty"`
	Loaded     bool       `json:"loaded"`
	Error      string     `json:"error,omitempty"`
}

// Registry holds the catalog and the classifiers that loaded successfully.
type Registry struct {
	mu          sync.RWMutex
	catalog     *Catalog
	classifiers map[Disease]*Classifier
	failures    map[Disease]error
}

func NewRegistry(catalog *Catalog) *Registry {
	return &Registry{
		catalog:     catalog,
		classifiers: make(map[Disease]*Classifier),
		failures:    make(map[Disease]error),
	}
}

func (r *Registry) Catalog() *Catalog {
	return r.catalog
}

// Register attaches a predictor to a catalog entry, replacing any previous one.
func (r *Registry) Register(disease Disease, predictor inference.Predictor, filter imaging.Filter) error {
	spec, ok := r.catalog.Get(disease)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownModel, disease)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if previous, ok := r.classifiers[disease]; ok {
		previous.Close()
	}
	r.classifiers[disease] = NewClassifier(spec, predictor, filter)
	delete(r.failures, disease)
	return nil
}

// MarkUnavailable records why a model could not be loaded.
func (r *Registry) MarkUnavailable(disease Disease, cause error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures[disease] = cause
}

func (r *Registry) Get(disease Disease) (*Classifier, error) {
	if _, ok := r.catalog.Get(disease); !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownModel, disease)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if c, ok := r.classifiers[disease]; ok {
		return c, nil
	}
	if cause, ok := r.failures[disease]; ok {
		return nil, fmt.Errorf("%w: %s: %v", ErrModelNotLoaded, disease, cause)
	}
	return nil, fmt.Errorf("%w: %s", ErrModelNotLoaded, disease)
}

func (r *Registry) Classify(ctx context.Context, disease Disease, data []byte) (*Result, error) {
	c, err := r.Get(disease)
	if err != nil {
		return nil, err
	}
	return c.Classify(ctx, data)
}

func (r *Registry) List() []ModelInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	specs := r.catalog.List()
	infos := make([]ModelInfo, 0, len(specs))
	for _, spec := range specs {
		info := ModelInfo{
			Disease:    spec.Disease,
			File:       spec.File,
			Classes:    spec.Classes,
			ColorMode:  spec.ColorMode,
			Activation: spec.Activation,
			ImageSize:  spec.ImageSize,
		}
		if c, ok := r.classifiers[spec.Disease]; ok {
			info.Loaded = true
			info.InputShape = c.InputShape()
		} else if cause, ok := r.failures[spec.Disease]; ok {
			info.Error = cause.Error()
		}
		infos = append(infos, info)
	}
	return infos
}

// Loaded counts the classifiers ready to serve.
func (r *Registry) Loaded() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.classifiers)
}

func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for disease, c := range r.classifiers {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", disease, err))
		}
		delete(r.classifiers, disease)
	}

	if err := inference.Shutdown(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

type OpenFunc func(runtime, path string, opts inference.Options) (inference.Predictor, error)

type LoadOptions struct {
	Runtime   string
	ModelsDir string
	Filter    imaging.Filter
	Inference inference.Options
	Logger    *zap.Logger
	// Open defaults to inference.Open.
	Open OpenFunc
}

// ModelPath resolves a spec's model file against modelsDir.
func ModelPath(modelsDir string, spec Spec) string {
	if filepath.IsAbs(spec.File) {
		return spec.File
	}
	return filepath.Join(modelsDir, spec.File)
}

// LoadRegistry opens every catalog model. Models that fail to open are
// logged and left unavailable; the remaining ones still serve.
func LoadRegistry(catalog *Catalog, opts LoadOptions) (*Registry, error) {
	switch strings.ToLower(opts.Runtime) {
	case "", inference.RuntimeGo, inference.RuntimeORT:
	default:
		return nil, fmt.Errorf("%w: %s", inference.ErrUnknownRuntime, opts.Runtime)
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	open := opts.Open
	if open == nil {
		open = inference.Open
	}

	registry := NewRegistry(catalog)
	for _, spec := range catalog.List() {
		path := ModelPath(opts.ModelsDir, spec)

		predictor, err := open(opts.Runtime, path, opts.Inference)
		if err != nil {
			logger.Warn("model unavailable",
				zap.String("disease", string(spec.Disease)),
				zap.String("path", path),
				zap.Error(err),
			)
			registry.MarkUnavailable(spec.Disease, err)
			continue
		}

		if err := registry.Register(spec.Disease, predictor, opts.Filter); err != nil {
			predictor.Close()
			return nil, err
		}

		logger.Info("model loaded",
			zap.String("disease", string(spec.Disease)),
			zap.String("path", path),
			zap.Int64s("input_shape", predictor.InputShape()),
		)
	}

	if registry.Loaded() == 0 {
		logger.Warn("no models loaded", zap.String("models_dir", opts.ModelsDir))
	}

	return registry, nil
}
