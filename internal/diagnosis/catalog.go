package diagnosis

import (
	"errors"
	"fmt"
	"strings"

	"github.com/cozy-creator/medpredict/internal/config"
	"github.com/cozy-creator/medpredict/internal/imaging"
)

type Disease string

const (
	BrainTumor   Disease = "brain_tumor"
	BreastCancer Disease = "breast_cancer"
	Pneumonia    Disease = "pneumonia"
	BoneFracture Disease = "bone_fracture"
	Anemia       Disease = "anemia"
	SkinCancer   Disease = "skin_cancer"
)

type ColorMode string

const (
	ColorRGB ColorMode = "rgb"
	// ColorGrayscale converts to luma before resizing.
	ColorGrayscale ColorMode = "grayscale"
	// ColorRGBToGrayscale resizes in RGB and converts to luma afterwards.
	ColorRGBToGrayscale ColorMode = "rgb_to_grayscale"
)

type Activation string

const (
	Sigmoid Activation = "sigmoid"
	Softmax Activation = "softmax"
)

const (
	DefaultImageSize = 224
	DefaultThreshold = 0.5
	UnknownLabel     = "Unknown"
)

var ErrUnknownModel = errors.New("unknown model")

// Spec describes how one classifier turns an image into a Result.
type Spec struct {
	Disease    Disease
	File       string
	URL        string
	Checksum   string
	Classes    []string
	ColorMode  ColorMode
	Activation Activation
	ImageSize  int
	Layout     imaging.Layout
	Threshold  float32

	// PositiveIndex is the class meaning "disease present" for sigmoid models.
	PositiveIndex int
	// NegativeLabel is the healthy class for softmax models; every other
	// label counts as present.
	NegativeLabel string
}

// Label returns the class name at index, or UnknownLabel.
func (s Spec) Label(index int) string {
	if index < 0 || index >= len(s.Classes) {
		return UnknownLabel
	}
	return s.Classes[index]
}

func (s Spec) isPresent(index int, label string) bool {
	if s.Activation == Softmax {
		return label != s.NegativeLabel
	}
	return index == s.PositiveIndex
}

func (s Spec) channels() int {
	if s.ColorMode == ColorRGB {
		return 3
	}
	return 1
}

func (s Spec) validate() error {
	if s.Disease == "" {
		return errors.New("disease key is required")
	}
	if s.File == "" {
		return fmt.Errorf("%s: model file is required", s.Disease)
	}
	if len(s.Classes) == 0 {
		return fmt.Errorf("%s: at least one class is required", s.Disease)
	}
	switch s.ColorMode {
	case ColorRGB, ColorGrayscale, ColorRGBToGrayscale:
	default:
		return fmt.Errorf("%s: invalid colour mode %q", s.Disease, s.ColorMode)
	}
	switch s.Activation {
	case Sigmoid, Softmax:
	default:
		return fmt.Errorf("%s: invalid activation %q", s.Disease, s.Activation)
	}
	if s.ImageSize <= 0 {
		return fmt.Errorf("%s: image size must be positive", s.Disease)
	}
	if s.Threshold <= 0 || s.Threshold >= 1 {
		return fmt.Errorf("%s: threshold must be in (0,1), got %v", s.Disease, s.Threshold)
	}
	return nil
}

func binary(disease Disease, file string, mode ColorMode, negative, positive string) Spec {
	return Spec{
		Disease:       disease,
		File:          file,
		Classes:       []string{negative, positive},
		ColorMode:     mode,
		Activation:    Sigmoid,
		ImageSize:     DefaultImageSize,
		Layout:        imaging.LayoutNHWC,
		Threshold:     DefaultThreshold,
		PositiveIndex: 1,
	}
}

// DefaultSpecs lists the built-in classifiers in route order.
func DefaultSpecs() []Spec {
	return []Spec{
		{
			Disease:       BrainTumor,
			File:          "Brain_Tumor.onnx",
			Classes:       []string{"Glioma", "Meningioma", "Pituitary", "No Tumor"},
			ColorMode:     ColorRGBToGrayscale,
			Activation:    Softmax,
			ImageSize:     DefaultImageSize,
			Layout:        imaging.LayoutNHWC,
			Threshold:     DefaultThreshold,
			NegativeLabel: "No Tumor",
		},
		binary(BreastCancer, "Breast_Cancer.onnx", ColorRGB, "Benign", "Malignant"),
		binary(Pneumonia, "pneumonia_model_final.onnx", ColorGrayscale, "Normal", "Pneumonia"),
		binary(BoneFracture, "Bone_Fracture.onnx", ColorGrayscale, "Normal", "Fracture"),
		binary(Anemia, "best_cnn_model.onnx", ColorRGB, "Normal", "Anemia"),
		binary(SkinCancer, "skin_cancer_vgg16.onnx", ColorRGB, "Benign", "Malignant"),
	}
}

// Catalog is an ordered, read-only set of classifier specs.
type Catalog struct {
	specs []Spec
	index map[Disease]int
}

func NewCatalog(specs ...Spec) (*Catalog, error) {
	c := &Catalog{index: make(map[Disease]int, len(specs))}
	for _, spec := range specs {
		if err := spec.validate(); err != nil {
			return nil, err
		}
		if _, ok := c.index[spec.Disease]; ok {
			return nil, fmt.Errorf("duplicate model %s", spec.Disease)
		}
		c.index[spec.Disease] = len(c.specs)
		c.specs = append(c.specs, spec)
	}
	return c, nil
}

func DefaultCatalog() *Catalog {
	c, err := NewCatalog(DefaultSpecs()...)
	if err != nil {
		panic(err)
	}
	return c
}

// CatalogFromConfig keeps the enabled models and applies per-model overrides.
func CatalogFromConfig(cfg *config.Config) (*Catalog, error) {
	defaults := DefaultCatalog()

	enabled := cfg.EnabledModels
	if len(enabled) == 0 {
		enabled = config.DefaultEnabledModels
	}

	specs := make([]Spec, 0, len(enabled))
	for _, name := range enabled {
		spec, ok := defaults.Get(Disease(strings.TrimSpace(name)))
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownModel, name)
		}

		if override, ok := cfg.Models[string(spec.Disease)]; ok {
			var err error
			if spec, err = applyOverride(spec, override); err != nil {
				return nil, err
			}
		}

		specs = append(specs, spec)
	}

	for name := range cfg.Models {
		if _, ok := defaults.Get(Disease(name)); !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownModel, name)
		}
	}

	return NewCatalog(specs...)
}

func applyOverride(spec Spec, override config.ModelConfig) (Spec, error) {
	if override.File != "" {
		spec.File = override.File
	}
	if override.URL != "" {
		spec.URL = override.URL
	}
	if override.Checksum != "" {
		spec.Checksum = strings.ToLower(override.Checksum)
	}
	if override.Threshold != 0 {
		spec.Threshold = override.Threshold
	}
	if override.ImageSize != 0 {
		spec.ImageSize = override.ImageSize
	}
	if override.Layout != "" {
		layout, err := imaging.ParseLayout(override.Layout)
		if err != nil {
			return spec, fmt.Errorf("%s: %w", spec.Disease, err)
		}
		spec.Layout = layout
	}
	return spec, nil
}

func (c *Catalog) Get(disease Disease) (Spec, bool) {
	i, ok := c.index[disease]
	if !ok {
		return Spec{}, false
	}
	return c.specs[i], true
}

// List returns the specs in declaration order.
func (c *Catalog) List() []Spec {
	out := make([]Spec, len(c.specs))
	copy(out, c.specs)
	return out
}

func (c *Catalog) Len() int {
	return len(c.specs)
}
