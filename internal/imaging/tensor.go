package imaging

import (
	"fmt"
	"image"
	"image/color"
	"strings"
)

type Layout string

const (
	LayoutNHWC Layout = "nhwc"
	LayoutNCHW Layout = "nchw"
)

func ParseLayout(name string) (Layout, error) {
	switch Layout(strings.ToLower(strings.TrimSpace(name))) {
	case "", LayoutNHWC:
		return LayoutNHWC, nil
	case LayoutNCHW:
		return LayoutNCHW, nil
	default:
		return "", fmt.Errorf("unknown tensor layout: %s", name)
	}
}

// Tensor is a single-image float32 batch, shape [1,H,W,C] or [1,C,H,W].
type Tensor struct {
	Data   []float32
	Shape  []int64
	Layout Layout
}

func (t *Tensor) Channels() int {
	if len(t.Shape) != 4 {
		return 0
	}
	if t.Layout == LayoutNCHW {
		return int(t.Shape[1])
	}
	return int(t.Shape[3])
}

func (t *Tensor) dims() (height, width, channels int) {
	if t.Layout == LayoutNCHW {
		return int(t.Shape[2]), int(t.Shape[3]), int(t.Shape[1])
	}
	return int(t.Shape[1]), int(t.Shape[2]), int(t.Shape[3])
}

// RepeatChannels broadcasts a single-channel tensor to n identical channels.
func (t *Tensor) RepeatChannels(n int) (*Tensor, error) {
	height, width, channels := t.dims()
	if channels == n {
		return t, nil
	}
	if channels != 1 {
		return nil, fmt.Errorf("cannot repeat %d channels into %d", channels, n)
	}

	plane := height * width
	data := make([]float32, plane*n)

	if t.Layout == LayoutNCHW {
		for c := 0; c < n; c++ {
			copy(data[c*plane:(c+1)*plane], t.Data)
		}
		return &Tensor{Data: data, Shape: []int64{1, int64(n), int64(height), int64(width)}, Layout: t.Layout}, nil
	}

	for i, v := range t.Data {
		for c := 0; c < n; c++ {
			data[i*n+c] = v
		}
	}
	return &Tensor{Data: data, Shape: []int64{1, int64(height), int64(width), int64(n)}, Layout: t.Layout}, nil
}

// FromImage normalises every 8-bit sample to [0,1]. channels must be 1
// (luma) or 3 (RGB).
func FromImage(img image.Image, channels int, layout Layout) (*Tensor, error) {
	if channels != 1 && channels != 3 {
		return nil, fmt.Errorf("unsupported channel count: %d", channels)
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	plane := width * height
	data := make([]float32, plane*channels)

	var gray *image.Gray
	if channels == 1 {
		gray = Luma(img)
	}

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			pixel := y*width + x

			if channels == 1 {
				data[pixel] = normalise(gray.GrayAt(x, y).Y)
				continue
			}

			c := color.NRGBAModel.Convert(img.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.NRGBA)
			if layout == LayoutNCHW {
				data[pixel] = normalise(c.R)
				data[plane+pixel] = normalise(c.G)
				data[2*plane+pixel] = normalise(c.B)
			} else {
				data[pixel*3] = normalise(c.R)
				data[pixel*3+1] = normalise(c.G)
				data[pixel*3+2] = normalise(c.B)
			}
		}
	}

	shape := []int64{1, int64(height), int64(width), int64(channels)}
	if layout == LayoutNCHW {
		shape = []int64{1, int64(channels), int64(height), int64(width)}
	}

	return &Tensor{Data: data, Shape: shape, Layout: layout}, nil
}

func normalise(v uint8) float32 {
	return float32(v) / 255.0
}
