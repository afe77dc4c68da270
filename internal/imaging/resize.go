package imaging

import (
	"fmt"
	"image"
	"image/color"
	"strings"

	"github.com/anthonynsimon/bild/transform"
)

type Filter string

const (
	FilterNearest    Filter = "nearest"
	FilterLinear     Filter = "linear"
	FilterCatmullRom Filter = "catmullrom"
	FilterLanczos    Filter = "lanczos"
)

// DefaultFilter is the closest bild filter to PIL's default bicubic resampling.
const DefaultFilter = FilterCatmullRom

func ParseFilter(name string) (Filter, error) {
	switch Filter(strings.ToLower(strings.TrimSpace(name))) {
	case "", FilterCatmullRom, "bicubic":
		return FilterCatmullRom, nil
	case FilterNearest:
		return FilterNearest, nil
	case FilterLinear, "bilinear":
		return FilterLinear, nil
	case FilterLanczos:
		return FilterLanczos, nil
	default:
		return "", fmt.Errorf("unknown resize filter: %s", name)
	}
}

func (f Filter) resampler() transform.ResampleFilter {
	switch f {
	case FilterNearest:
		return transform.NearestNeighbor
	case FilterLinear:
		return transform.Linear
	case FilterLanczos:
		return transform.Lanczos
	default:
		return transform.CatmullRom
	}
}

// Resize scales img to exactly width x height, ignoring aspect ratio.
func Resize(img image.Image, width, height int, filter Filter) (image.Image, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid target size %dx%d", width, height)
	}

	size := img.Bounds().Size()
	if size.X == width && size.Y == height {
		return img, nil
	}

	return transform.Resize(img, width, height, filter.resampler()), nil
}

// RGB drops the alpha channel without compositing, the way an RGBA to RGB
// conversion keeps the straight colour values.
func RGB(img image.Image) *image.RGBA {
	bounds := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			dst.SetRGBA(x-bounds.Min.X, y-bounds.Min.Y, color.RGBA{R: c.R, G: c.G, B: c.B, A: 0xff})
		}
	}

	return dst
}

// Luma converts to 8-bit grayscale with the ITU-R 601-2 weights
// (0.299, 0.587, 0.114) in 16-bit fixed point with rounding.
func Luma(img image.Image) *image.Gray {
	if gray, ok := img.(*image.Gray); ok && gray.Bounds().Min == (image.Point{}) {
		return gray
	}

	bounds := img.Bounds()
	dst := image.NewGray(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			dst.SetGray(x-bounds.Min.X, y-bounds.Min.Y, color.Gray{Y: luma(c.R, c.G, c.B)})
		}
	}

	return dst
}

func luma(r, g, b uint8) uint8 {
	return uint8((uint32(r)*19595 + uint32(g)*38470 + uint32(b)*7471 + 0x8000) >> 16)
}
