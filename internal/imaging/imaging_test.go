package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solidImage(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestDecode(t *testing.T) {
	data := encodePNG(t, solidImage(4, 3, color.RGBA{R: 10, G: 20, B: 30, A: 255}))

	img, format, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Equal(t, image.Pt(4, 3), img.Bounds().Size())
}

func TestDecodeRejectsNonImages(t *testing.T) {
	cases := map[string][]byte{
		"empty": nil,
		"text":  []byte("definitely not an image"),
		"pdf":   []byte("%PDF-1.4\n%âãÏÓ\n"),
	}

	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			_, _, err := Decode(data)
			assert.ErrorIs(t, err, ErrInvalidImage)
		})
	}
}

func TestDecodeTruncatedImage(t *testing.T) {
	data := encodePNG(t, solidImage(8, 8, color.White))

	_, _, err := Decode(data[:len(data)/2])
	assert.ErrorIs(t, err, ErrInvalidImage)
}

func TestLuma(t *testing.T) {
	img := solidImage(2, 2, color.RGBA{R: 255, G: 0, B: 0, A: 255})
	gray := Luma(img)
	// 255 * 0.299 = 76.245
	assert.Equal(t, uint8(76), gray.GrayAt(0, 0).Y)

	white := Luma(solidImage(1, 1, color.White))
	assert.Equal(t, uint8(255), white.GrayAt(0, 0).Y)
}

func TestRGBDropsAlpha(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 1, 1))
	img.SetNRGBA(0, 0, color.NRGBA{R: 200, G: 100, B: 50, A: 0})

	rgb := RGB(img)
	assert.Equal(t, color.RGBA{R: 200, G: 100, B: 50, A: 255}, rgb.RGBAAt(0, 0))
}

func TestResize(t *testing.T) {
	img := solidImage(10, 20, color.White)

	resized, err := Resize(img, 4, 4, DefaultFilter)
	require.NoError(t, err)
	assert.Equal(t, image.Pt(4, 4), resized.Bounds().Size())

	_, err = Resize(img, 0, 4, DefaultFilter)
	assert.Error(t, err)
}

func TestParseFilter(t *testing.T) {
	f, err := ParseFilter("bicubic")
	require.NoError(t, err)
	assert.Equal(t, FilterCatmullRom, f)

	f, err = ParseFilter("Lanczos")
	require.NoError(t, err)
	assert.Equal(t, FilterLanczos, f)

	_, err = ParseFilter("sinc")
	assert.Error(t, err)
}

func TestFromImageNHWC(t *testing.T) {
	img := solidImage(2, 1, color.RGBA{R: 255, G: 51, B: 0, A: 255})

	tensor, err := FromImage(img, 3, LayoutNHWC)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 1, 2, 3}, tensor.Shape)
	assert.Equal(t, 3, tensor.Channels())
	assert.InDeltaSlice(t, []float32{1, 0.2, 0, 1, 0.2, 0}, tensor.Data, 1e-6)
}

func TestFromImageNCHW(t *testing.T) {
	img := solidImage(2, 1, color.RGBA{R: 255, G: 51, B: 0, A: 255})

	tensor, err := FromImage(img, 3, LayoutNCHW)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 3, 1, 2}, tensor.Shape)
	assert.InDeltaSlice(t, []float32{1, 1, 0.2, 0.2, 0, 0}, tensor.Data, 1e-6)
}

func TestFromImageGrayscale(t *testing.T) {
	img := solidImage(3, 3, color.RGBA{R: 255, G: 255, B: 255, A: 255})

	tensor, err := FromImage(img, 1, LayoutNHWC)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 3, 3, 1}, tensor.Shape)
	for _, v := range tensor.Data {
		assert.Equal(t, float32(1), v)
	}

	_, err = FromImage(img, 2, LayoutNHWC)
	assert.Error(t, err)
}

func TestRepeatChannels(t *testing.T) {
	nhwc := &Tensor{Data: []float32{0.1, 0.2}, Shape: []int64{1, 1, 2, 1}, Layout: LayoutNHWC}

	repeated, err := nhwc.RepeatChannels(3)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 1, 2, 3}, repeated.Shape)
	assert.Equal(t, []float32{0.1, 0.1, 0.1, 0.2, 0.2, 0.2}, repeated.Data)

	nchw := &Tensor{Data: []float32{0.1, 0.2}, Shape: []int64{1, 1, 1, 2}, Layout: LayoutNCHW}
	repeated, err = nchw.RepeatChannels(3)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 3, 1, 2}, repeated.Shape)
	assert.Equal(t, []float32{0.1, 0.2, 0.1, 0.2, 0.1, 0.2}, repeated.Data)

	same, err := repeated.RepeatChannels(3)
	require.NoError(t, err)
	assert.Same(t, repeated, same)

	_, err = repeated.RepeatChannels(1)
	assert.Error(t, err)
}
