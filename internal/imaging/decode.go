package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var ErrInvalidImage = errors.New("invalid image")

// Decode sniffs the payload and decodes it with whichever registered image
// decoder matches. Anything that is not an image is rejected with
// ErrInvalidImage before the decoders are tried.
func Decode(data []byte) (image.Image, string, error) {
	if len(data) == 0 {
		return nil, "", fmt.Errorf("%w: empty payload", ErrInvalidImage)
	}

	mtype := mimetype.Detect(data).String()
	if !strings.HasPrefix(mtype, "image/") {
		return nil, "", fmt.Errorf("%w: unsupported content type %s", ErrInvalidImage, mtype)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	return img, format, nil
}
