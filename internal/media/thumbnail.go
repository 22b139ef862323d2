package media

import (
	"bytes"
	"fmt"

	"github.com/disintegration/imaging"
)

const thumbnailWidth = 320

// Thumbnail decodes an image and re-encodes a width-bounded JPEG preview.
// Aspect ratio is preserved; images narrower than the bound pass through
// at their original size.
func Thumbnail(data []byte) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	width := img.Bounds().Dx()
	if width > thumbnailWidth {
		img = imaging.Resize(img, thumbnailWidth, 0, imaging.Lanczos)
	}
	var out bytes.Buffer
	if err := imaging.Encode(&out, img, imaging.JPEG, imaging.JPEGQuality(80)); err != nil {
		return nil, fmt.Errorf("encode thumbnail: %w", err)
	}
	return out.Bytes(), nil
}
