package transcode

import (
	"bytes"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

// GoCodec is the pure Go fallback for hosts without libvips. It encodes JPEG.
type GoCodec struct {
	Quality int
}

func (c GoCodec) ContentType() string { return "image/jpeg" }

func (c GoCodec) Encode(data []byte, maxHeight int) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, err
	}

	if maxHeight > 0 && img.Bounds().Dy() > maxHeight {
		img = imaging.Resize(img, 0, maxHeight, imaging.Lanczos)
	}

	buf := new(bytes.Buffer)
	if err := imaging.Encode(buf, img, imaging.JPEG, imaging.JPEGQuality(c.Quality)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// NewCodec picks the codec for the configured backend.
func NewCodec(backend string, quality int) Codec {
	if backend == "go" {
		return GoCodec{Quality: quality}
	}
	return VipsCodec{Quality: quality}
}
