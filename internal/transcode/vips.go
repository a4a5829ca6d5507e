package transcode

import (
	"github.com/h2non/bimg"
)

// VipsCodec encodes WEBP through libvips.
type VipsCodec struct {
	Quality int
}

func (c VipsCodec) ContentType() string { return "image/webp" }

func (c VipsCodec) Encode(data []byte, maxHeight int) ([]byte, error) {
	img := bimg.NewImage(data)
	size, err := img.Size()
	if err != nil {
		return nil, err
	}

	opts := bimg.Options{
		Type:          bimg.WEBP,
		Quality:       c.Quality,
		StripMetadata: true,
	}
	// bimg derives the width from the height when only one is given.
	if maxHeight > 0 && size.Height > maxHeight {
		opts.Height = maxHeight
	}
	return img.Process(opts)
}
