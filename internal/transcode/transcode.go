package transcode

import (
	"context"
	"fmt"

	"github.com/petermazzocco/photocard-catalog/internal/errs"
)

// Codec decodes an image, bounds its height and re-encodes it in one fixed format.
type Codec interface {
	// Encode scales data to at most maxHeight pixels tall, keeping the aspect ratio. A maxHeight of
	// zero leaves the dimensions alone. Images already within the bound are never upscaled.
	Encode(data []byte, maxHeight int) ([]byte, error)
	ContentType() string
}

type Result struct {
	FullSize    []byte
	Thumbnail   []byte
	ContentType string
}

type Options struct {
	MaxInputBytes   int
	ThumbnailHeight int
}

type Transcoder struct {
	codec Codec
	opts  Options
}

func New(codec Codec, opts Options) *Transcoder {
	return &Transcoder{codec: codec, opts: opts}
}

func (t *Transcoder) ContentType() string {
	return t.codec.ContentType()
}

// Transcode produces the full-size and thumbnail encodings of data. Inputs over the size limit are
// rejected before any decode is attempted.
func (t *Transcoder) Transcode(ctx context.Context, data []byte) (Result, error) {
	if len(data) > t.opts.MaxInputBytes {
		return Result{}, fmt.Errorf("%w: %d bytes exceeds %d", errs.ErrSizeLimit, len(data), t.opts.MaxInputBytes)
	}
	if err := ctx.Err(); err != nil {
		return Result{}, fmt.Errorf("transcode abandoned: %w", err)
	}

	full, err := t.codec.Encode(data, 0)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", errs.ErrDecode, err)
	}
	thumb, err := t.codec.Encode(data, t.opts.ThumbnailHeight)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", errs.ErrDecode, err)
	}

	return Result{FullSize: full, Thumbnail: thumb, ContentType: t.codec.ContentType()}, nil
}
