package blob

import (
	"context"
)

const ImmutableCacheControl = "public, max-age=31536000, immutable"

type Meta struct {
	ContentType  string
	CacheControl string
}

// Store is an object store keyed by opaque strings.
type Store interface {
	Exists(ctx context.Context, key string) (bool, error)
	// PutIfAbsent writes data under key. Backends with a conditional write primitive return
	// errs.ErrAlreadyExists when key is taken; others write unconditionally.
	PutIfAbsent(ctx context.Context, key string, data []byte, meta Meta) error
}
