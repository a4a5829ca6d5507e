package blob

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/pool"

	"github.com/petermazzocco/photocard-catalog/internal/errs"
	"github.com/petermazzocco/photocard-catalog/internal/imageid"
	"github.com/petermazzocco/photocard-catalog/internal/logger"
)

const defaultMaxConcurrentUploads = 8

// Pair is one image identifier with both of its encodings.
type Pair struct {
	ID          string
	FullSize    []byte
	Thumbnail   []byte
	ContentType string
}

type Failure struct {
	ID  string
	Key string
	Err error
}

// Report collects the outcome of every pair in one upload.
type Report struct {
	Uploaded []string  `json:"uploaded"`
	Failures []Failure `json:"-"`
}

// Err is nil when every pair uploaded; otherwise it wraps errs.ErrPartialUpload and one
// StageError per failed key.
func (r Report) Err() error {
	if len(r.Failures) == 0 {
		return nil
	}
	stageErrs := make([]error, 0, len(r.Failures))
	for _, f := range r.Failures {
		stageErrs = append(stageErrs, errs.Stage("upload image", f.Key, errs.ErrStoreWrite, f.Err))
	}
	total := len(r.Uploaded) + len(r.FailedIDs())
	return fmt.Errorf("%w: %d of %d images failed: %w",
		errs.ErrPartialUpload, len(r.FailedIDs()), total, errors.Join(stageErrs...))
}

// FailedIDs returns each identifier with at least one failed key, sorted.
func (r Report) FailedIDs() []string {
	seen := make(map[string]bool)
	var out []string
	for _, f := range r.Failures {
		if !seen[f.ID] {
			seen[f.ID] = true
			out = append(out, f.ID)
		}
	}
	sort.Strings(out)
	return out
}

// Coordinator writes each image pair at most once and never over an existing full-size key.
type Coordinator struct {
	store          Store
	maxConcurrency int
}

func NewCoordinator(store Store) *Coordinator {
	return &Coordinator{store: store, maxConcurrency: defaultMaxConcurrentUploads}
}

type pairResult struct {
	id       string
	failures []Failure
}

// Upload runs every pair concurrently and waits for all of them. A failing pair never stops the
// others.
func (c *Coordinator) Upload(ctx context.Context, pairs []Pair) Report {
	p := pool.NewWithResults[pairResult]().WithMaxGoroutines(c.maxConcurrency)
	for _, pair := range pairs {
		pair := pair
		p.Go(func() pairResult {
			return pairResult{id: pair.ID, failures: c.uploadPair(ctx, pair)}
		})
	}
	results := p.Wait()
	sort.Slice(results, func(i, j int) bool { return results[i].id < results[j].id })

	var report Report
	for _, res := range results {
		if len(res.failures) == 0 {
			report.Uploaded = append(report.Uploaded, res.id)
			continue
		}
		report.Failures = append(report.Failures, res.failures...)
	}
	return report
}

func (c *Coordinator) uploadPair(ctx context.Context, pair Pair) []Failure {
	log := logger.For(ctx).WithField("image_id", pair.ID)
	fullKey := imageid.FullSizeKey(pair.ID)
	thumbKey := imageid.ThumbnailKey(pair.ID)

	// Racy by nature: two concurrent uploads under one identifier may both pass this check.
	exists, err := c.store.Exists(ctx, fullKey)
	if err != nil {
		log.WithError(err).Warn("existence check failed")
		return []Failure{{ID: pair.ID, Key: fullKey, Err: err}}
	}
	if exists {
		log.Warn("image already exists, refusing to overwrite")
		return []Failure{{ID: pair.ID, Key: fullKey, Err: fmt.Errorf("%w: %s", errs.ErrAlreadyExists, fullKey)}}
	}

	meta := Meta{ContentType: pair.ContentType, CacheControl: ImmutableCacheControl}
	var fullErr, thumbErr error
	var wg conc.WaitGroup
	wg.Go(func() { fullErr = c.store.PutIfAbsent(ctx, fullKey, pair.FullSize, meta) })
	wg.Go(func() { thumbErr = c.store.PutIfAbsent(ctx, thumbKey, pair.Thumbnail, meta) })
	wg.Wait()

	var failures []Failure
	if fullErr != nil {
		failures = append(failures, Failure{ID: pair.ID, Key: fullKey, Err: fullErr})
	}
	if thumbErr != nil {
		failures = append(failures, Failure{ID: pair.ID, Key: thumbKey, Err: thumbErr})
	}
	if len(failures) > 0 {
		log.WithFields(logrus.Fields{"failed_keys": len(failures)}).Warn("image upload incomplete")
	} else {
		log.Debug("image uploaded")
	}
	return failures
}
