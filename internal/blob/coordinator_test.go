package blob

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petermazzocco/photocard-catalog/internal/errs"
)

type fakeStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	meta    map[string]Meta
	puts    []string
	failPut map[string]error
	failHas map[string]error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		objects: map[string][]byte{},
		meta:    map[string]Meta{},
		failPut: map[string]error{},
		failHas: map[string]error{},
	}
}

func (s *fakeStore) Exists(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failHas[key]; err != nil {
		return false, err
	}
	_, ok := s.objects[key]
	return ok, nil
}

func (s *fakeStore) PutIfAbsent(_ context.Context, key string, data []byte, meta Meta) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.puts = append(s.puts, key)
	if err := s.failPut[key]; err != nil {
		return err
	}
	if _, ok := s.objects[key]; ok {
		return fmt.Errorf("%w: %s", errs.ErrAlreadyExists, key)
	}
	s.objects[key] = data
	s.meta[key] = meta
	return nil
}

func pair(id string) Pair {
	return Pair{ID: id, FullSize: []byte(id + "-full"), Thumbnail: []byte(id + "-thumb"), ContentType: "image/webp"}
}

func TestCoordinatorUpload(t *testing.T) {
	ctx := context.Background()

	t.Run("writes both keys for each identifier", func(t *testing.T) {
		store := newFakeStore()
		report := NewCoordinator(store).Upload(ctx, []Pair{pair("a"), pair("b")})

		require.NoError(t, report.Err())
		assert.Equal(t, []string{"a", "b"}, report.Uploaded)
		assert.ElementsMatch(t, []string{"a_fullSize", "a_thumbnail", "b_fullSize", "b_thumbnail"}, store.puts)
		assert.Equal(t, []byte("a-thumb"), store.objects["a_thumbnail"])
		assert.Equal(t, "image/webp", store.meta["a_fullSize"].ContentType)
		assert.Equal(t, ImmutableCacheControl, store.meta["a_fullSize"].CacheControl)
	})

	t.Run("existing full-size key fails without any put", func(t *testing.T) {
		store := newFakeStore()
		store.objects["X_fullSize"] = []byte("old")

		report := NewCoordinator(store).Upload(ctx, []Pair{pair("X")})

		err := report.Err()
		assert.ErrorIs(t, err, errs.ErrPartialUpload)
		assert.ErrorIs(t, err, errs.ErrAlreadyExists)
		assert.Empty(t, store.puts)
		assert.Equal(t, []byte("old"), store.objects["X_fullSize"])
		assert.Equal(t, []string{"X"}, report.FailedIDs())
	})

	t.Run("failed thumbnail does not roll back the full size", func(t *testing.T) {
		store := newFakeStore()
		store.failPut["a_thumbnail"] = fmt.Errorf("%w: timeout", errs.ErrStoreWrite)

		report := NewCoordinator(store).Upload(ctx, []Pair{pair("a")})

		require.Len(t, report.Failures, 1)
		assert.Equal(t, "a_thumbnail", report.Failures[0].Key)
		assert.Contains(t, store.objects, "a_fullSize")
		assert.Empty(t, report.Uploaded)
		assert.ErrorIs(t, report.Err(), errs.ErrStoreWrite)
	})

	t.Run("one failing identifier does not stop the others", func(t *testing.T) {
		store := newFakeStore()
		store.failHas["b_fullSize"] = errors.New("connection reset")

		report := NewCoordinator(store).Upload(ctx, []Pair{pair("a"), pair("b"), pair("c")})

		assert.Equal(t, []string{"a", "c"}, report.Uploaded)
		assert.Equal(t, []string{"b"}, report.FailedIDs())
		assert.Equal(t, []string{"b_fullSize"}, errs.Refs(report.Err()))
		assert.NotContains(t, store.puts, "b_thumbnail")
	})

	t.Run("no pairs is a clean report", func(t *testing.T) {
		report := NewCoordinator(newFakeStore()).Upload(ctx, nil)
		assert.NoError(t, report.Err())
		assert.Empty(t, report.Uploaded)
	})
}
