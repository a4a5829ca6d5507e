package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petermazzocco/photocard-catalog/internal/auth"
	"github.com/petermazzocco/photocard-catalog/internal/errs"
	"github.com/petermazzocco/photocard-catalog/models"
)

var fixedNow = time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC)

func modContext() context.Context {
	return auth.WithSession(context.Background(), auth.Session{UserID: 42, Role: models.RoleMod})
}

func newTestOrchestrator(repo Repository) *Orchestrator {
	o := NewOrchestrator(repo)
	o.now = func() time.Time { return fixedNow }
	return o
}

func card(sizeID uint) models.Photocard {
	return models.Photocard{SizeID: sizeID, Temporary: true}
}

func TestCreateCollection(t *testing.T) {
	t.Run("unauthorized callers write nothing", func(t *testing.T) {
		for name, ctx := range map[string]context.Context{
			"no session": context.Background(),
			"plain user": auth.WithSession(context.Background(), auth.Session{UserID: 1, Role: models.RoleUser}),
		} {
			t.Run(name, func(t *testing.T) {
				repo := newFakeRepo()
				_, err := newTestOrchestrator(repo).CreateCollection(ctx, NewCollection{
					Collection:        models.Collection{Name: "Spring 2024"},
					CollectionTypeIDs: []uint{3},
				})
				assert.ErrorIs(t, err, errs.ErrUnauthorized)
				assert.Empty(t, repo.calls)
			})
		}
	})

	t.Run("card/type count mismatch fails before any insert", func(t *testing.T) {
		repo := newFakeRepo()
		_, err := newTestOrchestrator(repo).CreateCollection(modContext(), NewCollection{
			Collection:  models.Collection{Name: "Spring 2024"},
			Photocards:  []models.Photocard{card(1), card(1)},
			CardTypeIDs: [][]uint{{1}},
		})
		assert.ErrorIs(t, err, errs.ErrValidation)
		assert.Contains(t, err.Error(), "card/type count mismatch")
		assert.Empty(t, repo.calls)
	})

	t.Run("card type links round trip", func(t *testing.T) {
		repo := newFakeRepo()
		created, err := newTestOrchestrator(repo).CreateCollection(modContext(), NewCollection{
			Collection:        models.Collection{Name: "Spring 2024"},
			CollectionTypeIDs: []uint{3},
			Photocards:        []models.Photocard{card(1)},
			CardTypeIDs:       [][]uint{{2, 5}},
		})
		require.NoError(t, err)
		require.Len(t, created.PhotocardIDs, 1)

		cardID := created.PhotocardIDs[0]
		assert.ElementsMatch(t, []models.CardToCardType{
			{CardID: cardID, CardTypeID: 2},
			{CardID: cardID, CardTypeID: 5},
		}, repo.cardLinks)
	})

	t.Run("stamps collection, contributor and one shared timestamp", func(t *testing.T) {
		repo := newFakeRepo()
		created, err := newTestOrchestrator(repo).CreateCollection(modContext(), NewCollection{
			Collection:        models.Collection{Name: "Spring 2024"},
			CollectionTypeIDs: []uint{3, 4},
			Photocards:        []models.Photocard{card(1), card(2), card(3)},
			CardTypeIDs:       [][]uint{{1}, {1}, {2}},
		})
		require.NoError(t, err)

		assert.Equal(t, 1, repo.count("InsertCollection"))
		assert.Equal(t, 2, repo.count("InsertCollectionTypeLink"))
		assert.Equal(t, 3, repo.count("InsertPhotocard"))
		assert.Equal(t, 3, repo.count("InsertCardTypeLink"))
		assert.Equal(t, fixedNow.UnixMilli(), created.UpdatedAt)

		for _, c := range repo.cards {
			assert.Equal(t, created.CollectionID, c.CollectionID)
			assert.Equal(t, uint(42), c.ContributorID)
			assert.Equal(t, fixedNow.UnixMilli(), c.UpdatedAt)
		}
		for _, l := range repo.typeLinks {
			assert.Equal(t, created.CollectionID, l.CollectionID)
		}
	})

	t.Run("photocard ids keep input order", func(t *testing.T) {
		repo := newFakeRepo()
		created, err := newTestOrchestrator(repo).CreateCollection(modContext(), NewCollection{
			Collection:        models.Collection{Name: "Spring 2024"},
			CollectionTypeIDs: []uint{3},
			Photocards:        []models.Photocard{card(10), card(20), card(30)},
			CardTypeIDs:       [][]uint{{7}, {8}, {9}},
		})
		require.NoError(t, err)

		bySize := map[uint]uint{}
		for _, c := range repo.cards {
			bySize[c.SizeID] = c.ID
		}
		assert.Equal(t, []uint{bySize[10], bySize[20], bySize[30]}, created.PhotocardIDs)

		linkType := map[uint]uint{}
		for _, l := range repo.cardLinks {
			linkType[l.CardID] = l.CardTypeID
		}
		assert.Equal(t, uint(7), linkType[bySize[10]])
		assert.Equal(t, uint(8), linkType[bySize[20]])
		assert.Equal(t, uint(9), linkType[bySize[30]])
	})

	t.Run("no tags and no cards writes only the collection", func(t *testing.T) {
		repo := newFakeRepo()
		created, err := newTestOrchestrator(repo).CreateCollection(modContext(), NewCollection{
			Collection: models.Collection{Name: "Empty"},
		})
		require.NoError(t, err)
		assert.NotZero(t, created.CollectionID)
		assert.Equal(t, []string{"InsertCollection"}, repo.calls)
	})

	t.Run("collection insert failure names the stage", func(t *testing.T) {
		repo := newFakeRepo()
		repo.failInsertCollection = errors.New("connection refused")

		_, err := newTestOrchestrator(repo).CreateCollection(modContext(), NewCollection{
			Collection:        models.Collection{Name: "Spring 2024"},
			CollectionTypeIDs: []uint{3},
			Photocards:        []models.Photocard{card(1)},
			CardTypeIDs:       [][]uint{{1}},
		})
		assert.ErrorIs(t, err, errs.ErrStoreWrite)
		assert.Contains(t, err.Error(), "insert collection failed")
		assert.Equal(t, 0, repo.count("InsertPhotocard"))
	})

	t.Run("photocard failure keeps the committed prefix", func(t *testing.T) {
		repo := newFakeRepo()
		repo.failPhotocardSize[2] = errors.New("disk full")

		created, err := newTestOrchestrator(repo).CreateCollection(modContext(), NewCollection{
			Collection:        models.Collection{Name: "Spring 2024"},
			CollectionTypeIDs: []uint{3},
			Photocards:        []models.Photocard{card(1), card(2)},
			CardTypeIDs:       [][]uint{{1}, {1}},
		})
		assert.ErrorIs(t, err, errs.ErrStoreWrite)
		assert.Equal(t, []string{"photocard 1"}, errs.Refs(err))
		assert.NotZero(t, created.CollectionID)
		assert.NotZero(t, created.PhotocardIDs[0])
		assert.Zero(t, created.PhotocardIDs[1])
		assert.Len(t, repo.collections, 1, "no rollback of the collection row")
		assert.Equal(t, 0, repo.count("InsertCardTypeLink"))
	})

	t.Run("duplicate batch token is rejected", func(t *testing.T) {
		repo := newFakeRepo()
		token := "batch-1"
		in := NewCollection{
			Collection:        models.Collection{Name: "Spring 2024", BatchToken: &token},
			CollectionTypeIDs: []uint{3},
		}
		o := newTestOrchestrator(repo)

		_, err := o.CreateCollection(modContext(), in)
		require.NoError(t, err)

		_, err = o.CreateCollection(modContext(), in)
		assert.ErrorIs(t, err, errs.ErrValidation)
		assert.Equal(t, 1, repo.count("InsertCollection"))
	})
}
