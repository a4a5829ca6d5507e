package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc/pool"

	"github.com/petermazzocco/photocard-catalog/internal/auth"
	"github.com/petermazzocco/photocard-catalog/internal/errs"
	"github.com/petermazzocco/photocard-catalog/internal/logger"
	"github.com/petermazzocco/photocard-catalog/models"
)

const (
	StageAuthorize          = "authorize"
	StageValidate           = "validate"
	StageInsertCollection   = "insert collection"
	StageLinkCollectionType = "link collection type"
	StageInsertPhotocard    = "insert photocard"
	StageLinkCardType       = "link card type"
)

const defaultMaxConcurrentInserts = 8

// NewCollection is one collection with its cards. CardTypeIDs[i] belongs to Photocards[i].
type NewCollection struct {
	Collection        models.Collection
	CollectionTypeIDs []uint
	Photocards        []models.Photocard
	CardTypeIDs       [][]uint
}

// Created holds the generated identifiers. On failure it holds whatever was committed.
type Created struct {
	CollectionID uint
	PhotocardIDs []uint
	UpdatedAt    int64
}

// Orchestrator performs the ordered inserts for a new collection. Nothing is rolled back on
// failure: a collection with no cards is a valid catalog state.
type Orchestrator struct {
	repo           Repository
	now            func() time.Time
	maxConcurrency int
}

func NewOrchestrator(repo Repository) *Orchestrator {
	return &Orchestrator{repo: repo, now: time.Now, maxConcurrency: defaultMaxConcurrentInserts}
}

func (o *Orchestrator) CreateCollection(ctx context.Context, in NewCollection) (Created, error) {
	var out Created

	session, err := auth.RequireAtLeast(ctx, models.RoleMod)
	if err != nil {
		return out, errs.Stage(StageAuthorize, "", errs.ErrUnauthorized, err)
	}
	if len(in.CardTypeIDs) != len(in.Photocards) {
		return out, errs.Stage(StageValidate, "", errs.ErrValidation,
			errs.Validation("card/type count mismatch: %d photocards, %d card type lists", len(in.Photocards), len(in.CardTypeIDs)))
	}
	if tok := in.Collection.BatchToken; tok != nil && *tok != "" {
		existing, err := o.repo.FindCollectionByBatchToken(ctx, *tok)
		if err != nil {
			return out, errs.Stage(StageValidate, "batch "+*tok, errs.ErrStoreWrite, err)
		}
		if existing != nil {
			return out, errs.Stage(StageValidate, fmt.Sprintf("collection %d", existing.ID), errs.ErrValidation,
				errs.Validation("duplicate submission of batch %s", *tok))
		}
	}

	log := logger.For(ctx).WithFields(logrus.Fields{"collection": in.Collection.Name, "photocards": len(in.Photocards)})

	collection := in.Collection
	collection.ID = 0
	if err := o.repo.InsertCollection(ctx, &collection); err != nil {
		return out, errs.Stage(StageInsertCollection, collection.Name, errs.ErrStoreWrite, err)
	}
	out.CollectionID = collection.ID
	log = log.WithField("collection_id", collection.ID)

	if len(in.CollectionTypeIDs) > 0 {
		p := o.errorPool()
		for _, typeID := range in.CollectionTypeIDs {
			typeID := typeID
			p.Go(func() error {
				link := models.CollectionToCollectionType{CollectionID: collection.ID, CollectionTypeID: typeID}
				if err := o.repo.InsertCollectionTypeLink(ctx, link); err != nil {
					return errs.Stage(StageLinkCollectionType, fmt.Sprintf("collection %d type %d", collection.ID, typeID), errs.ErrStoreWrite, err)
				}
				return nil
			})
		}
		if err := p.Wait(); err != nil {
			log.WithError(err).Error("collection type links failed")
			return out, err
		}
	}

	if len(in.Photocards) == 0 {
		log.Info("collection created without photocards")
		return out, nil
	}

	// One timestamp for the whole batch so its cards sort together.
	now := o.now().UnixMilli()
	out.UpdatedAt = now
	cards := make([]models.Photocard, len(in.Photocards))
	for i, pc := range in.Photocards {
		pc.ID = 0
		pc.CollectionID = collection.ID
		pc.ContributorID = session.UserID
		pc.UpdatedAt = now
		cards[i] = pc
	}

	p := o.errorPool()
	for i := range cards {
		i := i
		p.Go(func() error {
			if err := o.repo.InsertPhotocard(ctx, &cards[i]); err != nil {
				return errs.Stage(StageInsertPhotocard, fmt.Sprintf("photocard %d", i), errs.ErrStoreWrite, err)
			}
			return nil
		})
	}
	insertErr := p.Wait()
	out.PhotocardIDs = make([]uint, len(cards))
	for i := range cards {
		out.PhotocardIDs[i] = cards[i].ID
	}
	if insertErr != nil {
		log.WithError(insertErr).Error("photocard inserts failed")
		return out, insertErr
	}

	p = o.errorPool()
	for i := range cards {
		cardID := cards[i].ID
		for _, typeID := range in.CardTypeIDs[i] {
			typeID := typeID
			p.Go(func() error {
				link := models.CardToCardType{CardID: cardID, CardTypeID: typeID}
				if err := o.repo.InsertCardTypeLink(ctx, link); err != nil {
					return errs.Stage(StageLinkCardType, fmt.Sprintf("photocard %d type %d", cardID, typeID), errs.ErrStoreWrite, err)
				}
				return nil
			})
		}
	}
	if err := p.Wait(); err != nil {
		log.WithError(err).Error("card type links failed")
		return out, err
	}

	log.Info("collection metadata written")
	return out, nil
}

func (o *Orchestrator) errorPool() *pool.ErrorPool {
	return pool.New().WithErrors().WithMaxGoroutines(o.maxConcurrency)
}
