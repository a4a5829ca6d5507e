package catalog

import (
	"context"
	"sync"

	"github.com/petermazzocco/photocard-catalog/models"
)

type fakeRepo struct {
	mu sync.Mutex

	nextID      uint
	calls       []string
	collections []models.Collection
	typeLinks   []models.CollectionToCollectionType
	cards       []models.Photocard
	cardLinks   []models.CardToCardType
	taxonomy    []string
	locked      []uint
	roles       map[uint]models.Role

	failInsertCollection error
	failPhotocardSize    map[uint]error
	failCardLink         error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{roles: map[uint]models.Role{}, failPhotocardSize: map[uint]error{}}
}

func (r *fakeRepo) record(call string) uint {
	r.calls = append(r.calls, call)
	r.nextID++
	return r.nextID
}

func (r *fakeRepo) InsertCollection(_ context.Context, c *models.Collection) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.record("InsertCollection")
	if r.failInsertCollection != nil {
		return r.failInsertCollection
	}
	c.ID = id
	r.collections = append(r.collections, *c)
	return nil
}

func (r *fakeRepo) InsertCollectionTypeLink(_ context.Context, link models.CollectionToCollectionType) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("InsertCollectionTypeLink")
	r.typeLinks = append(r.typeLinks, link)
	return nil
}

func (r *fakeRepo) InsertPhotocard(_ context.Context, p *models.Photocard) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.record("InsertPhotocard")
	if err := r.failPhotocardSize[p.SizeID]; err != nil {
		return err
	}
	p.ID = 100 + id
	r.cards = append(r.cards, *p)
	return nil
}

func (r *fakeRepo) InsertCardTypeLink(_ context.Context, link models.CardToCardType) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("InsertCardTypeLink")
	if r.failCardLink != nil {
		return r.failCardLink
	}
	r.cardLinks = append(r.cardLinks, link)
	return nil
}

func (r *fakeRepo) FindCollectionByBatchToken(_ context.Context, token string) (*models.Collection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, "FindCollectionByBatchToken")
	for _, c := range r.collections {
		if c.BatchToken != nil && *c.BatchToken == token {
			c := c
			return &c, nil
		}
	}
	return nil, nil
}

func (r *fakeRepo) InsertCollectionType(_ context.Context, t *models.CollectionType) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t.ID = r.record("InsertCollectionType")
	r.taxonomy = append(r.taxonomy, t.Name)
	return nil
}

func (r *fakeRepo) InsertCardType(_ context.Context, t *models.CardType) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t.ID = r.record("InsertCardType")
	r.taxonomy = append(r.taxonomy, t.Name)
	return nil
}

func (r *fakeRepo) InsertCardSize(_ context.Context, s *models.CardSize) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s.ID = r.record("InsertCardSize")
	r.taxonomy = append(r.taxonomy, s.Name)
	return nil
}

func (r *fakeRepo) ListRecentPhotocards(_ context.Context, limit int) ([]models.Photocard, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, "ListRecentPhotocards")
	if limit > len(r.cards) {
		limit = len(r.cards)
	}
	return r.cards[:limit], nil
}

func (r *fakeRepo) ListCollections(context.Context) ([]models.Collection, error) {
	return r.collections, nil
}

func (r *fakeRepo) ListCollectionTypes(context.Context) ([]models.CollectionType, error) {
	return nil, nil
}

func (r *fakeRepo) ListCardTypes(context.Context) ([]models.CardType, error) {
	return nil, nil
}

func (r *fakeRepo) ListCardSizes(context.Context) ([]models.CardSize, error) {
	return nil, nil
}

func (r *fakeRepo) LockPhotocard(_ context.Context, id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.locked = append(r.locked, id)
	return nil
}

func (r *fakeRepo) SetUserRole(_ context.Context, userID uint, role models.Role) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.roles[userID] = role
	return nil
}

func (r *fakeRepo) ImageReferenced(context.Context, string) (bool, error) {
	return false, nil
}

func (r *fakeRepo) count(call string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.calls {
		if c == call {
			n++
		}
	}
	return n
}
