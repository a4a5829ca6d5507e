package catalog

import (
	"context"
	"strings"

	"github.com/petermazzocco/photocard-catalog/internal/auth"
	"github.com/petermazzocco/photocard-catalog/internal/errs"
	"github.com/petermazzocco/photocard-catalog/models"
)

const MaxRecentPhotocards = 50

// Service covers the catalog reads and the insert-only taxonomy tables.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// RecentPhotocards returns the most recently updated cards, newest first. limit is clamped to
// 1..MaxRecentPhotocards.
func (s *Service) RecentPhotocards(ctx context.Context, limit int) ([]models.Photocard, error) {
	if limit <= 0 || limit > MaxRecentPhotocards {
		limit = MaxRecentPhotocards
	}
	return s.repo.ListRecentPhotocards(ctx, limit)
}

func (s *Service) Collections(ctx context.Context) ([]models.Collection, error) {
	return s.repo.ListCollections(ctx)
}

func (s *Service) CollectionTypes(ctx context.Context) ([]models.CollectionType, error) {
	return s.repo.ListCollectionTypes(ctx)
}

func (s *Service) CardTypes(ctx context.Context) ([]models.CardType, error) {
	return s.repo.ListCardTypes(ctx)
}

func (s *Service) CardSizes(ctx context.Context) ([]models.CardSize, error) {
	return s.repo.ListCardSizes(ctx)
}

func (s *Service) AddCollectionType(ctx context.Context, name string) (uint, error) {
	if _, err := auth.RequireAtLeast(ctx, models.RoleMod); err != nil {
		return 0, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, errs.Validation("collection type name is required")
	}
	t := models.CollectionType{Name: name}
	if err := s.repo.InsertCollectionType(ctx, &t); err != nil {
		return 0, errs.Stage("insert collection type", name, errs.ErrStoreWrite, err)
	}
	return t.ID, nil
}

func (s *Service) AddCardType(ctx context.Context, name string) (uint, error) {
	if _, err := auth.RequireAtLeast(ctx, models.RoleMod); err != nil {
		return 0, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, errs.Validation("card type name is required")
	}
	t := models.CardType{Name: name}
	if err := s.repo.InsertCardType(ctx, &t); err != nil {
		return 0, errs.Stage("insert card type", name, errs.ErrStoreWrite, err)
	}
	return t.ID, nil
}

func (s *Service) AddCardSize(ctx context.Context, name string, width, height float64) (uint, error) {
	if _, err := auth.RequireAtLeast(ctx, models.RoleMod); err != nil {
		return 0, err
	}
	name = strings.TrimSpace(name)
	if name == "" || width <= 0 || height <= 0 {
		return 0, errs.Validation("card size needs a name and positive dimensions")
	}
	size := models.CardSize{Name: name, Width: width, Height: height}
	if err := s.repo.InsertCardSize(ctx, &size); err != nil {
		return 0, errs.Stage("insert card size", name, errs.ErrStoreWrite, err)
	}
	return size.ID, nil
}

// LockPhotocard marks a card permanent so later re-uploads cannot replace it.
func (s *Service) LockPhotocard(ctx context.Context, id uint) error {
	if _, err := auth.RequireAtLeast(ctx, models.RoleMod); err != nil {
		return err
	}
	return s.repo.LockPhotocard(ctx, id)
}

func (s *Service) SetUserRole(ctx context.Context, userID uint, role models.Role) error {
	if _, err := auth.RequireAtLeast(ctx, models.RoleAdmin); err != nil {
		return err
	}
	if !role.Valid() {
		return errs.Validation("unknown role %d", role)
	}
	return s.repo.SetUserRole(ctx, userID, role)
}

// ImageReferenced reports whether any photocard points at imageID.
func (s *Service) ImageReferenced(ctx context.Context, imageID string) (bool, error) {
	return s.repo.ImageReferenced(ctx, imageID)
}
