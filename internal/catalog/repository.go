package catalog

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/petermazzocco/photocard-catalog/models"
)

var ErrNotFound = errors.New("not found")

// Repository is the relational store. Every insert is a single statement that fills in the
// generated primary key; sequences of inserts are not atomic.
type Repository interface {
	InsertCollection(ctx context.Context, c *models.Collection) error
	InsertCollectionTypeLink(ctx context.Context, link models.CollectionToCollectionType) error
	InsertPhotocard(ctx context.Context, p *models.Photocard) error
	InsertCardTypeLink(ctx context.Context, link models.CardToCardType) error
	FindCollectionByBatchToken(ctx context.Context, token string) (*models.Collection, error)

	InsertCollectionType(ctx context.Context, t *models.CollectionType) error
	InsertCardType(ctx context.Context, t *models.CardType) error
	InsertCardSize(ctx context.Context, s *models.CardSize) error

	ListRecentPhotocards(ctx context.Context, limit int) ([]models.Photocard, error)
	ListCollections(ctx context.Context) ([]models.Collection, error)
	ListCollectionTypes(ctx context.Context) ([]models.CollectionType, error)
	ListCardTypes(ctx context.Context) ([]models.CardType, error)
	ListCardSizes(ctx context.Context) ([]models.CardSize, error)

	LockPhotocard(ctx context.Context, id uint) error
	SetUserRole(ctx context.Context, userID uint, role models.Role) error
	ImageReferenced(ctx context.Context, imageID string) (bool, error)
}

type GormRepository struct {
	db *gorm.DB
}

func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(models.All()...)
}

func (r *GormRepository) InsertCollection(ctx context.Context, c *models.Collection) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *GormRepository) InsertCollectionTypeLink(ctx context.Context, link models.CollectionToCollectionType) error {
	return r.db.WithContext(ctx).Create(&link).Error
}

func (r *GormRepository) InsertPhotocard(ctx context.Context, p *models.Photocard) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *GormRepository) InsertCardTypeLink(ctx context.Context, link models.CardToCardType) error {
	return r.db.WithContext(ctx).Create(&link).Error
}

func (r *GormRepository) FindCollectionByBatchToken(ctx context.Context, token string) (*models.Collection, error) {
	var c models.Collection
	err := r.db.WithContext(ctx).Where("batch_token = ?", token).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *GormRepository) InsertCollectionType(ctx context.Context, t *models.CollectionType) error {
	return r.db.WithContext(ctx).Create(t).Error
}

func (r *GormRepository) InsertCardType(ctx context.Context, t *models.CardType) error {
	return r.db.WithContext(ctx).Create(t).Error
}

func (r *GormRepository) InsertCardSize(ctx context.Context, s *models.CardSize) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *GormRepository) ListRecentPhotocards(ctx context.Context, limit int) ([]models.Photocard, error) {
	var cards []models.Photocard
	err := r.db.WithContext(ctx).
		Order("updated_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&cards).Error
	return cards, err
}

func (r *GormRepository) ListCollections(ctx context.Context) ([]models.Collection, error) {
	var out []models.Collection
	err := r.db.WithContext(ctx).Order("release_date DESC").Find(&out).Error
	return out, err
}

func (r *GormRepository) ListCollectionTypes(ctx context.Context) ([]models.CollectionType, error) {
	var out []models.CollectionType
	err := r.db.WithContext(ctx).Order("name").Find(&out).Error
	return out, err
}

func (r *GormRepository) ListCardTypes(ctx context.Context) ([]models.CardType, error) {
	var out []models.CardType
	err := r.db.WithContext(ctx).Order("name").Find(&out).Error
	return out, err
}

func (r *GormRepository) ListCardSizes(ctx context.Context) ([]models.CardSize, error) {
	var out []models.CardSize
	err := r.db.WithContext(ctx).Order("name").Find(&out).Error
	return out, err
}

// LockPhotocard leaves updated_at alone so the card keeps its place among its upload batch.
func (r *GormRepository) LockPhotocard(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Model(&models.Photocard{}).Where("id = ?", id).UpdateColumn("temporary", false)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *GormRepository) SetUserRole(ctx context.Context, userID uint, role models.Role) error {
	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Update("role", role)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *GormRepository) ImageReferenced(ctx context.Context, imageID string) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Photocard{}).
		Where("image_id = ? OR back_image_id = ?", imageID, imageID).
		Count(&n).Error
	return n > 0, err
}
