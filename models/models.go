package models

import (
	"time"

	"gorm.io/gorm"
)

// Role values are persisted; never reuse a number.
type Role uint8

const (
	RoleUser Role = iota
	RoleMod
	RoleAdmin
)

func (r Role) String() string {
	switch r {
	case RoleUser:
		return "user"
	case RoleMod:
		return "mod"
	case RoleAdmin:
		return "admin"
	default:
		return "unknown"
	}
}

func (r Role) Valid() bool {
	return r <= RoleAdmin
}

// ParseRole is the inverse of Role.String.
func ParseRole(s string) (Role, bool) {
	for r := RoleUser; r <= RoleAdmin; r++ {
		if r.String() == s {
			return r, true
		}
	}
	return 0, false
}

// BackImageKind controls whether a card's back is a stored image or is rendered from the front.
type BackImageKind uint8

const (
	BackImage BackImageKind = iota
	BackWhite
	BackTransparent
)

func (k BackImageKind) Valid() bool {
	return k <= BackTransparent
}

func (k BackImageKind) String() string {
	switch k {
	case BackImage:
		return "image"
	case BackWhite:
		return "white"
	case BackTransparent:
		return "transparent"
	default:
		return "unknown"
	}
}

// ParseBackImageKind accepts the String form. An empty string means BackImage.
func ParseBackImageKind(s string) (BackImageKind, bool) {
	if s == "" {
		return BackImage, true
	}
	for k := BackImage; k <= BackTransparent; k++ {
		if k.String() == s {
			return k, true
		}
	}
	return 0, false
}

type ExclusiveCountry string

const (
	NotExclusive  ExclusiveCountry = ""
	CountryUSA    ExclusiveCountry = "USA"
	CountryKorea  ExclusiveCountry = "Korea"
	CountryJapan  ExclusiveCountry = "Japan"
	CountryTaiwan ExclusiveCountry = "Taiwan"
)

func (c ExclusiveCountry) Valid() bool {
	switch c {
	case NotExclusive, CountryUSA, CountryKorea, CountryJapan, CountryTaiwan:
		return true
	}
	return false
}

type User struct {
	ID        uint `gorm:"primarykey"`
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
	Name      string         `gorm:"size:255;not null"`
	Email     string         `gorm:"size:255;not null;unique"`
	Role      Role           `gorm:"not null;default:0"`
}

type Collection struct {
	ID          uint `gorm:"primarykey"`
	CreatedAt   time.Time
	Name        string    `gorm:"size:255;not null"`
	ReleaseDate time.Time `gorm:"not null"`
	BatchToken  *string   `gorm:"size:64;uniqueIndex" json:",omitempty"`
}

type CollectionType struct {
	ID   uint   `gorm:"primarykey"`
	Name string `gorm:"size:255;not null;unique"`
}

type CardType struct {
	ID   uint   `gorm:"primarykey"`
	Name string `gorm:"size:255;not null;unique"`
}

type CardSize struct {
	ID     uint    `gorm:"primarykey"`
	Name   string  `gorm:"size:255;not null"`
	Width  float64 `gorm:"not null"`
	Height float64 `gorm:"not null"`
}

type CollectionToCollectionType struct {
	CollectionID     uint `gorm:"primaryKey;autoIncrement:false"`
	CollectionTypeID uint `gorm:"primaryKey;autoIncrement:false"`
}

type CardToCardType struct {
	CardID     uint `gorm:"primaryKey;autoIncrement:false"`
	CardTypeID uint `gorm:"primaryKey;autoIncrement:false"`
}

// Members is the set of people appearing on a card. Flags are not mutually exclusive.
type Members struct {
	RM       bool `gorm:"column:rm;not null;default:false" json:"rm"`
	Jimin    bool `gorm:"column:jimin;not null;default:false" json:"jimin"`
	Jungkook bool `gorm:"column:jungkook;not null;default:false" json:"jungkook"`
	V        bool `gorm:"column:v;not null;default:false" json:"v"`
	Jin      bool `gorm:"column:jin;not null;default:false" json:"jin"`
	Suga     bool `gorm:"column:suga;not null;default:false" json:"suga"`
	JHope    bool `gorm:"column:jhope;not null;default:false" json:"jhope"`
}

type Photocard struct {
	ID               uint             `gorm:"primarykey"`
	CollectionID     uint             `gorm:"not null;index"`
	ImageID          *string          `gorm:"size:64;index"`
	BackImageID      *string          `gorm:"size:64;index"`
	BackImageKind    BackImageKind    `gorm:"not null;default:0"`
	SizeID           uint             `gorm:"not null"`
	Members          Members          `gorm:"embedded"`
	Temporary        bool             `gorm:"not null"`
	ExclusiveCountry ExclusiveCountry `gorm:"size:32"`
	ContributorID    uint             `gorm:"not null"`
	// UpdatedAt is epoch milliseconds; one upload batch shares a single value.
	UpdatedAt int64 `gorm:"autoUpdateTime:milli;index"`
}

// All lists every table for AutoMigrate.
func All() []any {
	return []any{
		&User{},
		&Collection{},
		&CollectionType{},
		&CardType{},
		&CardSize{},
		&CollectionToCollectionType{},
		&CardToCardType{},
		&Photocard{},
	}
}
