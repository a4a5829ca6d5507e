package workflow

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/petermazzocco/photocard-catalog/internal/errs"
	"github.com/petermazzocco/photocard-catalog/models"
)

// CardInput is one photocard as the user described it. Front and Back hold raw image bytes and
// are nil when no file was attached.
type CardInput struct {
	Front            []byte
	Back             []byte
	BackKind         models.BackImageKind
	SizeID           uint   `validate:"gt=0"`
	CardTypeIDs      []uint `validate:"min=1,dive,gt=0"`
	Members          models.Members
	Temporary        bool
	ExclusiveCountry models.ExclusiveCountry
}

// Submission is everything one publish action needs. It is built once per request and never
// mutated afterwards.
type Submission struct {
	Name              string `validate:"required"`
	ReleaseDate       time.Time
	CollectionTypeIDs []uint      `validate:"min=1,dive,gt=0"`
	BatchToken        string      `validate:"omitempty,max=64"`
	Cards             []CardInput `validate:"dive"`
}

func (s Submission) validate(v *validator.Validate) error {
	if err := v.Struct(s); err != nil {
		var ves validator.ValidationErrors
		if errors.As(err, &ves) {
			msgs := make([]string, 0, len(ves))
			for _, fe := range ves {
				msgs = append(msgs, describe(fe))
			}
			return errs.Validation("%s", strings.Join(msgs, "; "))
		}
		return errs.Validation("%v", err)
	}
	if strings.TrimSpace(s.Name) == "" {
		return errs.Validation("collection name is required")
	}
	if s.ReleaseDate.IsZero() {
		return errs.Validation("release date is required")
	}
	for i, c := range s.Cards {
		if !c.BackKind.Valid() {
			return errs.Validation("card %d: unknown back image kind %d", i, c.BackKind)
		}
		if !c.ExclusiveCountry.Valid() {
			return errs.Validation("card %d: unknown exclusive country %q", i, c.ExclusiveCountry)
		}
	}
	return nil
}

func describe(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "Submission.")
	switch {
	case fe.Field() == "Name":
		return "collection name is required"
	case fe.Field() == "CollectionTypeIDs" && fe.Tag() == "min":
		return "at least one collection type must be selected"
	case strings.HasSuffix(field, ".SizeID"):
		return fmt.Sprintf("%s: a card size must be selected", field)
	case strings.HasSuffix(field, ".CardTypeIDs") && fe.Tag() == "min":
		return fmt.Sprintf("%s: a card type must be selected", field)
	}
	return fmt.Sprintf("%s failed %s", field, fe.Tag())
}
