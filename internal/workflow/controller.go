// Package workflow sequences one publish action:
//
//	Idle -> Validating -> Transcoding -> WritingMetadata -> UploadingBlobs -> Succeeded | Failed
//
// Metadata is written before any blob. A photocard pointing at a not-yet-uploaded image shows a
// broken thumbnail until the upload lands, whereas a blob without an owning row is dead storage
// nothing points at. Nothing is retried automatically.
package workflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc/pool"

	"github.com/petermazzocco/photocard-catalog/internal/auth"
	"github.com/petermazzocco/photocard-catalog/internal/blob"
	"github.com/petermazzocco/photocard-catalog/internal/catalog"
	"github.com/petermazzocco/photocard-catalog/internal/errs"
	"github.com/petermazzocco/photocard-catalog/internal/imageid"
	"github.com/petermazzocco/photocard-catalog/internal/logger"
	"github.com/petermazzocco/photocard-catalog/internal/transcode"
	"github.com/petermazzocco/photocard-catalog/models"
)

type State string

const (
	Idle            State = "idle"
	Validating      State = "validating"
	Transcoding     State = "transcoding"
	WritingMetadata State = "writing metadata"
	UploadingBlobs  State = "uploading blobs"
	Succeeded       State = "succeeded"
	Failed          State = "failed"
)

const maxConcurrentTranscodes = 4

type Transcoder interface {
	Transcode(ctx context.Context, data []byte) (transcode.Result, error)
}

type MetadataWriter interface {
	CreateCollection(ctx context.Context, in catalog.NewCollection) (catalog.Created, error)
}

type Uploader interface {
	Upload(ctx context.Context, pairs []blob.Pair) blob.Report
}

type ImageIndex interface {
	ImageReferenced(ctx context.Context, imageID string) (bool, error)
}

// Outcome describes how far a publish got. FailedStage is set only when State is Failed.
type Outcome struct {
	State        State
	FailedStage  State
	CollectionID uint
	PhotocardIDs []uint
	ImageIDs     []string
	Upload       blob.Report
}

func (o *Outcome) fail() {
	o.FailedStage = o.State
	o.State = Failed
}

type Controller struct {
	transcoder Transcoder
	deriver    *imageid.Deriver
	metadata   MetadataWriter
	uploader   Uploader
	images     ImageIndex
	validate   *validator.Validate
}

func NewController(t Transcoder, d *imageid.Deriver, m MetadataWriter, u Uploader, images ImageIndex) *Controller {
	return &Controller{
		transcoder: t,
		deriver:    d,
		metadata:   m,
		uploader:   u,
		images:     images,
		validate:   validator.New(),
	}
}

type slot struct {
	card int
	side string
	data []byte
	out  transcode.Result
}

func (s *slot) ref() string {
	return fmt.Sprintf("card %d %s", s.card, s.side)
}

// Publish runs the whole workflow for one submission.
func (c *Controller) Publish(ctx context.Context, sub Submission) (Outcome, error) {
	out := Outcome{State: Idle}
	// A started publish runs to completion or failure; caller cancellation is ignored.
	ctx = context.WithoutCancel(ctx)
	log := logger.For(ctx).WithFields(logrus.Fields{"collection": sub.Name, "cards": len(sub.Cards)})

	out.State = Validating
	if _, err := auth.RequireAtLeast(ctx, models.RoleMod); err != nil {
		out.fail()
		return out, errs.Stage(string(Validating), "", errs.ErrUnauthorized, err)
	}
	if err := sub.validate(c.validate); err != nil {
		out.fail()
		return out, errs.Stage(string(Validating), "", errs.ErrValidation, err)
	}

	out.State = Transcoding
	slots := collectSlots(sub)
	if err := c.transcodeAll(ctx, slots); err != nil {
		log.WithError(err).Warn("transcoding failed")
		out.fail()
		return out, errs.Stage(string(Transcoding), "", transcodeKind(err), err)
	}

	payloads := make([][]byte, len(slots))
	for i := range slots {
		payloads[i] = slots[i].out.FullSize
	}
	assignment := c.deriver.Derive(payloads)
	out.ImageIDs = assignment.IDs()

	in := buildCollection(sub, slots, assignment)
	pairs := buildPairs(slots, assignment)

	out.State = WritingMetadata
	created, err := c.metadata.CreateCollection(ctx, in)
	out.CollectionID = created.CollectionID
	out.PhotocardIDs = created.PhotocardIDs
	if err != nil {
		log.WithError(err).Error("metadata write failed, no images uploaded")
		out.fail()
		return out, errs.Stage(string(WritingMetadata), "", errs.ErrStoreWrite, err)
	}

	out.State = UploadingBlobs
	out.Upload = c.uploader.Upload(ctx, pairs)
	if err := out.Upload.Err(); err != nil {
		log.WithError(err).WithField("collection_id", created.CollectionID).Error("image upload incomplete")
		out.fail()
		return out, errs.Stage(string(UploadingBlobs), fmt.Sprintf("collection %d", created.CollectionID), errs.ErrPartialUpload, err)
	}

	out.State = Succeeded
	log.WithFields(logrus.Fields{"collection_id": created.CollectionID, "images": len(pairs)}).Info("collection published")
	return out, nil
}

// collectSlots lists every attached image. A back image only counts when the card's back kind
// asks for a stored image.
func collectSlots(sub Submission) []*slot {
	var slots []*slot
	for i, card := range sub.Cards {
		if len(card.Front) > 0 {
			slots = append(slots, &slot{card: i, side: "front", data: card.Front})
		}
		if card.BackKind == models.BackImage && len(card.Back) > 0 {
			slots = append(slots, &slot{card: i, side: "back", data: card.Back})
		}
	}
	return slots
}

func (c *Controller) transcodeAll(ctx context.Context, slots []*slot) error {
	p := pool.New().WithErrors().WithMaxGoroutines(maxConcurrentTranscodes)
	for _, s := range slots {
		s := s
		p.Go(func() error {
			res, err := c.transcoder.Transcode(ctx, s.data)
			if err != nil {
				return errs.Stage("transcode", s.ref(), transcodeKind(err), err)
			}
			s.out = res
			return nil
		})
	}
	return p.Wait()
}

// transcodeKind is the fallback kind for a transcoding error. Cancellations are left unlabelled.
func transcodeKind(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return errs.ErrDecode
}

func buildCollection(sub Submission, slots []*slot, a imageid.Assignment) catalog.NewCollection {
	in := catalog.NewCollection{
		Collection: models.Collection{
			Name:        sub.Name,
			ReleaseDate: sub.ReleaseDate,
		},
		CollectionTypeIDs: sub.CollectionTypeIDs,
		Photocards:        make([]models.Photocard, len(sub.Cards)),
		CardTypeIDs:       make([][]uint, len(sub.Cards)),
	}
	if sub.BatchToken != "" {
		tok := sub.BatchToken
		in.Collection.BatchToken = &tok
	}

	for i, card := range sub.Cards {
		in.Photocards[i] = models.Photocard{
			BackImageKind:    card.BackKind,
			SizeID:           card.SizeID,
			Members:          card.Members,
			Temporary:        card.Temporary,
			ExclusiveCountry: card.ExclusiveCountry,
		}
		in.CardTypeIDs[i] = card.CardTypeIDs
	}
	for _, s := range slots {
		id, ok := a.IDFor(s.out.FullSize)
		if !ok {
			continue
		}
		if s.side == "front" {
			in.Photocards[s.card].ImageID = &id
		} else {
			in.Photocards[s.card].BackImageID = &id
		}
	}
	return in
}

// buildPairs keeps the first encoding seen for each identifier.
func buildPairs(slots []*slot, a imageid.Assignment) []blob.Pair {
	seen := make(map[string]bool)
	var pairs []blob.Pair
	for _, s := range slots {
		id, ok := a.IDFor(s.out.FullSize)
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		pairs = append(pairs, blob.Pair{
			ID:          id,
			FullSize:    s.out.FullSize,
			Thumbnail:   s.out.Thumbnail,
			ContentType: s.out.ContentType,
		})
	}
	return pairs
}

// Reupload stores an image pair under an identifier a photocard already references, for
// recovering from a publish whose metadata landed but whose upload did not.
func (c *Controller) Reupload(ctx context.Context, imageID string, data []byte) (blob.Report, error) {
	ctx = context.WithoutCancel(ctx)
	if _, err := auth.RequireAtLeast(ctx, models.RoleMod); err != nil {
		return blob.Report{}, err
	}
	if imageID == "" {
		return blob.Report{}, errs.Validation("image id is required")
	}
	referenced, err := c.images.ImageReferenced(ctx, imageID)
	if err != nil {
		return blob.Report{}, errs.Stage("lookup image", imageID, errs.ErrStoreWrite, err)
	}
	if !referenced {
		return blob.Report{}, errs.Validation("image %s is not referenced by any photocard", imageID)
	}

	res, err := c.transcoder.Transcode(ctx, data)
	if err != nil {
		return blob.Report{}, errs.Stage("transcode", imageID, transcodeKind(err), err)
	}

	report := c.uploader.Upload(ctx, []blob.Pair{{
		ID:          imageID,
		FullSize:    res.FullSize,
		Thumbnail:   res.Thumbnail,
		ContentType: res.ContentType,
	}})
	if err := report.Err(); err != nil {
		logger.For(ctx).WithError(err).WithField("image_id", imageID).Warn("re-upload failed")
		return report, err
	}
	return report, nil
}
