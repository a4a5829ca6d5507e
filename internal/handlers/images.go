package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/petermazzocco/photocard-catalog/internal/blob"
	"github.com/petermazzocco/photocard-catalog/internal/errs"
	"github.com/petermazzocco/photocard-catalog/internal/logger"
	"github.com/petermazzocco/photocard-catalog/internal/workflow"
	"github.com/petermazzocco/photocard-catalog/models"
)

const (
	maxMultipartMemory = 32 << 20
	releaseDateLayout  = "2006-01-02"
)

type Publisher interface {
	Publish(ctx context.Context, sub workflow.Submission) (workflow.Outcome, error)
}

type Reuploader interface {
	Reupload(ctx context.Context, imageID string, data []byte) (blob.Report, error)
}

// publishPayload is the `payload` form field. Front and Back name multipart file fields; several
// cards may name the same field.
type publishPayload struct {
	Name              string        `json:"name"`
	ReleaseDate       string        `json:"releaseDate"`
	CollectionTypeIDs []uint        `json:"collectionTypeIds"`
	BatchToken        string        `json:"batchToken"`
	Photocards        []cardPayload `json:"photocards"`
}

type cardPayload struct {
	Front            string         `json:"front"`
	Back             string         `json:"back"`
	BackImageKind    string         `json:"backImageKind"`
	SizeID           uint           `json:"sizeId"`
	CardTypeIDs      []uint         `json:"cardTypeIds"`
	Members          models.Members `json:"members"`
	Temporary        bool           `json:"temporary"`
	ExclusiveCountry string         `json:"exclusiveCountry"`
}

type publishResponse struct {
	State        workflow.State `json:"state"`
	CollectionID uint           `json:"collectionId,omitempty"`
	PhotocardIDs []uint         `json:"photocardIds,omitempty"`
	ImageIDs     []string       `json:"imageIds,omitempty"`
	Uploaded     []string       `json:"uploaded,omitempty"`
	FailedImages []string       `json:"failedImages,omitempty"`
	*errorResponse
}

// PublishCollectionHandler creates a collection with its photocards and uploads every image.
func PublishCollectionHandler(w http.ResponseWriter, r *http.Request, publisher Publisher, maxImageBytes int) {
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		writeError(w, r, errs.Validation("invalid multipart form: %v", err))
		return
	}

	sub, err := buildSubmission(r.MultipartForm, maxImageBytes)
	if err != nil {
		writeError(w, r, err)
		return
	}

	outcome, err := publisher.Publish(r.Context(), sub)
	resp := publishResponse{
		State:        outcome.State,
		CollectionID: outcome.CollectionID,
		PhotocardIDs: outcome.PhotocardIDs,
		ImageIDs:     outcome.ImageIDs,
		Uploaded:     outcome.Upload.Uploaded,
		FailedImages: outcome.Upload.FailedIDs(),
	}
	if err != nil {
		status := statusFor(err)
		logger.For(r.Context()).WithError(err).WithFields(logrus.Fields{
			"status":        status,
			"failed_stage":  outcome.FailedStage,
			"collection_id": outcome.CollectionID,
		}).Warn("publish failed")
		e := newErrorResponse(err)
		resp.errorResponse = &e
		writeJSON(w, status, resp)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func buildSubmission(form *multipart.Form, maxImageBytes int) (workflow.Submission, error) {
	var sub workflow.Submission
	raw := form.Value["payload"]
	if len(raw) == 0 {
		return sub, errs.Validation("missing payload field")
	}
	var p publishPayload
	if err := json.Unmarshal([]byte(raw[0]), &p); err != nil {
		return sub, errs.Validation("invalid payload: %v", err)
	}

	sub = workflow.Submission{
		Name:              p.Name,
		CollectionTypeIDs: p.CollectionTypeIDs,
		BatchToken:        p.BatchToken,
		Cards:             make([]workflow.CardInput, len(p.Photocards)),
	}
	if p.ReleaseDate != "" {
		date, err := time.Parse(releaseDateLayout, p.ReleaseDate)
		if err != nil {
			return sub, errs.Validation("release date must look like %s", releaseDateLayout)
		}
		sub.ReleaseDate = date
	}

	files := fileCache{form: form, max: maxImageBytes, data: map[string][]byte{}}
	for i, c := range p.Photocards {
		kind, ok := models.ParseBackImageKind(c.BackImageKind)
		if !ok {
			return sub, errs.Validation("card %d: unknown back image kind %q", i, c.BackImageKind)
		}
		front, err := files.read(c.Front)
		if err != nil {
			return sub, fmt.Errorf("card %d front: %w", i, err)
		}
		var back []byte
		if kind == models.BackImage {
			if back, err = files.read(c.Back); err != nil {
				return sub, fmt.Errorf("card %d back: %w", i, err)
			}
		}
		sub.Cards[i] = workflow.CardInput{
			Front:            front,
			Back:             back,
			BackKind:         kind,
			SizeID:           c.SizeID,
			CardTypeIDs:      c.CardTypeIDs,
			Members:          c.Members,
			Temporary:        c.Temporary,
			ExclusiveCountry: models.ExclusiveCountry(c.ExclusiveCountry),
		}
	}
	return sub, nil
}

// fileCache reads each named file field at most once. Reads stop one byte past max so that an
// oversized image is still rejected by the transcoder's size check without buffering all of it.
type fileCache struct {
	form *multipart.Form
	max  int
	data map[string][]byte
}

func (c *fileCache) read(field string) ([]byte, error) {
	if field == "" {
		return nil, nil
	}
	if b, ok := c.data[field]; ok {
		return b, nil
	}
	headers := c.form.File[field]
	if len(headers) == 0 {
		return nil, errs.Validation("no file uploaded as %q", field)
	}
	b, err := readLimited(headers[0], c.max)
	if err != nil {
		return nil, err
	}
	c.data[field] = b
	return b, nil
}

func readLimited(h *multipart.FileHeader, max int) ([]byte, error) {
	f, err := h.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", h.Filename, err)
	}
	defer f.Close()
	b, err := io.ReadAll(io.LimitReader(f, int64(max)+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", h.Filename, err)
	}
	return b, nil
}

// ReuploadImageHandler stores a fresh image pair under an identifier whose upload never landed.
func ReuploadImageHandler(w http.ResponseWriter, r *http.Request, reuploader Reuploader, maxImageBytes int) {
	id := chi.URLParam(r, "id")

	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		writeError(w, r, errs.Validation("invalid multipart form: %v", err))
		return
	}
	headers := r.MultipartForm.File["image"]
	if len(headers) == 0 {
		writeError(w, r, errs.Validation("no file uploaded as \"image\""))
		return
	}
	data, err := readLimited(headers[0], maxImageBytes)
	if err != nil {
		writeError(w, r, err)
		return
	}

	report, err := reuploader.Reupload(r.Context(), id, data)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
