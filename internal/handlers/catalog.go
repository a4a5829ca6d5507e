package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/petermazzocco/photocard-catalog/internal/catalog"
	"github.com/petermazzocco/photocard-catalog/internal/errs"
	"github.com/petermazzocco/photocard-catalog/internal/imageid"
	"github.com/petermazzocco/photocard-catalog/models"
)

type photocardResponse struct {
	models.Photocard
	ImageURL     string `json:"imageUrl,omitempty"`
	ThumbnailURL string `json:"thumbnailUrl,omitempty"`
	BackImageURL string `json:"backImageUrl,omitempty"`
}

// GetPhotocardsHandler lists the most recently updated photocards with their public image URLs.
func GetPhotocardsHandler(w http.ResponseWriter, r *http.Request, svc *catalog.Service, baseURL string) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, r, errs.Validation("limit must be a number"))
			return
		}
		limit = n
	}

	cards, err := svc.RecentPhotocards(r.Context(), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := make([]photocardResponse, 0, len(cards))
	for _, c := range cards {
		resp := photocardResponse{Photocard: c}
		if c.ImageID != nil {
			resp.ImageURL = publicURL(baseURL, imageid.FullSizeKey(*c.ImageID))
			resp.ThumbnailURL = publicURL(baseURL, imageid.ThumbnailKey(*c.ImageID))
		}
		if c.BackImageID != nil {
			resp.BackImageURL = publicURL(baseURL, imageid.FullSizeKey(*c.BackImageID))
		}
		out = append(out, resp)
	}
	writeJSON(w, http.StatusOK, out)
}

func GetCollectionsHandler(w http.ResponseWriter, r *http.Request, svc *catalog.Service) {
	collections, err := svc.Collections(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, collections)
}

func GetCollectionTypesHandler(w http.ResponseWriter, r *http.Request, svc *catalog.Service) {
	types, err := svc.CollectionTypes(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, types)
}

func GetCardTypesHandler(w http.ResponseWriter, r *http.Request, svc *catalog.Service) {
	types, err := svc.CardTypes(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, types)
}

func GetCardSizesHandler(w http.ResponseWriter, r *http.Request, svc *catalog.Service) {
	sizes, err := svc.CardSizes(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sizes)
}

type taxonomyRequest struct {
	Name   string  `json:"name"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type createdResponse struct {
	ID uint `json:"id"`
}

func decodeTaxonomy(r *http.Request) (taxonomyRequest, error) {
	var req taxonomyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return req, errs.Validation("invalid request body: %v", err)
	}
	return req, nil
}

func CreateCollectionTypeHandler(w http.ResponseWriter, r *http.Request, svc *catalog.Service) {
	req, err := decodeTaxonomy(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	id, err := svc.AddCollectionType(r.Context(), req.Name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, createdResponse{ID: id})
}

func CreateCardTypeHandler(w http.ResponseWriter, r *http.Request, svc *catalog.Service) {
	req, err := decodeTaxonomy(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	id, err := svc.AddCardType(r.Context(), req.Name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, createdResponse{ID: id})
}

func CreateCardSizeHandler(w http.ResponseWriter, r *http.Request, svc *catalog.Service) {
	req, err := decodeTaxonomy(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	id, err := svc.AddCardSize(r.Context(), req.Name, req.Width, req.Height)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, createdResponse{ID: id})
}

// LockPhotocardHandler marks a photocard as no longer temporary.
func LockPhotocardHandler(w http.ResponseWriter, r *http.Request, svc *catalog.Service) {
	id, err := urlID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := svc.LockPhotocard(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func urlID(r *http.Request) (uint, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, errs.Validation("invalid id %q", raw)
	}
	return uint(id), nil
}
