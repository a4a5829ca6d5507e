package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/petermazzocco/photocard-catalog/internal/catalog"
	"github.com/petermazzocco/photocard-catalog/internal/errs"
	"github.com/petermazzocco/photocard-catalog/internal/logger"
)

type errorResponse struct {
	Error string   `json:"error"`
	Kind  string   `json:"kind,omitempty"`
	Stage string   `json:"stage,omitempty"`
	Refs  []string `json:"refs,omitempty"`
}

func statusFor(err error) int {
	if errors.Is(err, catalog.ErrNotFound) {
		return http.StatusNotFound
	}
	switch errs.KindOf(err) {
	case errs.ErrValidation:
		return http.StatusBadRequest
	case errs.ErrUnauthorized:
		return http.StatusForbidden
	case errs.ErrSizeLimit:
		return http.StatusRequestEntityTooLarge
	case errs.ErrDecode:
		return http.StatusUnprocessableEntity
	case errs.ErrAlreadyExists:
		return http.StatusConflict
	case errs.ErrPartialUpload:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func newErrorResponse(err error) errorResponse {
	resp := errorResponse{Error: err.Error(), Refs: errs.Refs(err)}
	if kind := errs.KindOf(err); kind != nil {
		resp.Kind = kind.Error()
	}
	var se *errs.StageError
	if errors.As(err, &se) {
		resp.Stage = se.Stage
	}
	return resp
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	entry := logger.For(r.Context()).WithError(err).WithField("status", status)
	if status >= http.StatusInternalServerError {
		entry.Error("request failed")
	} else {
		entry.Info("request rejected")
	}
	writeJSON(w, status, newErrorResponse(err))
}

// CleanURL escapes spaces and normalises the result when it parses as a URL.
func CleanURL(urlStr string) string {
	urlStr = strings.ReplaceAll(urlStr, " ", "%20")
	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return urlStr
	}

	return parsedURL.String()
}

// publicURL joins a blob key onto the bucket's public base URL. It returns "" when no base is set.
func publicURL(base, key string) string {
	if base == "" {
		return ""
	}
	return CleanURL(strings.TrimRight(base, "/") + "/" + key)
}
