package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/safar/hive-store/internal/store"
	"github.com/safar/hive-store/internal/verification"
	"github.com/sirupsen/logrus"
)

func respondJSON(w http.ResponseWriter, log logrus.FieldLogger, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.WithError(err).Error("encode JSON response")
	}
}

func respondError(w http.ResponseWriter, log logrus.FieldLogger, status int, message string) {
	respondJSON(w, log, status, map[string]string{"error": message})
}

// respondStoreError maps a service error onto a status code. A product
// missing from a cart is the caller's mistake and reported as 400; a missing
// resource addressed by the URL is 404.
func respondStoreError(w http.ResponseWriter, log logrus.FieldLogger, err error, notFoundMessage string) {
	var (
		productMissing *store.ProductNotFoundError
		insufficient   *store.InsufficientStockError
		invalid        *store.ValidationError
	)

	switch {
	case errors.As(err, &productMissing):
		respondError(w, log, http.StatusBadRequest, err.Error())
	case errors.As(err, &insufficient):
		respondError(w, log, http.StatusBadRequest, err.Error())
	case errors.As(err, &invalid):
		respondError(w, log, http.StatusBadRequest, invalid.Error())
	case errors.Is(err, store.ErrInsufficientStock):
		respondError(w, log, http.StatusBadRequest, "Insufficient stock")
	case errors.Is(err, verification.ErrInvalidCode):
		respondError(w, log, http.StatusBadRequest, "Invalid code")
	case errors.Is(err, verification.ErrExpiredCode):
		respondError(w, log, http.StatusBadRequest, "Code expired")
	case errors.Is(err, store.ErrNotFound):
		respondError(w, log, http.StatusNotFound, notFoundMessage)
	case errors.Is(err, store.ErrConflict):
		respondError(w, log, http.StatusConflict, "Already exists")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		respondError(w, log, http.StatusServiceUnavailable, "Request canceled")
	default:
		log.WithError(err).Error("request failed")
		respondError(w, log, http.StatusInternalServerError, "Internal server error")
	}
}
