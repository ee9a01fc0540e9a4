package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"penguin-ternos-backend/internal/cache"
	"penguin-ternos-backend/internal/domain"
	"penguin-ternos-backend/internal/logger"
)

type errorResponse struct {
	Error     string `json:"error"`
	Field     string `json:"field,omitempty"`
	ItemID    int64  `json:"item_id,omitempty"`
	ItemName  string `json:"item_name,omitempty"`
	Available *int   `json:"available,omitempty"`
	Requested *int   `json:"requested,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Error encoding response", "error", err)
	}
}

// writeError maps domain errors to status codes. Anything unrecognised is a 500
// and its message is not echoed to the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		valErr   *domain.ValidationError
		stockErr *domain.InsufficientStockError
	)
	switch {
	case errors.As(err, &stockErr):
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error:     stockErr.Error(),
			ItemID:    stockErr.ItemID,
			ItemName:  stockErr.ItemName,
			Available: &stockErr.Available,
			Requested: &stockErr.Requested,
		})
	case errors.As(err, &valErr):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: valErr.Message, Field: valErr.Field})
	case errors.Is(err, domain.ErrReturnWindowExpired):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case domain.IsNotFound(err):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, cache.ErrInFlight):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	case errors.Is(err, cache.ErrKeyReused):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error()})
	default:
		logger.ErrorContext(r.Context(), "Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
	}
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		return domain.NewValidationError("body", "invalid JSON: %v", err)
	}
	return nil
}

func pathID(r *http.Request, name string) (int64, error) {
	raw := mux.Vars(r)[name]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.NewValidationError(name, "invalid id %q", raw)
	}
	return id, nil
}
