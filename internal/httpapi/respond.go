package httpapi

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/dquispe/tienda/internal/cart"
	"github.com/dquispe/tienda/internal/checkout"
	"github.com/dquispe/tienda/internal/domain"
	"github.com/dquispe/tienda/internal/orders"
	"github.com/dquispe/tienda/internal/store"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("httpapi: failed to encode response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{Error: message, Code: code})
}

// handleError maps domain and service errors onto HTTP status codes.
func handleError(w http.ResponseWriter, err error) {
	var (
		validation   *domain.ValidationError
		transition   *domain.InvalidTransitionError
		insufficient *store.InsufficientStockError
		outOfStock   *checkout.OutOfStockError
	)

	switch {
	case errors.As(err, &validation):
		respondError(w, http.StatusBadRequest, "validation_error", validation.Error())
	case errors.As(err, &outOfStock):
		respondJSON(w, http.StatusConflict, ErrorResponse{
			Error:   outOfStock.Error(),
			Code:    "out_of_stock",
			Details: outOfStock.Shortfalls,
		})
	case errors.As(err, &insufficient):
		respondJSON(w, http.StatusConflict, ErrorResponse{
			Error:   insufficient.Error(),
			Code:    "out_of_stock",
			Details: []store.InsufficientStockError{*insufficient},
		})
	case errors.As(err, &transition):
		respondError(w, http.StatusConflict, "invalid_transition", transition.Error())
	case errors.Is(err, checkout.ErrEmptyCart):
		respondError(w, http.StatusBadRequest, "empty_cart", err.Error())
	case errors.Is(err, cart.ErrInvalidQuantity), errors.Is(err, cart.ErrItemNotFound):
		respondError(w, http.StatusBadRequest, "invalid_cart_item", err.Error())
	case errors.Is(err, orders.ErrForbidden):
		respondError(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, store.ErrProductNotFound), errors.Is(err, store.ErrOrderNotFound):
		respondError(w, http.StatusNotFound, "not_found", err.Error())
	default:
		log.Printf("httpapi: internal error: %v", err)
		respondError(w, http.StatusInternalServerError, "internal", "internal server error")
	}
}
