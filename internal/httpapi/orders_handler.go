package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/dquispe/tienda/internal/domain"
	"github.com/dquispe/tienda/internal/orders"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type OrdersHandler struct {
	orders *orders.Service
}

func NewOrdersHandler(svc *orders.Service) *OrdersHandler {
	return &OrdersHandler{orders: svc}
}

type OrderDTO struct {
	ID                 string               `json:"id"`
	CustomerID         string               `json:"customer_id"`
	DeliveryMode       domain.DeliveryMode  `json:"delivery_mode"`
	Address            string               `json:"address,omitempty"`
	Items              []domain.OrderItem   `json:"items"`
	Total              int64                `json:"total"`
	Status             domain.OrderStatus   `json:"status"`
	PaymentMethod      domain.PaymentMethod `json:"payment_method"`
	PaymentEvidenceRef string               `json:"payment_evidence_ref,omitempty"`
	CreatedAt          time.Time            `json:"created_at"`
}

func toOrderDTO(o *domain.Order) OrderDTO {
	return OrderDTO{
		ID:                 o.ID.String(),
		CustomerID:         o.CustomerID,
		DeliveryMode:       o.DeliveryMode,
		Address:            o.Address,
		Items:              o.Items,
		Total:              o.Total,
		Status:             o.Status,
		PaymentMethod:      o.PaymentMethod,
		PaymentEvidenceRef: o.PaymentEvidenceRef,
		CreatedAt:          o.CreatedAt,
	}
}

// List returns the actor's feed: own orders for customers, everything for
// admins. Newest first.
func (h *OrdersHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.orders.List(r.Context(), actorFromContext(r.Context()))
	if err != nil {
		handleError(w, err)
		return
	}

	dtos := make([]OrderDTO, len(list))
	for i, o := range list {
		dtos[i] = toOrderDTO(o)
	}
	respondJSON(w, http.StatusOK, dtos)
}

func (h *OrdersHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_id", "order id must be a UUID")
		return
	}

	order, err := h.orders.Get(r.Context(), id, actorFromContext(r.Context()))
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toOrderDTO(order))
}

type transitionRequest struct {
	Status domain.OrderStatus `json:"status"`
}

// Transition applies an admin status change: payment verification, handoff
// completion, or cancellation.
func (h *OrdersHandler) Transition(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_id", "order id must be a UUID")
		return
	}

	var req transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	order, err := h.orders.Transition(r.Context(), id, req.Status, actorFromContext(r.Context()))
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toOrderDTO(order))
}

// Delete is the administrative purge.
func (h *OrdersHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_id", "order id must be a UUID")
		return
	}

	if err := h.orders.Delete(r.Context(), id, actorFromContext(r.Context())); err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

// Stats serves the admin dashboard aggregates.
func (h *OrdersHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.orders.Stats(r.Context())
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}
