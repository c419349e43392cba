package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"sync"

	"github.com/dquispe/tienda/internal/cart"
	"github.com/dquispe/tienda/internal/catalog"
	"github.com/dquispe/tienda/internal/checkout"
	"github.com/dquispe/tienda/internal/domain"
	"github.com/go-chi/chi/v5"
)

// CartHandler keeps one cart per customer session. Carts live only in this
// process and are discarded after checkout; they are deliberately not
// persisted.
type CartHandler struct {
	catalog  *catalog.Service
	checkout *checkout.Service

	mu    sync.Mutex
	carts map[string]*cart.Cart
}

func NewCartHandler(cat *catalog.Service, co *checkout.Service) *CartHandler {
	return &CartHandler{
		catalog:  cat,
		checkout: co,
		carts:    make(map[string]*cart.Cart),
	}
}

func (h *CartHandler) cartFor(customerID string) *cart.Cart {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, exists := h.carts[customerID]
	if !exists {
		c = cart.New(customerID)
		h.carts[customerID] = c
	}
	return c
}

func (h *CartHandler) discard(customerID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.carts, customerID)
}

type CartItemDTO struct {
	ProductID   int64  `json:"product_id"`
	ProductName string `json:"product_name"`
	UnitPrice   int64  `json:"unit_price"`
	Quantity    int64  `json:"quantity"`
}

type CartDTO struct {
	Items        []CartItemDTO       `json:"items"`
	DeliveryMode domain.DeliveryMode `json:"delivery_mode"`
	Address      string              `json:"address,omitempty"`
	Subtotal     int64               `json:"subtotal"`
	Total        int64               `json:"total"`
	LowStock     bool                `json:"low_stock,omitempty"`
}

func toCartDTO(c *cart.Cart, lowStock bool) CartDTO {
	items := c.Items()
	dtos := make([]CartItemDTO, len(items))
	for i, it := range items {
		dtos[i] = CartItemDTO{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			UnitPrice:   it.UnitPrice,
			Quantity:    it.Quantity,
		}
	}
	return CartDTO{
		Items:        dtos,
		DeliveryMode: c.DeliveryMode(),
		Address:      c.Address(),
		Subtotal:     c.Subtotal(),
		Total:        c.Total(),
		LowStock:     lowStock,
	}
}

func (h *CartHandler) Get(w http.ResponseWriter, r *http.Request) {
	c := h.cartFor(actorFromContext(r.Context()).ID)

	h.mu.Lock()
	dto := toCartDTO(c, false)
	h.mu.Unlock()
	respondJSON(w, http.StatusOK, dto)
}

type addItemRequest struct {
	ProductID int64 `json:"product_id"`
	Quantity  int64 `json:"quantity"`
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	p, err := h.catalog.Get(r.Context(), req.ProductID)
	if err != nil {
		handleError(w, err)
		return
	}

	c := h.cartFor(actorFromContext(r.Context()).ID)

	h.mu.Lock()
	lowStock, err := c.Add(p, req.Quantity)
	if err != nil {
		h.mu.Unlock()
		handleError(w, err)
		return
	}
	dto := toCartDTO(c, lowStock)
	h.mu.Unlock()

	respondJSON(w, http.StatusCreated, dto)
}

type setQuantityRequest struct {
	Quantity int64 `json:"quantity"`
}

func (h *CartHandler) SetQuantity(w http.ResponseWriter, r *http.Request) {
	productID, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_id", "product id must be an integer")
		return
	}

	var req setQuantityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	c := h.cartFor(actorFromContext(r.Context()).ID)

	h.mu.Lock()
	if err := c.SetQuantity(productID, req.Quantity); err != nil {
		h.mu.Unlock()
		handleError(w, err)
		return
	}
	dto := toCartDTO(c, false)
	h.mu.Unlock()

	respondJSON(w, http.StatusOK, dto)
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	productID, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_id", "product id must be an integer")
		return
	}

	c := h.cartFor(actorFromContext(r.Context()).ID)

	h.mu.Lock()
	c.Remove(productID)
	dto := toCartDTO(c, false)
	h.mu.Unlock()

	respondJSON(w, http.StatusOK, dto)
}

type setDeliveryRequest struct {
	Mode    domain.DeliveryMode `json:"mode"`
	Address string              `json:"address"`
}

func (h *CartHandler) SetDelivery(w http.ResponseWriter, r *http.Request) {
	var req setDeliveryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Mode != domain.DeliveryModeDelivery && req.Mode != domain.DeliveryModePickup {
		respondError(w, http.StatusBadRequest, "invalid_request", "mode must be delivery or pickup")
		return
	}

	c := h.cartFor(actorFromContext(r.Context()).ID)

	h.mu.Lock()
	c.SetDelivery(req.Mode, req.Address)
	dto := toCartDTO(c, false)
	h.mu.Unlock()

	respondJSON(w, http.StatusOK, dto)
}

type checkoutRequest struct {
	PaymentMethod      domain.PaymentMethod `json:"payment_method"`
	PaymentEvidenceRef string               `json:"payment_evidence_ref,omitempty"`
}

type CheckoutResponseDTO struct {
	Order OrderDTO `json:"order"`

	// PriceChanged reports that a price edit or an offer window boundary
	// changed some line between add and submission, so the charged total
	// differs from the total the cart displayed. The order total is
	// authoritative; CartTotal is what the session last saw.
	PriceChanged bool  `json:"price_changed"`
	CartTotal    int64 `json:"cart_total"`
}

// Checkout submits the session cart. Quantities come from the cart; unit
// prices are re-resolved at submission time by the checkout service, and the
// response flags when that re-pricing moved the total. On success the cart
// is discarded.
func (h *CartHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	customerID := actorFromContext(r.Context()).ID
	c := h.cartFor(customerID)

	h.mu.Lock()
	lines := make([]checkout.Line, 0, c.Len())
	for _, it := range c.Items() {
		lines = append(lines, checkout.Line{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	mode, address := c.DeliveryMode(), c.Address()
	cartTotal := c.Total()
	h.mu.Unlock()

	order, err := h.checkout.Checkout(r.Context(), &checkout.Request{
		CustomerID:         customerID,
		DeliveryMode:       mode,
		Address:            address,
		Lines:              lines,
		PaymentMethod:      req.PaymentMethod,
		PaymentEvidenceRef: req.PaymentEvidenceRef,
	})
	if err != nil {
		handleError(w, err)
		return
	}

	h.discard(customerID)
	respondJSON(w, http.StatusCreated, CheckoutResponseDTO{
		Order:        toOrderDTO(order),
		PriceChanged: order.Total != cartTotal,
		CartTotal:    cartTotal,
	})
}
