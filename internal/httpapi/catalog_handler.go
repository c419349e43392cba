package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/dquispe/tienda/internal/catalog"
	"github.com/dquispe/tienda/internal/domain"
	"github.com/go-chi/chi/v5"
)

type CatalogHandler struct {
	catalog *catalog.Service
}

func NewCatalogHandler(cat *catalog.Service) *CatalogHandler {
	return &CatalogHandler{catalog: cat}
}

type ProductDTO struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Category    string  `json:"category"`
	Price       int64   `json:"price"`
	Stock       int64   `json:"stock"`
	ImageURL    string  `json:"image_url,omitempty"`
	OfferActive bool    `json:"offer_active"`
	OfferPrice  *int64  `json:"offer_price,omitempty"`
	OfferStart  *string `json:"offer_start,omitempty"`
	OfferEnd    *string `json:"offer_end,omitempty"`
	LowStock    bool    `json:"low_stock"`
}

func toProductDTO(p *domain.Product) ProductDTO {
	return ProductDTO{
		ID:          p.ID,
		Name:        p.Name,
		Category:    p.Category,
		Price:       p.Price,
		Stock:       p.Stock,
		ImageURL:    p.ImageURL,
		OfferActive: p.OfferActive,
		OfferPrice:  p.OfferPrice,
		OfferStart:  p.OfferStart,
		OfferEnd:    p.OfferEnd,
		LowStock:    p.Stock < domain.LowStockThreshold,
	}
}

func (dto *ProductDTO) toDomain() *domain.Product {
	return &domain.Product{
		ID:          dto.ID,
		Name:        dto.Name,
		Category:    dto.Category,
		Price:       dto.Price,
		Stock:       dto.Stock,
		ImageURL:    dto.ImageURL,
		OfferActive: dto.OfferActive,
		OfferPrice:  dto.OfferPrice,
		OfferStart:  dto.OfferStart,
		OfferEnd:    dto.OfferEnd,
	}
}

// List is the public catalog read.
func (h *CatalogHandler) List(w http.ResponseWriter, r *http.Request) {
	products, err := h.catalog.List(r.Context())
	if err != nil {
		handleError(w, err)
		return
	}

	dtos := make([]ProductDTO, len(products))
	for i, p := range products {
		dtos[i] = toProductDTO(p)
	}
	respondJSON(w, http.StatusOK, dtos)
}

// Create adds a product (admin).
func (h *CatalogHandler) Create(w http.ResponseWriter, r *http.Request) {
	var dto ProductDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	p := dto.toDomain()
	p.ID = 0
	if err := h.catalog.Create(r.Context(), p); err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, toProductDTO(p))
}

// Update overwrites a product (admin).
func (h *CatalogHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_id", "product id must be an integer")
		return
	}

	var dto ProductDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	p := dto.toDomain()
	p.ID = id
	if err := h.catalog.Update(r.Context(), p); err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toProductDTO(p))
}

// Delete removes a product (admin).
func (h *CatalogHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_id", "product id must be an integer")
		return
	}

	if err := h.catalog.Delete(r.Context(), id); err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}
