package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/zuhaib446/nayab-gemstone/internal/cart/domain"
	"github.com/zuhaib446/nayab-gemstone/internal/cart/service"
	cartstore "github.com/zuhaib446/nayab-gemstone/internal/cart/store"
	catalogstore "github.com/zuhaib446/nayab-gemstone/internal/catalog/store"
)

type CartHandler struct {
	carts   cartstore.Store
	catalog catalogstore.Store
	timeout time.Duration
	logger  *slog.Logger
}

func NewCartHandler(carts cartstore.Store, catalog catalogstore.Store, timeout time.Duration, logger *slog.Logger) *CartHandler {
	return &CartHandler{carts: carts, catalog: catalog, timeout: timeout, logger: logger}
}

// AddItemRequestDTO adds Quantity units, or one unit when Quantity is omitted.
type AddItemRequestDTO struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity,omitempty"`
}

type UpdateQuantityRequestDTO struct {
	Quantity int `json:"quantity"`
}

func (h *CartHandler) engine(ctx context.Context) *service.Engine {
	return service.NewEngine(ctx, h.carts, sessionFromContext(ctx), h.logger)
}

// GET /api/v1/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	respondJSON(w, http.StatusOK, h.engine(ctx).Snapshot())
}

// POST /api/v1/cart/items
//
// Quantities are capped at the product's stock; adding a sold out product
// leaves the cart as it was.
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req AddItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.ProductID == "" {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id is required")
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	if req.Quantity < 0 {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be positive")
		return
	}

	p, err := h.catalog.GetProduct(ctx, req.ProductID)
	if errors.Is(err, catalogstore.ErrProductNotFound) {
		respondError(w, http.StatusNotFound, "product_not_found", "product not found")
		return
	}
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	state, err := h.engine(ctx).AddItem(ctx, domain.Product{
		ID:    p.ID,
		Name:  p.Name,
		Price: p.Price,
		Image: p.PrimaryImage(),
		Stock: p.Stock,
	}, req.Quantity)
	if err != nil {
		h.persistFailed(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, state)
}

// PUT /api/v1/cart/items/{product_id}
//
// The quantity is clamped into [0, stock]; 0 removes the line.
func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req UpdateQuantityRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	state, err := h.engine(ctx).SetQuantity(ctx, chi.URLParam(r, "product_id"), req.Quantity)
	if err != nil {
		h.persistFailed(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, state)
}

// DELETE /api/v1/cart/items/{product_id}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	state, err := h.engine(ctx).RemoveItem(ctx, chi.URLParam(r, "product_id"))
	if err != nil {
		h.persistFailed(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, state)
}

// DELETE /api/v1/cart
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	state, err := h.engine(ctx).Clear(ctx)
	if err != nil {
		h.persistFailed(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, state)
}

func (h *CartHandler) persistFailed(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.ErrorContext(r.Context(), "cart update not saved", "error", err)
	respondError(w, http.StatusServiceUnavailable, "cart_unavailable", "cart could not be saved, please retry")
}
