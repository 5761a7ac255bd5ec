package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/zuhaib446/nayab-gemstone/internal/catalog/domain"
	"github.com/zuhaib446/nayab-gemstone/internal/catalog/store"
)

type ProductHandler struct {
	catalog store.Store
	timeout time.Duration
	logger  *slog.Logger
}

func NewProductHandler(catalog store.Store, timeout time.Duration, logger *slog.Logger) *ProductHandler {
	return &ProductHandler{catalog: catalog, timeout: timeout, logger: logger}
}

type ProductsResponse struct {
	Products []*domain.Product `json:"products"`
}

// GET /api/v1/products?category=&featured=&min_price=&max_price=&search=
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	filter, err := parseFilter(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_filter", err.Error())
		return
	}

	products, err := h.catalog.ListProducts(ctx, filter)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	if products == nil {
		products = []*domain.Product{}
	}
	respondJSON(w, http.StatusOK, &ProductsResponse{Products: products})
}

// GET /api/v1/products/{id}
func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	p, err := h.catalog.GetProduct(ctx, chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrProductNotFound) {
		respondError(w, http.StatusNotFound, "product_not_found", "product not found")
		return
	}
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

// GET /api/v1/categories
func (h *ProductHandler) Categories(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	categories, err := h.catalog.ListCategories(ctx)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	if categories == nil {
		categories = []*domain.Category{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"categories": categories})
}

func parseFilter(r *http.Request) (domain.Filter, error) {
	q := r.URL.Query()
	f := domain.Filter{
		CategoryID: q.Get("category"),
		Search:     q.Get("search"),
	}
	if v := q.Get("featured"); v != "" {
		featured, err := strconv.ParseBool(v)
		if err != nil {
			return f, errors.New("featured must be true or false")
		}
		f.Featured = featured
	}
	var err error
	if f.MinPrice, err = parsePrice(q.Get("min_price")); err != nil {
		return f, errors.New("min_price must be a non-negative number")
	}
	if f.MaxPrice, err = parsePrice(q.Get("max_price")); err != nil {
		return f, errors.New("max_price must be a non-negative number")
	}
	return f, nil
}

func parsePrice(v string) (decimal.Decimal, error) {
	if v == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero, err
	}
	if d.IsNegative() {
		return decimal.Zero, errors.New("negative price")
	}
	return d, nil
}
