package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/zuhaib446/nayab-gemstone/internal/auth"
	"github.com/zuhaib446/nayab-gemstone/internal/cart/service"
	cartstore "github.com/zuhaib446/nayab-gemstone/internal/cart/store"
	"github.com/zuhaib446/nayab-gemstone/internal/checkout"
	"github.com/zuhaib446/nayab-gemstone/internal/orders/domain"
	"github.com/zuhaib446/nayab-gemstone/internal/orders/repository"
)

type OrdersHandler struct {
	checkout *checkout.Service
	orders   repository.Repository
	carts    cartstore.Store
	timeout  time.Duration
	logger   *slog.Logger
}

func NewOrdersHandler(svc *checkout.Service, orders repository.Repository, carts cartstore.Store, timeout time.Duration, logger *slog.Logger) *OrdersHandler {
	return &OrdersHandler{checkout: svc, orders: orders, carts: carts, timeout: timeout, logger: logger}
}

type OrderLineDTO struct {
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

type PlaceOrderRequestDTO struct {
	Items           []OrderLineDTO       `json:"items"`
	ShippingAddress domain.Address       `json:"shipping_address"`
	PaymentMethod   string               `json:"payment_method"`
	PaymentIntentID string               `json:"payment_intent_id"`
	PaymentStatus   domain.PaymentStatus `json:"payment_status"`
}

type UpdateOrderRequestDTO struct {
	Status         *domain.OrderStatus   `json:"status"`
	PaymentStatus  *domain.PaymentStatus `json:"payment_status"`
	TrackingNumber *string               `json:"tracking_number"`
}

type OrdersResponse struct {
	Orders []*domain.Order `json:"orders"`
}

// POST /api/v1/orders
//
// Without items the order is placed from the session cart. The session cart
// is cleared only once the order exists.
func (h *OrdersHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	user, _ := auth.FromContext(r.Context())

	var req PlaceOrderRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	engine := service.NewEngine(ctx, h.carts, sessionFromContext(ctx), h.logger)

	lines := make([]checkout.Line, 0, len(req.Items))
	for _, item := range req.Items {
		lines = append(lines, checkout.Line{ProductID: item.ProductID, Quantity: item.Quantity, UnitPrice: item.Price})
	}
	if len(lines) == 0 {
		for _, l := range engine.Snapshot().Lines {
			lines = append(lines, checkout.Line{ProductID: l.ProductID, Quantity: l.Quantity, UnitPrice: l.UnitPrice})
		}
	}

	order, err := h.checkout.PlaceOrder(ctx, user, checkout.PlaceOrderRequest{
		Lines:           lines,
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
		PaymentIntentID: req.PaymentIntentID,
		PaymentStatus:   req.PaymentStatus,
	})
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	if _, err := engine.Clear(ctx); err != nil {
		h.logger.WarnContext(ctx, "order placed but cart not cleared", "order_id", order.ID, "error", err)
	}
	respondJSON(w, http.StatusCreated, order)
}

// GET /api/v1/orders
func (h *OrdersHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	user, _ := auth.FromContext(r.Context())

	var (
		orders []*domain.Order
		err    error
	)
	if user.IsAdmin() {
		orders, err = h.orders.ListOrders(ctx)
	} else {
		orders, err = h.orders.ListOrdersByUserID(ctx, user.ID)
	}
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	if orders == nil {
		orders = []*domain.Order{}
	}
	respondJSON(w, http.StatusOK, &OrdersResponse{Orders: orders})
}

// GET /api/v1/orders/{order_id}
func (h *OrdersHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	user, _ := auth.FromContext(r.Context())

	id, ok := parseOrderID(w, r)
	if !ok {
		return
	}

	order, err := h.orders.GetOrderByID(ctx, id)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	// other users' orders look the same as missing ones
	if !user.IsAdmin() && order.UserID != user.ID {
		respondError(w, http.StatusNotFound, "order_not_found", "order not found")
		return
	}
	respondJSON(w, http.StatusOK, order)
}

// PUT /api/v1/admin/orders/{order_id}
func (h *OrdersHandler) UpdateOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := parseOrderID(w, r)
	if !ok {
		return
	}

	var req UpdateOrderRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Status == nil && req.PaymentStatus == nil && req.TrackingNumber == nil {
		respondError(w, http.StatusBadRequest, "empty_update", "nothing to update")
		return
	}

	order, err := h.orders.UpdateOrderStatus(ctx, id, domain.StatusUpdate{
		Status:         req.Status,
		PaymentStatus:  req.PaymentStatus,
		TrackingNumber: req.TrackingNumber,
	})
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	h.logger.InfoContext(ctx, "order updated", "order_id", order.ID, "status", order.Status, "payment_status", order.PaymentStatus)
	respondJSON(w, http.StatusOK, order)
}

func parseOrderID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "order_id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_order_id", "order_id must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}
