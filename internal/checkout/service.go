package checkout

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/zuhaib446/nayab-gemstone/internal/auth"
	catalogdomain "github.com/zuhaib446/nayab-gemstone/internal/catalog/domain"
	catalogstore "github.com/zuhaib446/nayab-gemstone/internal/catalog/store"
	"github.com/zuhaib446/nayab-gemstone/internal/orders/domain"
	"github.com/zuhaib446/nayab-gemstone/internal/orders/repository"
	"github.com/zuhaib446/nayab-gemstone/pkg/metrics"
)

// Inventory is the catalog surface order placement needs.
type Inventory interface {
	GetProduct(ctx context.Context, id string) (*catalogdomain.Product, error)
	DecrementStock(ctx context.Context, items []catalogdomain.StockAdjustment) error
	RestoreStock(ctx context.Context, items []catalogdomain.StockAdjustment) error
}

type Line struct {
	ProductID string
	Quantity  int
	UnitPrice decimal.Decimal
}

type PlaceOrderRequest struct {
	Lines           []Line
	ShippingAddress domain.Address
	PaymentMethod   string
	PaymentIntentID string
	PaymentStatus   domain.PaymentStatus
}

// Outcome labels for the order placement counter.
const (
	OutcomeSuccess       = "success"
	OutcomeUnauthorized  = "unauthenticated"
	OutcomeInvalid       = "validation_error"
	OutcomeNotFound      = "not_found"
	OutcomeInsufficient  = "insufficient_stock"
	OutcomeConflict      = "conflict"
	OutcomePersistenceKO = "persistence_error"
)

type Service struct {
	inventory Inventory
	orders    repository.Repository
	currency  string
	metrics   *metrics.ServerMetrics
	logger    *slog.Logger
	now       func() time.Time
}

func NewService(inventory Inventory, orders repository.Repository, currency string, m *metrics.ServerMetrics, logger *slog.Logger) *Service {
	return &Service{
		inventory: inventory,
		orders:    orders,
		currency:  currency,
		metrics:   m,
		logger:    logger,
		now:       time.Now,
	}
}

// PlaceOrder validates every line against live stock, takes the stock with
// one all-or-nothing conditional decrement and then writes the order. If the
// order write fails the stock is given back, so a failed call leaves
// inventory as it found it.
func (s *Service) PlaceOrder(ctx context.Context, user *auth.Identity, req PlaceOrderRequest) (*domain.Order, error) {
	order, err := s.placeOrder(ctx, user, req)
	s.metrics.ObserveOrder(outcomeOf(err))
	return order, err
}

func (s *Service) placeOrder(ctx context.Context, user *auth.Identity, req PlaceOrderRequest) (*domain.Order, error) {
	if user == nil || user.ID == "" {
		return nil, ErrUnauthenticated
	}

	paymentStatus, err := validateRequest(&req)
	if err != nil {
		return nil, err
	}
	adjustments := mergeLines(req.Lines)

	// validation pass, read only
	products := make(map[string]*catalogdomain.Product, len(adjustments))
	for _, adj := range adjustments {
		p, err := s.inventory.GetProduct(ctx, adj.ProductID)
		if errors.Is(err, catalogstore.ErrProductNotFound) {
			return nil, &NotFoundError{ProductID: adj.ProductID}
		}
		if err != nil {
			return nil, &PersistenceError{Op: "read product", Err: err}
		}
		if p.Stock < adj.Quantity {
			return nil, &StockInsufficientError{
				ProductID: adj.ProductID,
				Requested: adj.Quantity,
				Available: p.Stock,
			}
		}
		products[adj.ProductID] = p
	}

	now := s.now().UTC()
	order := &domain.Order{
		ID:              uuid.New(),
		UserID:          user.ID,
		Items:           make([]domain.OrderItem, 0, len(req.Lines)),
		Currency:        s.currency,
		Status:          domain.OrderStatusPending,
		PaymentStatus:   paymentStatus,
		PaymentMethod:   req.PaymentMethod,
		PaymentIntentID: req.PaymentIntentID,
		ShippingAddress: req.ShippingAddress,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	for _, line := range req.Lines {
		p := products[line.ProductID]
		order.Items = append(order.Items, domain.OrderItem{
			ProductID:   line.ProductID,
			ProductName: p.Name,
			Image:       p.PrimaryImage(),
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
		})
	}
	order.Total = domain.ComputeTotal(order.Items)

	if err := s.inventory.DecrementStock(ctx, adjustments); err != nil {
		return nil, decrementError(err)
	}

	if err := s.orders.CreateOrder(ctx, order); err != nil {
		s.compensate(ctx, order.ID, adjustments)
		return nil, &PersistenceError{Op: "create order", Err: err}
	}

	s.logger.InfoContext(ctx, "order placed",
		"order_id", order.ID,
		"user_id", order.UserID,
		"items", len(order.Items),
		"total", order.Total.String(),
	)
	return order, nil
}

// compensate returns stock taken for an order that could not be written.
func (s *Service) compensate(ctx context.Context, orderID uuid.UUID, adjustments []catalogdomain.StockAdjustment) {
	restoreCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := s.inventory.RestoreStock(restoreCtx, adjustments); err != nil {
		s.logger.ErrorContext(ctx, "failed to restore stock after order write failure",
			"order_id", orderID, "adjustments", adjustments, "error", err)
	}
}

func decrementError(err error) error {
	var stockErr *catalogstore.StockError
	if !errors.As(err, &stockErr) {
		return &PersistenceError{Op: "decrement stock", Err: err}
	}
	if errors.Is(stockErr, catalogstore.ErrProductNotFound) {
		return &NotFoundError{ProductID: stockErr.ProductID}
	}
	return &ConcurrencyConflictError{
		ProductID: stockErr.ProductID,
		Requested: stockErr.Requested,
		Available: stockErr.Available,
	}
}

func validateRequest(req *PlaceOrderRequest) (domain.PaymentStatus, error) {
	if len(req.Lines) == 0 {
		return "", &ValidationError{Field: "lines", Reason: "at least one line item is required"}
	}
	for _, line := range req.Lines {
		if line.ProductID == "" {
			return "", &ValidationError{Field: "product_id", Reason: "is required"}
		}
		if line.Quantity <= 0 {
			return "", &ValidationError{Field: "quantity", Reason: "must be greater than 0 for product " + line.ProductID}
		}
		if line.UnitPrice.IsNegative() {
			return "", &ValidationError{Field: "unit_price", Reason: "must not be negative for product " + line.ProductID}
		}
	}
	if !req.ShippingAddress.Complete() {
		return "", &ValidationError{Field: "shipping_address", Reason: "street, city, state, zip code and country are required"}
	}

	if req.PaymentMethod == "" {
		req.PaymentMethod = "card"
	}

	status := req.PaymentStatus
	if status == "" {
		status = domain.PaymentStatusPending
	}
	if !status.Valid() {
		return "", &ValidationError{Field: "payment_status", Reason: "unknown value " + string(status)}
	}
	if status == domain.PaymentStatusCompleted && req.PaymentIntentID == "" {
		return "", &ValidationError{Field: "payment_intent_id", Reason: "is required when payment is completed"}
	}
	return status, nil
}

// mergeLines sums quantities per product so stock is checked against the
// whole order, in first-seen order.
func mergeLines(lines []Line) []catalogdomain.StockAdjustment {
	out := make([]catalogdomain.StockAdjustment, 0, len(lines))
	index := make(map[string]int, len(lines))
	for _, line := range lines {
		if i, ok := index[line.ProductID]; ok {
			out[i].Quantity += line.Quantity
			continue
		}
		index[line.ProductID] = len(out)
		out = append(out, catalogdomain.StockAdjustment{ProductID: line.ProductID, Quantity: line.Quantity})
	}
	return out
}

func outcomeOf(err error) string {
	var (
		validation *ValidationError
		notFound   *NotFoundError
		short      *StockInsufficientError
		conflict   *ConcurrencyConflictError
	)
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, ErrUnauthenticated):
		return OutcomeUnauthorized
	case errors.As(err, &validation):
		return OutcomeInvalid
	case errors.As(err, &notFound):
		return OutcomeNotFound
	case errors.As(err, &short):
		return OutcomeInsufficient
	case errors.As(err, &conflict):
		return OutcomeConflict
	default:
		return OutcomePersistenceKO
	}
}
