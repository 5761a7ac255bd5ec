package checkout

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/zuhaib446/nayab-gemstone/internal/auth"
	catalogdomain "github.com/zuhaib446/nayab-gemstone/internal/catalog/domain"
	catalogstore "github.com/zuhaib446/nayab-gemstone/internal/catalog/store"
	"github.com/zuhaib446/nayab-gemstone/internal/orders/domain"
	"github.com/zuhaib446/nayab-gemstone/internal/orders/repository"
	"github.com/zuhaib446/nayab-gemstone/pkg/logger"
	"github.com/zuhaib446/nayab-gemstone/pkg/metrics"
)

var (
	customer = &auth.Identity{ID: "user-1", Role: auth.RoleCustomer}
	address  = domain.Address{Street: "12 Mall Road", City: "Lahore", State: "Punjab", ZipCode: "54000", Country: "PK"}
)

type fixture struct {
	catalog *catalogstore.MemoryStore
	orders  *repository.MemoryRepository
	metrics *metrics.ServerMetrics
	svc     *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		catalog: catalogstore.NewMemoryStore(),
		orders:  repository.NewMemoryRepository(),
		metrics: metrics.NewServerMetrics(prometheus.NewRegistry(), "test"),
	}
	f.svc = NewService(f.catalog, f.orders, "USD", f.metrics, logger.Discard())
	return f
}

func (f *fixture) product(t *testing.T, name, price string, stock int) string {
	t.Helper()
	p := &catalogdomain.Product{
		Name:      name,
		Price:     decimal.RequireFromString(price),
		Images:    []string{"/img/" + name + ".jpg"},
		Stock:     stock,
		CreatedAt: time.Now(),
	}
	require.NoError(t, f.catalog.UpsertProduct(context.Background(), p))
	return p.ID
}

func (f *fixture) stock(t *testing.T, id string) int {
	t.Helper()
	p, err := f.catalog.GetProduct(context.Background(), id)
	require.NoError(t, err)
	return p.Stock
}

func (f *fixture) restock(t *testing.T, id string, stock int) {
	t.Helper()
	p, err := f.catalog.GetProduct(context.Background(), id)
	require.NoError(t, err)
	p.Stock = stock
	require.NoError(t, f.catalog.UpsertProduct(context.Background(), p))
}

func line(id string, qty int, price string) Line {
	return Line{ProductID: id, Quantity: qty, UnitPrice: decimal.RequireFromString(price)}
}

func TestPlaceOrder_Success(t *testing.T) {
	f := newFixture(t)
	ruby := f.product(t, "ruby", "100", 5)
	opal := f.product(t, "opal", "50", 2)

	order, err := f.svc.PlaceOrder(context.Background(), customer, PlaceOrderRequest{
		Lines:           []Line{line(ruby, 2, "100"), line(opal, 1, "50")},
		ShippingAddress: address,
	})
	require.NoError(t, err)

	assert.Equal(t, "user-1", order.UserID)
	assert.Equal(t, domain.OrderStatusPending, order.Status)
	assert.Equal(t, domain.PaymentStatusPending, order.PaymentStatus)
	assert.Equal(t, "card", order.PaymentMethod)
	assert.Equal(t, "USD", order.Currency)
	assert.True(t, decimal.NewFromInt(250).Equal(order.Total), "total %s", order.Total)
	require.Len(t, order.Items, 2)
	assert.Equal(t, "ruby", order.Items[0].ProductName)
	assert.Equal(t, "/img/ruby.jpg", order.Items[0].Image)

	assert.Equal(t, 3, f.stock(t, ruby))
	assert.Equal(t, 1, f.stock(t, opal))

	stored, err := f.orders.GetOrderByID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, stored.ID)

	events, err := f.orders.GetUnprocessedEvents(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventOrderPlaced, events[0].EventType)
	assert.Equal(t, order.ID.String(), events[0].AggregateID)

	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.Orders.WithLabelValues(OutcomeSuccess)))
}

func TestPlaceOrder_ChargesSuppliedUnitPrice(t *testing.T) {
	f := newFixture(t)
	id := f.product(t, "topaz", "80", 3)

	order, err := f.svc.PlaceOrder(context.Background(), customer, PlaceOrderRequest{
		Lines:           []Line{line(id, 2, "75.50")},
		ShippingAddress: address,
	})
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("151").Equal(order.Total))
}

func TestPlaceOrder_InsufficientStockTouchesNothing(t *testing.T) {
	f := newFixture(t)
	first := f.product(t, "emerald", "100", 10)
	second := f.product(t, "sapphire", "200", 3)

	_, err := f.svc.PlaceOrder(context.Background(), customer, PlaceOrderRequest{
		Lines:           []Line{line(first, 1, "100"), line(second, 5, "200")},
		ShippingAddress: address,
	})

	var stockErr *StockInsufficientError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, second, stockErr.ProductID)
	assert.Equal(t, 5, stockErr.Requested)
	assert.Equal(t, 3, stockErr.Available)

	assert.Equal(t, 10, f.stock(t, first))
	assert.Equal(t, 3, f.stock(t, second))

	all, err := f.orders.ListOrders(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.Orders.WithLabelValues(OutcomeInsufficient)))
}

func TestPlaceOrder_DuplicateLinesCheckedTogether(t *testing.T) {
	f := newFixture(t)
	id := f.product(t, "garnet", "10", 3)

	_, err := f.svc.PlaceOrder(context.Background(), customer, PlaceOrderRequest{
		Lines:           []Line{line(id, 2, "10"), line(id, 2, "10")},
		ShippingAddress: address,
	})

	var stockErr *StockInsufficientError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, 4, stockErr.Requested)
	assert.Equal(t, 3, f.stock(t, id))
}

func TestPlaceOrder_UnknownProduct(t *testing.T) {
	f := newFixture(t)
	known := f.product(t, "onyx", "10", 3)

	_, err := f.svc.PlaceOrder(context.Background(), customer, PlaceOrderRequest{
		Lines:           []Line{line(known, 1, "10"), line("missing", 1, "10")},
		ShippingAddress: address,
	})

	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "missing", notFound.ProductID)
	assert.Equal(t, 3, f.stock(t, known))
}

func TestPlaceOrder_Unauthenticated(t *testing.T) {
	f := newFixture(t)
	id := f.product(t, "pearl", "10", 3)

	for name, user := range map[string]*auth.Identity{"nil": nil, "blank": {}} {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.PlaceOrder(context.Background(), user, PlaceOrderRequest{
				Lines:           []Line{line(id, 1, "10")},
				ShippingAddress: address,
			})
			assert.ErrorIs(t, err, ErrUnauthenticated)
		})
	}
	assert.Equal(t, 3, f.stock(t, id))
}

func TestPlaceOrder_Validation(t *testing.T) {
	f := newFixture(t)
	id := f.product(t, "jade", "10", 3)

	cases := []struct {
		name  string
		req   PlaceOrderRequest
		field string
	}{
		{"no lines", PlaceOrderRequest{ShippingAddress: address}, "lines"},
		{"zero quantity", PlaceOrderRequest{Lines: []Line{line(id, 0, "10")}, ShippingAddress: address}, "quantity"},
		{"negative price", PlaceOrderRequest{Lines: []Line{line(id, 1, "-1")}, ShippingAddress: address}, "unit_price"},
		{"blank product", PlaceOrderRequest{Lines: []Line{line("", 1, "10")}, ShippingAddress: address}, "product_id"},
		{"incomplete address", PlaceOrderRequest{Lines: []Line{line(id, 1, "10")}, ShippingAddress: domain.Address{City: "Lahore"}}, "shipping_address"},
		{"unknown payment status", PlaceOrderRequest{Lines: []Line{line(id, 1, "10")}, ShippingAddress: address, PaymentStatus: "refunded"}, "payment_status"},
		{"completed without intent", PlaceOrderRequest{Lines: []Line{line(id, 1, "10")}, ShippingAddress: address, PaymentStatus: domain.PaymentStatusCompleted}, "payment_intent_id"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.PlaceOrder(context.Background(), customer, tc.req)
			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tc.field, vErr.Field)
		})
	}
	assert.Equal(t, 3, f.stock(t, id))
}

func TestPlaceOrder_CompletedPayment(t *testing.T) {
	f := newFixture(t)
	id := f.product(t, "amber", "10", 3)

	order, err := f.svc.PlaceOrder(context.Background(), customer, PlaceOrderRequest{
		Lines:           []Line{line(id, 1, "10")},
		ShippingAddress: address,
		PaymentMethod:   "paypal",
		PaymentStatus:   domain.PaymentStatusCompleted,
		PaymentIntentID: "pi_123",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusCompleted, order.PaymentStatus)
	assert.Equal(t, "paypal", order.PaymentMethod)
	assert.Equal(t, "pi_123", order.PaymentIntentID)
}

// failingRepository fails every order write.
type failingRepository struct {
	*repository.MemoryRepository
}

func (failingRepository) CreateOrder(context.Context, *domain.Order) error {
	return errors.New("connection reset")
}

func TestPlaceOrder_OrderWriteFailureRestoresStock(t *testing.T) {
	f := newFixture(t)
	ruby := f.product(t, "ruby", "100", 5)
	opal := f.product(t, "opal", "50", 2)
	svc := NewService(f.catalog, failingRepository{f.orders}, "USD", f.metrics, logger.Discard())

	_, err := svc.PlaceOrder(context.Background(), customer, PlaceOrderRequest{
		Lines:           []Line{line(ruby, 2, "100"), line(opal, 2, "50")},
		ShippingAddress: address,
	})

	var pErr *PersistenceError
	require.ErrorAs(t, err, &pErr)
	assert.Equal(t, "create order", pErr.Op)
	assert.Equal(t, 5, f.stock(t, ruby))
	assert.Equal(t, 2, f.stock(t, opal))
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.Orders.WithLabelValues(OutcomePersistenceKO)))
}

// racingInventory lets another buyer take the stock between the read pass
// and the decrement.
type racingInventory struct {
	*catalogstore.MemoryStore
	once sync.Once
	race func()
}

func (r *racingInventory) DecrementStock(ctx context.Context, items []catalogdomain.StockAdjustment) error {
	r.once.Do(r.race)
	return r.MemoryStore.DecrementStock(ctx, items)
}

func TestPlaceOrder_StockTakenAfterValidation(t *testing.T) {
	f := newFixture(t)
	id := f.product(t, "diamond", "5000", 1)
	inv := &racingInventory{MemoryStore: f.catalog, race: func() {
		f.restock(t, id, 0)
	}}
	svc := NewService(inv, f.orders, "USD", f.metrics, logger.Discard())

	_, err := svc.PlaceOrder(context.Background(), customer, PlaceOrderRequest{
		Lines:           []Line{line(id, 1, "5000")},
		ShippingAddress: address,
	})

	var conflict *ConcurrencyConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, id, conflict.ProductID)
	assert.Equal(t, 0, conflict.Available)
	assert.Equal(t, 0, f.stock(t, id))
}

func TestPlaceOrder_ConcurrentBuyersForLastUnit(t *testing.T) {
	defer goleak.VerifyNone(t)

	f := newFixture(t)
	id := f.product(t, "alexandrite", "900", 1)

	const buyers = 20
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		rejected  int
	)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.PlaceOrder(context.Background(), customer, PlaceOrderRequest{
				Lines:           []Line{line(id, 1, "900")},
				ShippingAddress: address,
			})
			mu.Lock()
			defer mu.Unlock()
			var (
				short    *StockInsufficientError
				conflict *ConcurrencyConflictError
			)
			switch {
			case err == nil:
				successes++
			case errors.As(err, &short), errors.As(err, &conflict):
				rejected++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, buyers-1, rejected)
	assert.Equal(t, 0, f.stock(t, id))

	all, err := f.orders.ListOrders(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestPlaceOrder_CompensationFailureIsLogged(t *testing.T) {
	f := newFixture(t)
	id := f.product(t, "zircon", "10", 2)

	var buf bytes.Buffer
	inv := &brokenRestore{MemoryStore: f.catalog}
	svc := NewService(inv, failingRepository{f.orders}, "USD", nil, logger.New(&buf, "test", "debug"))

	_, err := svc.PlaceOrder(context.Background(), customer, PlaceOrderRequest{
		Lines:           []Line{line(id, 1, "10")},
		ShippingAddress: address,
	})
	var pErr *PersistenceError
	require.ErrorAs(t, err, &pErr)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "failed to restore stock after order write failure", entry["msg"])
	assert.Equal(t, 1, f.stock(t, id))
}

type brokenRestore struct {
	*catalogstore.MemoryStore
}

func (*brokenRestore) RestoreStock(context.Context, []catalogdomain.StockAdjustment) error {
	return errors.New("catalog unavailable")
}
