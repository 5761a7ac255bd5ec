package repository

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zuhaib446/nayab-gemstone/internal/orders/domain"
)

type testRepository interface {
	Repository
	OutboxRepository
}

func newTestOrder(userID string, createdAt time.Time) *domain.Order {
	items := []domain.OrderItem{
		{ProductID: "ruby", ProductName: "Ruby", Quantity: 2, UnitPrice: decimal.RequireFromString("100.25")},
		{ProductID: "opal", ProductName: "Opal", Quantity: 1, UnitPrice: decimal.NewFromInt(50)},
	}
	return &domain.Order{
		ID:            uuid.New(),
		UserID:        userID,
		Items:         items,
		Total:         domain.ComputeTotal(items),
		Currency:      "usd",
		Status:        domain.OrderStatusPending,
		PaymentStatus: domain.PaymentStatusCompleted,
		PaymentMethod: "card",
		ShippingAddress: domain.Address{
			Street: "1 Gem Lane", City: "Colombo", State: "WP", ZipCode: "00100", Country: "LK",
		},
		CreatedAt: createdAt.UTC().Truncate(time.Microsecond),
		UpdatedAt: createdAt.UTC().Truncate(time.Microsecond),
	}
}

func runRepositoryContract(t *testing.T, newRepo func(t *testing.T) testRepository) {
	ctx := context.Background()
	base := time.Now()

	t.Run("CreateAndGet", func(t *testing.T) {
		repo := newRepo(t)
		order := newTestOrder("user-1", base)
		require.NoError(t, repo.CreateOrder(ctx, order))

		fetched, err := repo.GetOrderByID(ctx, order.ID)
		require.NoError(t, err)
		assert.Equal(t, order.ID, fetched.ID)
		assert.Equal(t, order.UserID, fetched.UserID)
		assert.True(t, order.Total.Equal(fetched.Total))
		assert.Equal(t, domain.OrderStatusPending, fetched.Status)
		assert.Equal(t, domain.PaymentStatusCompleted, fetched.PaymentStatus)
		assert.Equal(t, order.ShippingAddress, fetched.ShippingAddress)
		require.Len(t, fetched.Items, 2)
		assert.Equal(t, "ruby", fetched.Items[0].ProductID)
		assert.True(t, order.Items[0].UnitPrice.Equal(fetched.Items[0].UnitPrice))
	})

	t.Run("GetMissing", func(t *testing.T) {
		repo := newRepo(t)
		_, err := repo.GetOrderByID(ctx, uuid.New())
		assert.ErrorIs(t, err, ErrOrderNotFound)
	})

	t.Run("ListNewestFirst", func(t *testing.T) {
		repo := newRepo(t)
		older := newTestOrder("user-1", base.Add(-time.Hour))
		newer := newTestOrder("user-1", base)
		other := newTestOrder("user-2", base.Add(-time.Minute))
		for _, o := range []*domain.Order{older, newer, other} {
			require.NoError(t, repo.CreateOrder(ctx, o))
		}

		mine, err := repo.ListOrdersByUserID(ctx, "user-1")
		require.NoError(t, err)
		require.Len(t, mine, 2)
		assert.Equal(t, newer.ID, mine[0].ID)
		assert.Equal(t, older.ID, mine[1].ID)

		all, err := repo.ListOrders(ctx)
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, newer.ID, all[0].ID)
		assert.Equal(t, other.ID, all[1].ID)

		none, err := repo.ListOrdersByUserID(ctx, "nobody")
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("UpdateOrderStatus", func(t *testing.T) {
		repo := newRepo(t)
		order := newTestOrder("user-1", base)
		require.NoError(t, repo.CreateOrder(ctx, order))

		shipped := domain.OrderStatusShipped
		tracking := "TRK-42"
		updated, err := repo.UpdateOrderStatus(ctx, order.ID, domain.StatusUpdate{
			Status:         &shipped,
			TrackingNumber: &tracking,
		})
		require.NoError(t, err)
		assert.Equal(t, shipped, updated.Status)

		fetched, err := repo.GetOrderByID(ctx, order.ID)
		require.NoError(t, err)
		assert.Equal(t, shipped, fetched.Status)
		assert.Equal(t, tracking, fetched.TrackingNumber)
		assert.Len(t, fetched.Items, 2)
	})

	t.Run("UpdateTerminalRejected", func(t *testing.T) {
		repo := newRepo(t)
		order := newTestOrder("user-1", base)
		order.Status = domain.OrderStatusCancelled
		require.NoError(t, repo.CreateOrder(ctx, order))

		processing := domain.OrderStatusProcessing
		_, err := repo.UpdateOrderStatus(ctx, order.ID, domain.StatusUpdate{Status: &processing})
		assert.ErrorIs(t, err, domain.ErrTerminalStatus)

		fetched, err := repo.GetOrderByID(ctx, order.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.OrderStatusCancelled, fetched.Status)
	})

	t.Run("UpdateMissing", func(t *testing.T) {
		repo := newRepo(t)
		_, err := repo.UpdateOrderStatus(ctx, uuid.New(), domain.StatusUpdate{})
		assert.ErrorIs(t, err, ErrOrderNotFound)
	})

	t.Run("OutboxEventWrittenWithOrder", func(t *testing.T) {
		repo := newRepo(t)
		order := newTestOrder("user-1", base)
		require.NoError(t, repo.CreateOrder(ctx, order))

		events, err := repo.GetUnprocessedEvents(ctx, 10)
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, order.ID.String(), events[0].AggregateID)
		assert.Equal(t, domain.EventOrderPlaced, events[0].EventType)

		var payload domain.OrderPlacedEvent
		require.NoError(t, json.Unmarshal(events[0].Payload, &payload))
		assert.Equal(t, order.ID, payload.OrderID)
		assert.True(t, order.Total.Equal(payload.Total))

		require.NoError(t, repo.MarkEventAsProcessed(ctx, events[0].ID))
		events, err = repo.GetUnprocessedEvents(ctx, 10)
		require.NoError(t, err)
		assert.Empty(t, events)
	})

	t.Run("OutboxLimit", func(t *testing.T) {
		repo := newRepo(t)
		for i := 0; i < 3; i++ {
			require.NoError(t, repo.CreateOrder(ctx, newTestOrder("user-1", base)))
		}
		events, err := repo.GetUnprocessedEvents(ctx, 2)
		require.NoError(t, err)
		assert.Len(t, events, 2)
	})
}

func TestMemoryRepository_Contract(t *testing.T) {
	runRepositoryContract(t, func(t *testing.T) testRepository { return NewMemoryRepository() })
}

func TestMemoryRepository_ReturnsCopies(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	order := newTestOrder("user-1", time.Now())
	require.NoError(t, repo.CreateOrder(ctx, order))

	fetched, err := repo.GetOrderByID(ctx, order.ID)
	require.NoError(t, err)
	fetched.Items[0].Quantity = 99
	fetched.Status = domain.OrderStatusDelivered

	again, err := repo.GetOrderByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, again.Items[0].Quantity)
	assert.Equal(t, domain.OrderStatusPending, again.Status)
}
