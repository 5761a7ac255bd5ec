package store

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zuhaib446/nayab-gemstone/internal/catalog/domain"
)

// seedProduct inserts a product and returns its generated id.
func seedProduct(t *testing.T, s Store, name, price string, stock int) string {
	t.Helper()
	p := &domain.Product{
		Name:      name,
		Price:     decimal.RequireFromString(price),
		Images:    []string{"/img/" + name + ".jpg"},
		Stock:     stock,
		CreatedAt: time.Now(),
	}
	require.NoError(t, s.UpsertProduct(context.Background(), p))
	require.NotEmpty(t, p.ID)
	return p.ID
}

func stockOf(t *testing.T, s Store, id string) int {
	t.Helper()
	p, err := s.GetProduct(context.Background(), id)
	require.NoError(t, err)
	return p.Stock
}

// runStoreContract checks the behaviour every Store implementation shares.
func runStoreContract(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("GetProduct_NotFound", func(t *testing.T) {
		s := newStore(t)
		_, err := s.GetProduct(ctx, "000000000000000000000000")
		assert.ErrorIs(t, err, ErrProductNotFound)
	})

	t.Run("UpsertAndGet", func(t *testing.T) {
		s := newStore(t)
		id := seedProduct(t, s, "ruby", "1299.99", 4)

		p, err := s.GetProduct(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "ruby", p.Name)
		assert.True(t, decimal.RequireFromString("1299.99").Equal(p.Price))
		assert.Equal(t, 4, p.Stock)
		assert.Equal(t, "/img/ruby.jpg", p.PrimaryImage())
	})

	t.Run("ListProducts_Filter", func(t *testing.T) {
		s := newStore(t)
		seedProduct(t, s, "Blue Sapphire", "500", 1)
		seedProduct(t, s, "Emerald", "900", 1)
		seedProduct(t, s, "Pink Sapphire", "1500", 1)

		all, err := s.ListProducts(ctx, domain.Filter{})
		require.NoError(t, err)
		assert.Len(t, all, 3)

		sapphires, err := s.ListProducts(ctx, domain.Filter{Search: "sapphire"})
		require.NoError(t, err)
		assert.Len(t, sapphires, 2)

		ranged, err := s.ListProducts(ctx, domain.Filter{
			MinPrice: decimal.NewFromInt(600),
			MaxPrice: decimal.NewFromInt(1000),
		})
		require.NoError(t, err)
		require.Len(t, ranged, 1)
		assert.Equal(t, "Emerald", ranged[0].Name)
	})

	t.Run("ListCategories_SortedByName", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.UpsertCategory(ctx, &domain.Category{Name: "Sapphires", Slug: "sapphires"}))
		require.NoError(t, s.UpsertCategory(ctx, &domain.Category{Name: "emeralds", Slug: "emeralds"}))

		categories, err := s.ListCategories(ctx)
		require.NoError(t, err)
		require.Len(t, categories, 2)
		assert.Equal(t, "emeralds", categories[0].Name)
		assert.Equal(t, "Sapphires", categories[1].Name)
	})

	t.Run("DecrementStock_Success", func(t *testing.T) {
		s := newStore(t)
		a := seedProduct(t, s, "a", "10", 5)
		b := seedProduct(t, s, "b", "20", 2)

		err := s.DecrementStock(ctx, []domain.StockAdjustment{
			{ProductID: a, Quantity: 3},
			{ProductID: b, Quantity: 2},
		})
		require.NoError(t, err)
		assert.Equal(t, 2, stockOf(t, s, a))
		assert.Equal(t, 0, stockOf(t, s, b))
	})

	t.Run("DecrementStock_AllOrNothing", func(t *testing.T) {
		s := newStore(t)
		a := seedProduct(t, s, "a", "10", 5)
		b := seedProduct(t, s, "b", "20", 1)

		err := s.DecrementStock(ctx, []domain.StockAdjustment{
			{ProductID: a, Quantity: 3},
			{ProductID: b, Quantity: 2},
		})
		require.ErrorIs(t, err, ErrInsufficientStock)

		var stockErr *StockError
		require.ErrorAs(t, err, &stockErr)
		assert.Equal(t, b, stockErr.ProductID)
		assert.Equal(t, 2, stockErr.Requested)
		assert.Equal(t, 1, stockErr.Available)

		assert.Equal(t, 5, stockOf(t, s, a))
		assert.Equal(t, 1, stockOf(t, s, b))
	})

	t.Run("DecrementStock_UnknownProduct", func(t *testing.T) {
		s := newStore(t)
		a := seedProduct(t, s, "a", "10", 5)

		err := s.DecrementStock(ctx, []domain.StockAdjustment{
			{ProductID: a, Quantity: 1},
			{ProductID: "000000000000000000000000", Quantity: 1},
		})
		assert.ErrorIs(t, err, ErrProductNotFound)
		assert.Equal(t, 5, stockOf(t, s, a))
	})

	t.Run("DecrementStock_MergesDuplicateLines", func(t *testing.T) {
		s := newStore(t)
		a := seedProduct(t, s, "a", "10", 3)

		err := s.DecrementStock(ctx, []domain.StockAdjustment{
			{ProductID: a, Quantity: 2},
			{ProductID: a, Quantity: 2},
		})
		assert.ErrorIs(t, err, ErrInsufficientStock)
		assert.Equal(t, 3, stockOf(t, s, a))
	})

	t.Run("DecrementStock_InvalidQuantity", func(t *testing.T) {
		s := newStore(t)
		a := seedProduct(t, s, "a", "10", 3)

		err := s.DecrementStock(ctx, []domain.StockAdjustment{{ProductID: a, Quantity: 0}})
		assert.ErrorIs(t, err, ErrInvalidQuantity)
	})

	t.Run("RestoreStock", func(t *testing.T) {
		s := newStore(t)
		a := seedProduct(t, s, "a", "10", 3)
		items := []domain.StockAdjustment{{ProductID: a, Quantity: 3}}

		require.NoError(t, s.DecrementStock(ctx, items))
		assert.Equal(t, 0, stockOf(t, s, a))
		require.NoError(t, s.RestoreStock(ctx, items))
		assert.Equal(t, 3, stockOf(t, s, a))
	})

	t.Run("DecrementStock_ConcurrentLastUnit", func(t *testing.T) {
		s := newStore(t)
		a := seedProduct(t, s, "a", "10", 1)

		const buyers = 10
		var (
			wg        sync.WaitGroup
			successes atomic.Int32
		)
		for i := 0; i < buyers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := s.DecrementStock(ctx, []domain.StockAdjustment{{ProductID: a, Quantity: 1}}); err == nil {
					successes.Add(1)
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, int32(1), successes.Load())
		assert.Equal(t, 0, stockOf(t, s, a))
	})
}
