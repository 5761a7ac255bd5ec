package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/zuhaib446/nayab-gemstone/internal/catalog/domain"
)

// Common errors returned by the store
var (
	ErrProductNotFound   = errors.New("product not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidQuantity   = errors.New("quantity must be greater than 0")
)

// StockError reports which adjustment made DecrementStock fail.
// It unwraps to ErrProductNotFound or ErrInsufficientStock.
type StockError struct {
	ProductID string
	Requested int
	Available int
	Err       error
}

func (e *StockError) Error() string {
	if errors.Is(e.Err, ErrProductNotFound) {
		return fmt.Sprintf("product %s: %v", e.ProductID, e.Err)
	}
	return fmt.Sprintf("insufficient stock for product %s: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

func (e *StockError) Unwrap() error {
	return e.Err
}

// Store defines catalog storage operations. Every implementation must make
// DecrementStock all-or-nothing and must never drive stock below zero, also
// under concurrent callers.
type Store interface {
	// ListProducts returns products matching the filter, newest first
	ListProducts(ctx context.Context, filter domain.Filter) ([]*domain.Product, error)

	// GetProduct returns a single product or ErrProductNotFound
	GetProduct(ctx context.Context, id string) (*domain.Product, error)

	// ListCategories returns every category sorted by name
	ListCategories(ctx context.Context) ([]*domain.Category, error)

	// DecrementStock lowers stock for every adjustment or for none of them.
	// On failure the returned error is a *StockError naming the offending product.
	DecrementStock(ctx context.Context, items []domain.StockAdjustment) error

	// RestoreStock gives back quantities taken by a successful DecrementStock
	RestoreStock(ctx context.Context, items []domain.StockAdjustment) error

	// UpsertProduct creates or replaces a product (catalog administration)
	UpsertProduct(ctx context.Context, p *domain.Product) error

	// UpsertCategory creates or replaces a category
	UpsertCategory(ctx context.Context, c *domain.Category) error

	Close() error
}

// MergeAdjustments folds repeated product ids into one adjustment each,
// keeping first-seen order, and rejects non-positive quantities.
func MergeAdjustments(items []domain.StockAdjustment) ([]domain.StockAdjustment, error) {
	merged := make([]domain.StockAdjustment, 0, len(items))
	index := make(map[string]int, len(items))
	for _, item := range items {
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("product %s: %w", item.ProductID, ErrInvalidQuantity)
		}
		if i, ok := index[item.ProductID]; ok {
			merged[i].Quantity += item.Quantity
			continue
		}
		index[item.ProductID] = len(merged)
		merged = append(merged, item)
	}
	return merged, nil
}
