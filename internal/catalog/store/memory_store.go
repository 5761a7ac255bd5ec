package store

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zuhaib446/nayab-gemstone/internal/catalog/domain"
)

// MemoryStore implements Store with in-memory storage
type MemoryStore struct {
	mu         sync.RWMutex
	products   map[string]*domain.Product  // productID -> product
	categories map[string]*domain.Category // categoryID -> category
}

// NewMemoryStore creates a new in-memory catalog store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		products:   make(map[string]*domain.Product),
		categories: make(map[string]*domain.Category),
	}
}

func (s *MemoryStore) ListProducts(_ context.Context, filter domain.Filter) ([]*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Product, 0, len(s.products))
	for _, p := range s.products {
		if filter.Matches(p) {
			result = append(result, cloneProduct(p))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (s *MemoryStore) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, exists := s.products[id]
	if !exists {
		return nil, ErrProductNotFound
	}
	return cloneProduct(p), nil
}

func (s *MemoryStore) ListCategories(_ context.Context) ([]*domain.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Category, 0, len(s.categories))
	for _, c := range s.categories {
		cp := *c
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool {
		return strings.ToLower(result[i].Name) < strings.ToLower(result[j].Name)
	})
	return result, nil
}

// DecrementStock validates every adjustment and then applies every one,
// both under the write lock, so no caller can observe or cause a partial update.
func (s *MemoryStore) DecrementStock(_ context.Context, items []domain.StockAdjustment) error {
	merged, err := MergeAdjustments(items)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// First pass: validate all items have sufficient stock
	for _, item := range merged {
		p, exists := s.products[item.ProductID]
		if !exists {
			return &StockError{ProductID: item.ProductID, Requested: item.Quantity, Err: ErrProductNotFound}
		}
		if p.Stock < item.Quantity {
			return &StockError{
				ProductID: item.ProductID,
				Requested: item.Quantity,
				Available: p.Stock,
				Err:       ErrInsufficientStock,
			}
		}
	}

	// Second pass: deduct stock for all items
	for _, item := range merged {
		s.products[item.ProductID].Stock -= item.Quantity
	}
	return nil
}

func (s *MemoryStore) RestoreStock(_ context.Context, items []domain.StockAdjustment) error {
	merged, err := MergeAdjustments(items)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, item := range merged {
		if _, exists := s.products[item.ProductID]; !exists {
			return &StockError{ProductID: item.ProductID, Requested: item.Quantity, Err: ErrProductNotFound}
		}
	}
	for _, item := range merged {
		s.products[item.ProductID].Stock += item.Quantity
	}
	return nil
}

func (s *MemoryStore) UpsertProduct(_ context.Context, p *domain.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	s.products[p.ID] = cloneProduct(p)
	return nil
}

func (s *MemoryStore) UpsertCategory(_ context.Context, c *domain.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	cp := *c
	s.categories[c.ID] = &cp
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}

func cloneProduct(p *domain.Product) *domain.Product {
	cp := *p
	cp.Images = slices.Clone(p.Images)
	return &cp
}
