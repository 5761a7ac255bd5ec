package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zuhaib446/nayab-gemstone/internal/orders/domain"
)

// MemoryRepository keeps orders and their outbox in process.
type MemoryRepository struct {
	mu        sync.RWMutex
	orders    map[uuid.UUID]*domain.Order
	outbox    []*OutboxEvent
	processed map[int64]bool
	nextID    int64
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		orders:    make(map[uuid.UUID]*domain.Order),
		processed: make(map[int64]bool),
	}
}

func (r *MemoryRepository) CreateOrder(_ context.Context, order *domain.Order) error {
	payload, err := json.Marshal(domain.NewOrderPlacedEvent(order))
	if err != nil {
		return fmt.Errorf("marshal outbox payload: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.orders[order.ID]; exists {
		return ErrDuplicateOrder
	}
	r.orders[order.ID] = cloneOrder(order)
	r.nextID++
	r.outbox = append(r.outbox, &OutboxEvent{
		ID:          r.nextID,
		AggregateID: order.ID.String(),
		EventType:   domain.EventOrderPlaced,
		Payload:     payload,
		CreatedAt:   time.Now(),
	})
	return nil
}

func (r *MemoryRepository) GetOrderByID(_ context.Context, id uuid.UUID) (*domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	o, ok := r.orders[id]
	if !ok {
		return nil, ErrOrderNotFound
	}
	return cloneOrder(o), nil
}

func (r *MemoryRepository) ListOrdersByUserID(_ context.Context, userID string) ([]*domain.Order, error) {
	return r.list(func(o *domain.Order) bool { return o.UserID == userID }), nil
}

func (r *MemoryRepository) ListOrders(_ context.Context) ([]*domain.Order, error) {
	return r.list(func(*domain.Order) bool { return true }), nil
}

func (r *MemoryRepository) list(keep func(*domain.Order) bool) []*domain.Order {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.Order, 0)
	for _, o := range r.orders {
		if keep(o) {
			out = append(out, cloneOrder(o))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func (r *MemoryRepository) UpdateOrderStatus(_ context.Context, id uuid.UUID, update domain.StatusUpdate) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[id]
	if !ok {
		return nil, ErrOrderNotFound
	}
	updated := cloneOrder(o)
	if err := update.Apply(updated); err != nil {
		return nil, err
	}
	r.orders[id] = updated
	return cloneOrder(updated), nil
}

func (r *MemoryRepository) GetUnprocessedEvents(_ context.Context, limit int) ([]*OutboxEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var events []*OutboxEvent
	for _, e := range r.outbox {
		if len(events) >= limit {
			break
		}
		if !r.processed[e.ID] {
			cp := *e
			events = append(events, &cp)
		}
	}
	return events, nil
}

func (r *MemoryRepository) MarkEventAsProcessed(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.processed[id] = true
	return nil
}

func (r *MemoryRepository) Close() error {
	return nil
}

func cloneOrder(o *domain.Order) *domain.Order {
	cp := *o
	cp.Items = slices.Clone(o.Items)
	return &cp
}
