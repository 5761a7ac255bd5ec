package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/zuhaib446/nayab-gemstone/internal/cart/domain"
	"github.com/zuhaib446/nayab-gemstone/internal/cart/store"
)

// Engine owns the cart of one session. Every action is reduced in memory and
// written through to the store before it is acknowledged; if the write fails
// the in-memory state is left as it was.
type Engine struct {
	mu        sync.Mutex
	store     store.Store
	sessionID string
	state     domain.State
	logger    *slog.Logger
}

// NewEngine rehydrates the session's cart. Missing, unreadable or corrupt
// data yields an empty cart; the problem is logged and never returned.
func NewEngine(ctx context.Context, s store.Store, sessionID string, logger *slog.Logger) *Engine {
	e := &Engine{
		store:     s,
		sessionID: sessionID,
		state:     domain.Empty(),
		logger:    logger.With("session_id", sessionID),
	}

	lines, err := s.Load(ctx, sessionID)
	switch {
	case err == nil:
		e.state = domain.Reduce(e.state, domain.Load{Lines: lines})
		if dropped := len(lines) - len(e.state.Lines); dropped > 0 {
			e.logger.WarnContext(ctx, "dropped invalid cart lines on load", "dropped", dropped)
		}
	case errors.Is(err, store.ErrCartNotFound):
	case errors.Is(err, store.ErrCorruptCart):
		e.logger.WarnContext(ctx, "discarding corrupt cart", "error", err)
	default:
		e.logger.ErrorContext(ctx, "cart load failed, starting empty", "error", err)
	}

	return e
}

// Dispatch applies action and persists the result.
func (e *Engine) Dispatch(ctx context.Context, action domain.Action) (domain.State, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	next := domain.Reduce(e.state, action)

	var err error
	if next.IsEmpty() {
		err = e.store.Delete(ctx, e.sessionID)
	} else {
		err = e.store.Save(ctx, e.sessionID, next.Lines)
	}
	if err != nil {
		e.logger.ErrorContext(ctx, "cart persist failed", "action", fmt.Sprintf("%T", action), "error", err)
		return e.state, fmt.Errorf("persist cart: %w", err)
	}

	e.state = next
	return next, nil
}

func (e *Engine) AddItem(ctx context.Context, p domain.Product, quantity int) (domain.State, error) {
	return e.Dispatch(ctx, domain.AddItem{Product: p, Quantity: quantity})
}

func (e *Engine) RemoveItem(ctx context.Context, productID string) (domain.State, error) {
	return e.Dispatch(ctx, domain.RemoveItem{ProductID: productID})
}

func (e *Engine) SetQuantity(ctx context.Context, productID string, quantity int) (domain.State, error) {
	return e.Dispatch(ctx, domain.SetQuantity{ProductID: productID, Quantity: quantity})
}

func (e *Engine) Clear(ctx context.Context) (domain.State, error) {
	return e.Dispatch(ctx, domain.Clear{})
}

// Snapshot returns the current state. The returned lines are a copy.
func (e *Engine) Snapshot() domain.State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return domain.NewState(append([]domain.Line(nil), e.state.Lines...))
}
