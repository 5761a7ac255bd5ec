package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/zuhaib446/nayab-gemstone/internal/cart/domain"
)

var (
	ErrCartNotFound = errors.New("cart not found")
	ErrCorruptCart  = errors.New("corrupt cart data")
)

// Store is the per-session slot the cart engine writes through to.
// Load returns ErrCartNotFound for an absent or expired session and wraps
// ErrCorruptCart when the stored bytes cannot be decoded.
type Store interface {
	Load(ctx context.Context, sessionID string) ([]domain.Line, error)
	Save(ctx context.Context, sessionID string, lines []domain.Line) error
	Delete(ctx context.Context, sessionID string) error
}

// DefaultTTL is the advisory lifetime of an idle cart.
const DefaultTTL = 7 * 24 * time.Hour

// snapshot is the serialized form shared by the byte-oriented stores.
type snapshot struct {
	Lines     []domain.Line `json:"lines"`
	UpdatedAt time.Time     `json:"updated_at"`
}

func encode(lines []domain.Line) ([]byte, error) {
	data, err := json.Marshal(snapshot{Lines: lines, UpdatedAt: time.Now().UTC()})
	if err != nil {
		return nil, fmt.Errorf("marshal cart failed: %w", err)
	}
	return data, nil
}

func decode(data []byte) ([]domain.Line, error) {
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptCart, err)
	}
	return snap.Lines, nil
}
