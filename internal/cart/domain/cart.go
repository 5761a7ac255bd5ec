package domain

import (
	"github.com/shopspring/decimal"
)

// Line is one product in a cart. Stock is the most recently known available
// quantity; Quantity is always in 1..Stock while the line exists.
type Line struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Image     string          `json:"image"`
	Quantity  int             `json:"quantity"`
	Stock     int             `json:"stock"`
}

// Subtotal is UnitPrice × Quantity.
func (l Line) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// State is a cart snapshot. Total and ItemCount are derived from Lines and
// are only ever produced by NewState.
type State struct {
	Lines     []Line          `json:"lines"`
	Total     decimal.Decimal `json:"total"`
	ItemCount int             `json:"item_count"`
}

// NewState builds a State from lines, recomputing the derived fields.
func NewState(lines []Line) State {
	if lines == nil {
		lines = []Line{}
	}
	total := decimal.Zero
	count := 0
	for _, l := range lines {
		total = total.Add(l.Subtotal())
		count += l.Quantity
	}
	return State{Lines: lines, Total: total, ItemCount: count}
}

// Empty returns the empty cart.
func Empty() State {
	return NewState(nil)
}

// IsEmpty reports whether the cart has no lines.
func (s State) IsEmpty() bool {
	return len(s.Lines) == 0
}

// Product is what the cart needs to know about a catalog product when it is added.
type Product struct {
	ID    string
	Name  string
	Price decimal.Decimal
	Image string
	Stock int
}
