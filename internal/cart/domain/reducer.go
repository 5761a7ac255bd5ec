package domain

import "slices"

// Action is a cart state transition. The set of actions is closed.
type Action interface {
	isAction()
}

// AddItem adds Quantity units of Product, capped at the product's stock.
type AddItem struct {
	Product  Product
	Quantity int
}

// RemoveItem drops the line for ProductID.
type RemoveItem struct {
	ProductID string
}

// SetQuantity sets the line quantity, clamped into [0, line stock].
type SetQuantity struct {
	ProductID string
	Quantity  int
}

// Clear empties the cart.
type Clear struct{}

// Load replaces the cart with previously persisted lines.
type Load struct {
	Lines []Line
}

func (AddItem) isAction()     {}
func (RemoveItem) isAction()  {}
func (SetQuantity) isAction() {}
func (Clear) isAction()       {}
func (Load) isAction()        {}

// Reduce applies action to state and returns the new state. It never
// mutates the input and is total over every action value.
func Reduce(state State, action Action) State {
	lines := slices.Clone(state.Lines)

	switch a := action.(type) {
	case AddItem:
		lines = addItem(lines, a)
	case RemoveItem:
		lines = slices.DeleteFunc(lines, func(l Line) bool { return l.ProductID == a.ProductID })
	case SetQuantity:
		lines = setQuantity(lines, a)
	case Clear:
		lines = nil
	case Load:
		lines = Sanitize(a.Lines)
	default:
		return state
	}

	return NewState(lines)
}

func addItem(lines []Line, a AddItem) []Line {
	p := a.Product
	if a.Quantity <= 0 || p.ID == "" || p.Price.IsNegative() {
		return lines
	}
	stock := max(p.Stock, 0)

	if i := slices.IndexFunc(lines, func(l Line) bool { return l.ProductID == p.ID }); i >= 0 {
		q := min(lines[i].Quantity+a.Quantity, stock)
		if q == 0 {
			return slices.Delete(lines, i, i+1)
		}
		lines[i].Quantity = q
		lines[i].Stock = stock
		return lines
	}

	q := min(a.Quantity, stock)
	if q == 0 {
		return lines
	}
	return append(lines, Line{
		ProductID: p.ID,
		Name:      p.Name,
		UnitPrice: p.Price,
		Image:     p.Image,
		Quantity:  q,
		Stock:     stock,
	})
}

func setQuantity(lines []Line, a SetQuantity) []Line {
	i := slices.IndexFunc(lines, func(l Line) bool { return l.ProductID == a.ProductID })
	if i < 0 {
		return lines
	}
	q := min(max(a.Quantity, 0), lines[i].Stock)
	if q == 0 {
		return slices.Delete(lines, i, i+1)
	}
	lines[i].Quantity = q
	return lines
}

// Sanitize drops lines that could not have been produced by Reduce and
// clamps the rest, so persisted data edited out of band cannot break the
// line invariants. The first line per product wins.
func Sanitize(in []Line) []Line {
	out := make([]Line, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, l := range in {
		if l.ProductID == "" || l.UnitPrice.IsNegative() || l.Stock <= 0 || l.Quantity <= 0 {
			continue
		}
		if _, dup := seen[l.ProductID]; dup {
			continue
		}
		seen[l.ProductID] = struct{}{}
		l.Quantity = min(l.Quantity, l.Stock)
		out = append(out, l)
	}
	return out
}
