package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Ratings struct {
	Average float64 `json:"average"`
	Count   int     `json:"count"`
}

// Product is a sellable gemstone. Stock is the available quantity and is
// only ever lowered through a store's DecrementStock.
type Product struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Slug        string          `json:"slug"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Images      []string        `json:"images"`
	CategoryID  string          `json:"category_id"`
	Stock       int             `json:"stock"`
	Featured    bool            `json:"featured"`
	Weight      float64         `json:"weight"`
	Origin      string          `json:"origin"`
	Clarity     string          `json:"clarity"`
	Cut         string          `json:"cut"`
	Color       string          `json:"color"`
	Ratings     Ratings         `json:"ratings"`
	CreatedAt   time.Time       `json:"created_at"`
}

// PrimaryImage returns the first image or an empty string.
func (p *Product) PrimaryImage() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0]
}

type Category struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description,omitempty"`
}

// StockAdjustment is one line of an all-or-nothing stock change.
type StockAdjustment struct {
	ProductID string
	Quantity  int
}

// Filter narrows ListProducts. Zero values mean "no constraint".
type Filter struct {
	CategoryID string
	Featured   bool
	MinPrice   decimal.Decimal
	MaxPrice   decimal.Decimal
	Search     string
}

// Matches applies the filter in memory.
func (f Filter) Matches(p *Product) bool {
	if f.CategoryID != "" && p.CategoryID != f.CategoryID {
		return false
	}
	if f.Featured && !p.Featured {
		return false
	}
	if f.MinPrice.IsPositive() && p.Price.LessThan(f.MinPrice) {
		return false
	}
	if f.MaxPrice.IsPositive() && p.Price.GreaterThan(f.MaxPrice) {
		return false
	}
	if f.Search != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(f.Search)) {
		return false
	}
	return true
}
