package store

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/zuhaib446/nayab-gemstone/internal/catalog/domain"
)

// SeedDemo fills an empty store with a small gem catalogue so a local
// binary has something to sell. Stores that already hold products are left
// untouched.
func SeedDemo(ctx context.Context, s Store) error {
	existing, err := s.ListProducts(ctx, domain.Filter{})
	if err != nil {
		return fmt.Errorf("list products: %w", err)
	}
	if len(existing) > 0 {
		return nil
	}

	categories := []*domain.Category{
		{Name: "Precious", Slug: "precious", Description: "Ruby, sapphire and emerald"},
		{Name: "Semi-precious", Slug: "semi-precious"},
	}
	for _, c := range categories {
		if err := s.UpsertCategory(ctx, c); err != nil {
			return fmt.Errorf("seed category %s: %w", c.Slug, err)
		}
	}

	now := time.Now().UTC()
	products := []*domain.Product{
		{
			Name: "Kashmir Blue Sapphire", Slug: "kashmir-blue-sapphire",
			Description: "Cornflower blue with a velvety sheen.",
			Price:       decimal.RequireFromString("4250.00"), Stock: 2, Featured: true,
			Weight: 2.1, Origin: "Kashmir", Clarity: "VVS", Cut: "Oval", Color: "Blue",
			Images: []string{"/images/kashmir-sapphire.jpg"}, CategoryID: categories[0].ID,
		},
		{
			Name: "Burmese Ruby", Slug: "burmese-ruby",
			Description: "Pigeon blood red, unheated.",
			Price:       decimal.RequireFromString("3899.99"), Stock: 1, Featured: true,
			Weight: 1.5, Origin: "Mogok", Clarity: "VS", Cut: "Cushion", Color: "Red",
			Images: []string{"/images/burmese-ruby.jpg"}, CategoryID: categories[0].ID,
		},
		{
			Name: "Swat Emerald", Slug: "swat-emerald",
			Description: "Vivid green from the Swat valley.",
			Price:       decimal.RequireFromString("1799.00"), Stock: 4,
			Weight: 1.2, Origin: "Swat", Clarity: "SI", Cut: "Emerald", Color: "Green",
			Images: []string{"/images/swat-emerald.jpg"}, CategoryID: categories[0].ID,
		},
		{
			Name: "Hunza Peridot", Slug: "hunza-peridot",
			Price: decimal.RequireFromString("249.50"), Stock: 12,
			Weight: 3.4, Origin: "Hunza", Clarity: "VVS", Cut: "Round", Color: "Olive",
			Images: []string{"/images/hunza-peridot.jpg"}, CategoryID: categories[1].ID,
		},
		{
			Name: "Imperial Topaz", Slug: "imperial-topaz",
			Price: decimal.RequireFromString("689.00"), Stock: 0,
			Weight: 4.0, Origin: "Katlang", Clarity: "VS", Cut: "Pear", Color: "Orange",
			Images: []string{"/images/imperial-topaz.jpg"}, CategoryID: categories[1].ID,
		},
	}
	for i, p := range products {
		p.CreatedAt = now.Add(-time.Duration(i) * time.Hour)
		if err := s.UpsertProduct(ctx, p); err != nil {
			return fmt.Errorf("seed product %s: %w", p.Slug, err)
		}
	}
	return nil
}
