package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/zuhaib446/nayab-gemstone/internal/catalog/domain"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// fixed width so created_at sorts lexically
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const productColumns = `id, name, slug, description, price, images, category_id, stock, featured,
	weight, origin, clarity, cut, color, rating_average, rating_count, created_at`

// SQLiteStore implements Store on a single-connection SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one writer; also keeps ":memory:" a single database
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) RunMigrations() error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("could not open migration source: %w", err)
	}

	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", err)
	}

	return nil
}

func (s *SQLiteStore) ListProducts(ctx context.Context, filter domain.Filter) ([]*domain.Product, error) {
	var (
		clauses []string
		args    []any
	)
	if filter.CategoryID != "" {
		clauses = append(clauses, "category_id = ?")
		args = append(args, filter.CategoryID)
	}
	if filter.Featured {
		clauses = append(clauses, "featured = 1")
	}
	if filter.Search != "" {
		clauses = append(clauses, "LOWER(name) LIKE ?")
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	query := `SELECT ` + productColumns + ` FROM products`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at DESC, id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	products := make([]*domain.Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		// price is TEXT, so range checks happen here
		if filter.Matches(p) {
			products = append(products, p)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return products, nil
}

func (s *SQLiteStore) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = ?`, id)
	p, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *SQLiteStore) ListCategories(ctx context.Context) ([]*domain.Category, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, slug, description FROM categories ORDER BY LOWER(name)`)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer rows.Close()

	categories := make([]*domain.Category, 0)
	for rows.Next() {
		c := &domain.Category{}
		if err := rows.Scan(&c.ID, &c.Name, &c.Slug, &c.Description); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return categories, nil
}

// DecrementStock runs one conditional UPDATE per product inside a single
// transaction. Any miss rolls the whole transaction back.
func (s *SQLiteStore) DecrementStock(ctx context.Context, items []domain.StockAdjustment) error {
	merged, err := MergeAdjustments(items)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, item := range merged {
		res, err := tx.ExecContext(ctx,
			`UPDATE products SET stock = stock - ? WHERE id = ? AND stock >= ?`,
			item.Quantity, item.ProductID, item.Quantity)
		if err != nil {
			return fmt.Errorf("failed to decrement stock for %s: %w", item.ProductID, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read affected rows: %w", err)
		}
		if affected == 1 {
			continue
		}

		var available int
		err = tx.QueryRowContext(ctx, `SELECT stock FROM products WHERE id = ?`, item.ProductID).Scan(&available)
		if errors.Is(err, sql.ErrNoRows) {
			return &StockError{ProductID: item.ProductID, Requested: item.Quantity, Err: ErrProductNotFound}
		}
		if err != nil {
			return fmt.Errorf("failed to read stock for %s: %w", item.ProductID, err)
		}
		return &StockError{
			ProductID: item.ProductID,
			Requested: item.Quantity,
			Available: available,
			Err:       ErrInsufficientStock,
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit stock update: %w", err)
	}
	return nil
}

func (s *SQLiteStore) RestoreStock(ctx context.Context, items []domain.StockAdjustment) error {
	merged, err := MergeAdjustments(items)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, item := range merged {
		res, err := tx.ExecContext(ctx,
			`UPDATE products SET stock = stock + ? WHERE id = ?`, item.Quantity, item.ProductID)
		if err != nil {
			return fmt.Errorf("failed to restore stock for %s: %w", item.ProductID, err)
		}
		if affected, _ := res.RowsAffected(); affected == 0 {
			return &StockError{ProductID: item.ProductID, Requested: item.Quantity, Err: ErrProductNotFound}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit stock restore: %w", err)
	}
	return nil
}

func (s *SQLiteStore) UpsertProduct(ctx context.Context, p *domain.Product) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	images := p.Images
	if images == nil {
		images = []string{}
	}
	imagesJSON, err := json.Marshal(images)
	if err != nil {
		return fmt.Errorf("failed to encode images: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO products (`+productColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name, slug = excluded.slug, description = excluded.description,
			price = excluded.price, images = excluded.images, category_id = excluded.category_id,
			stock = excluded.stock, featured = excluded.featured, weight = excluded.weight,
			origin = excluded.origin, clarity = excluded.clarity, cut = excluded.cut,
			color = excluded.color, rating_average = excluded.rating_average,
			rating_count = excluded.rating_count`,
		p.ID, p.Name, p.Slug, p.Description, p.Price.String(), string(imagesJSON), p.CategoryID,
		p.Stock, p.Featured, p.Weight, p.Origin, p.Clarity, p.Cut, p.Color,
		p.Ratings.Average, p.Ratings.Count, p.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert product: %w", err)
	}
	return nil
}

func (s *SQLiteStore) UpsertCategory(ctx context.Context, c *domain.Category) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO categories (id, name, slug, description) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name, slug = excluded.slug, description = excluded.description`,
		c.ID, c.Name, c.Slug, c.Description)
	if err != nil {
		return fmt.Errorf("failed to upsert category: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*domain.Product, error) {
	var (
		p          domain.Product
		price      string
		imagesJSON string
		createdAt  string
	)
	err := row.Scan(
		&p.ID, &p.Name, &p.Slug, &p.Description, &price, &imagesJSON, &p.CategoryID,
		&p.Stock, &p.Featured, &p.Weight, &p.Origin, &p.Clarity, &p.Cut, &p.Color,
		&p.Ratings.Average, &p.Ratings.Count, &createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan product: %w", err)
	}

	if p.Price, err = decimal.NewFromString(price); err != nil {
		return nil, fmt.Errorf("product %s has invalid price %q: %w", p.ID, price, err)
	}
	if err := json.Unmarshal([]byte(imagesJSON), &p.Images); err != nil {
		return nil, fmt.Errorf("product %s has invalid images: %w", p.ID, err)
	}
	if p.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return nil, fmt.Errorf("product %s has invalid created_at: %w", p.ID, err)
	}
	return &p, nil
}
