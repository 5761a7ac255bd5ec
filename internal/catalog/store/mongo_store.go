package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/shopspring/decimal"
	"github.com/zuhaib446/nayab-gemstone/internal/catalog/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type productDocument struct {
	ID          primitive.ObjectID   `bson:"_id"`
	Name        string               `bson:"name"`
	Slug        string               `bson:"slug"`
	Description string               `bson:"description"`
	Price       primitive.Decimal128 `bson:"price"`
	Images      []string             `bson:"images"`
	Category    string               `bson:"category"`
	Stock       int                  `bson:"stock"`
	Featured    bool                 `bson:"featured"`
	Weight      float64              `bson:"weight"`
	Origin      string               `bson:"origin"`
	Clarity     string               `bson:"clarity"`
	Cut         string               `bson:"cut"`
	Color       string               `bson:"color"`
	Ratings     domain.Ratings       `bson:"ratings"`
	CreatedAt   time.Time            `bson:"createdAt"`
}

type categoryDocument struct {
	ID          primitive.ObjectID `bson:"_id"`
	Name        string             `bson:"name"`
	Slug        string             `bson:"slug"`
	Description string             `bson:"description"`
}

// MongoStore implements Store on the products and categories collections.
type MongoStore struct {
	products   *mongo.Collection
	categories *mongo.Collection
	logger     *slog.Logger
	restore    func(ctx context.Context, items []domain.StockAdjustment) error
}

func NewMongoStore(db *mongo.Database, logger *slog.Logger) *MongoStore {
	m := &MongoStore{
		products:   db.Collection("products"),
		categories: db.Collection("categories"),
		logger:     logger,
	}
	m.restore = m.RestoreStock
	return m
}

func (m *MongoStore) CreateIndexes(ctx context.Context) error {
	_, err := m.products.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "category", Value: 1}}},
		{Keys: bson.D{{Key: "featured", Value: 1}}},
		{Keys: bson.D{{Key: "createdAt", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create product indexes: %w", err)
	}
	_, err = m.categories.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "slug", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create category indexes: %w", err)
	}
	return nil
}

func (m *MongoStore) ListProducts(ctx context.Context, filter domain.Filter) ([]*domain.Product, error) {
	query := bson.M{}
	if filter.CategoryID != "" {
		query["category"] = filter.CategoryID
	}
	if filter.Featured {
		query["featured"] = true
	}
	priceRange := bson.M{}
	if filter.MinPrice.IsPositive() {
		priceRange["$gte"] = toDecimal128(filter.MinPrice)
	}
	if filter.MaxPrice.IsPositive() {
		priceRange["$lte"] = toDecimal128(filter.MaxPrice)
	}
	if len(priceRange) > 0 {
		query["price"] = priceRange
	}
	if filter.Search != "" {
		query["name"] = primitive.Regex{Pattern: regexp.QuoteMeta(filter.Search), Options: "i"}
	}

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: 1}})
	cursor, err := m.products.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer cursor.Close(ctx)

	products := make([]*domain.Product, 0)
	for cursor.Next(ctx) {
		var doc productDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode product: %w", err)
		}
		p, err := doc.toDomain()
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}
	return products, nil
}

func (m *MongoStore) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrProductNotFound
	}

	var doc productDocument
	err = m.products.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return doc.toDomain()
}

func (m *MongoStore) ListCategories(ctx context.Context) ([]*domain.Category, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "name", Value: 1}}).
		SetCollation(&options.Collation{Locale: "en", Strength: 2})
	cursor, err := m.categories.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []categoryDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode categories: %w", err)
	}

	categories := make([]*domain.Category, 0, len(docs))
	for _, d := range docs {
		categories = append(categories, &domain.Category{
			ID:          d.ID.Hex(),
			Name:        d.Name,
			Slug:        d.Slug,
			Description: d.Description,
		})
	}
	return categories, nil
}

// DecrementStock applies a guarded $inc per product. Each update only
// matches while stock covers the quantity, so stock never goes negative.
// When a later line misses, the lines already taken are given back before
// returning, which keeps the call all-or-nothing without a replica set.
func (m *MongoStore) DecrementStock(ctx context.Context, items []domain.StockAdjustment) error {
	merged, err := MergeAdjustments(items)
	if err != nil {
		return err
	}

	applied := make([]domain.StockAdjustment, 0, len(merged))
	for _, item := range merged {
		oid, err := primitive.ObjectIDFromHex(item.ProductID)
		if err != nil {
			return m.rollback(applied, &StockError{ProductID: item.ProductID, Requested: item.Quantity, Err: ErrProductNotFound})
		}

		res, err := m.products.UpdateOne(ctx,
			bson.M{"_id": oid, "stock": bson.M{"$gte": item.Quantity}},
			bson.M{"$inc": bson.M{"stock": -item.Quantity}},
		)
		if err != nil {
			return m.rollback(applied, fmt.Errorf("failed to decrement stock for %s: %w", item.ProductID, err))
		}
		if res.ModifiedCount == 1 {
			applied = append(applied, item)
			continue
		}

		return m.rollback(applied, m.stockFailure(ctx, oid, item))
	}
	return nil
}

// rollback gives back the lines already taken and returns cause. It runs
// detached from the caller's context so a cancelled request still returns
// the stock it took. A failed give-back is logged and joined onto cause.
func (m *MongoStore) rollback(applied []domain.StockAdjustment, cause error) error {
	if len(applied) == 0 {
		return cause
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := m.restore(ctx, applied); err != nil {
		m.logger.Error("failed to give back stock after partial decrement",
			"adjustments", applied, "cause", cause, "error", err)
		return errors.Join(cause, fmt.Errorf("rollback: %w", err))
	}
	return cause
}

func (m *MongoStore) stockFailure(ctx context.Context, oid primitive.ObjectID, item domain.StockAdjustment) error {
	var doc struct {
		Stock int `bson:"stock"`
	}
	err := m.products.FindOne(ctx, bson.M{"_id": oid},
		options.FindOne().SetProjection(bson.M{"stock": 1})).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return &StockError{ProductID: item.ProductID, Requested: item.Quantity, Err: ErrProductNotFound}
	}
	if err != nil {
		return fmt.Errorf("failed to read stock for %s: %w", item.ProductID, err)
	}
	return &StockError{
		ProductID: item.ProductID,
		Requested: item.Quantity,
		Available: doc.Stock,
		Err:       ErrInsufficientStock,
	}
}

func (m *MongoStore) RestoreStock(ctx context.Context, items []domain.StockAdjustment) error {
	merged, err := MergeAdjustments(items)
	if err != nil {
		return err
	}

	var errs []error
	for _, item := range merged {
		oid, err := primitive.ObjectIDFromHex(item.ProductID)
		if err != nil {
			errs = append(errs, &StockError{ProductID: item.ProductID, Requested: item.Quantity, Err: ErrProductNotFound})
			continue
		}
		res, err := m.products.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$inc": bson.M{"stock": item.Quantity}})
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to restore stock for %s: %w", item.ProductID, err))
			continue
		}
		if res.MatchedCount == 0 {
			errs = append(errs, &StockError{ProductID: item.ProductID, Requested: item.Quantity, Err: ErrProductNotFound})
		}
	}
	return errors.Join(errs...)
}

func (m *MongoStore) UpsertProduct(ctx context.Context, p *domain.Product) error {
	oid := primitive.NewObjectID()
	if p.ID != "" {
		var err error
		if oid, err = primitive.ObjectIDFromHex(p.ID); err != nil {
			return fmt.Errorf("invalid product id %q: %w", p.ID, err)
		}
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	p.ID = oid.Hex()

	doc := productDocument{
		ID:          oid,
		Name:        p.Name,
		Slug:        p.Slug,
		Description: p.Description,
		Price:       toDecimal128(p.Price),
		Images:      p.Images,
		Category:    p.CategoryID,
		Stock:       p.Stock,
		Featured:    p.Featured,
		Weight:      p.Weight,
		Origin:      p.Origin,
		Clarity:     p.Clarity,
		Cut:         p.Cut,
		Color:       p.Color,
		Ratings:     p.Ratings,
		CreatedAt:   p.CreatedAt.UTC(),
	}
	if doc.Images == nil {
		doc.Images = []string{}
	}

	_, err := m.products.ReplaceOne(ctx, bson.M{"_id": oid}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to upsert product: %w", err)
	}
	return nil
}

func (m *MongoStore) UpsertCategory(ctx context.Context, c *domain.Category) error {
	oid := primitive.NewObjectID()
	if c.ID != "" {
		var err error
		if oid, err = primitive.ObjectIDFromHex(c.ID); err != nil {
			return fmt.Errorf("invalid category id %q: %w", c.ID, err)
		}
	}
	c.ID = oid.Hex()

	doc := categoryDocument{ID: oid, Name: c.Name, Slug: c.Slug, Description: c.Description}
	_, err := m.categories.ReplaceOne(ctx, bson.M{"_id": oid}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to upsert category: %w", err)
	}
	return nil
}

// Close is a no-op; the client is shared and disconnected by its owner.
func (m *MongoStore) Close() error {
	return nil
}

func (d productDocument) toDomain() (*domain.Product, error) {
	price, err := decimal.NewFromString(d.Price.String())
	if err != nil {
		return nil, fmt.Errorf("product %s has invalid price: %w", d.ID.Hex(), err)
	}
	return &domain.Product{
		ID:          d.ID.Hex(),
		Name:        d.Name,
		Slug:        d.Slug,
		Description: d.Description,
		Price:       price,
		Images:      d.Images,
		CategoryID:  d.Category,
		Stock:       d.Stock,
		Featured:    d.Featured,
		Weight:      d.Weight,
		Origin:      d.Origin,
		Clarity:     d.Clarity,
		Cut:         d.Cut,
		Color:       d.Color,
		Ratings:     d.Ratings,
		CreatedAt:   d.CreatedAt,
	}, nil
}

func toDecimal128(d decimal.Decimal) primitive.Decimal128 {
	v, err := primitive.ParseDecimal128(d.String())
	if err != nil {
		return primitive.NewDecimal128(0, 0)
	}
	return v
}
