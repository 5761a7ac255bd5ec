package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/zuhaib446/nayab-gemstone/internal/cart/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type cartDocument struct {
	SessionID string         `bson:"_id"`
	Lines     []lineDocument `bson:"lines"`
	UpdatedAt time.Time      `bson:"updated_at"`
}

type lineDocument struct {
	ProductID string `bson:"product_id"`
	Name      string `bson:"name"`
	UnitPrice string `bson:"unit_price"`
	Image     string `bson:"image"`
	Quantity  int    `bson:"quantity"`
	Stock     int    `bson:"stock"`
}

// MongoStore keeps one document per session in the carts collection.
// A TTL index on updated_at expires idle carts.
type MongoStore struct {
	collection *mongo.Collection
	ttl        time.Duration
}

func NewMongoStore(db *mongo.Database, ttl time.Duration) *MongoStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MongoStore{
		collection: db.Collection("carts"),
		ttl:        ttl,
	}
}

func (m *MongoStore) CreateIndexes(ctx context.Context) error {
	_, err := m.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "updated_at", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(int32(m.ttl.Seconds())),
	})
	if err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}

func (m *MongoStore) Load(ctx context.Context, sessionID string) ([]domain.Line, error) {
	raw, err := m.collection.FindOne(ctx, bson.M{"_id": sessionID}).Raw()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrCartNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}

	// decoded separately so a malformed document is told apart from I/O errors
	var doc cartDocument
	if err := bson.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptCart, err)
	}

	lines := make([]domain.Line, 0, len(doc.Lines))
	for _, l := range doc.Lines {
		price, err := decimal.NewFromString(l.UnitPrice)
		if err != nil {
			return nil, fmt.Errorf("%w: line %s has price %q", ErrCorruptCart, l.ProductID, l.UnitPrice)
		}
		lines = append(lines, domain.Line{
			ProductID: l.ProductID,
			Name:      l.Name,
			UnitPrice: price,
			Image:     l.Image,
			Quantity:  l.Quantity,
			Stock:     l.Stock,
		})
	}
	return lines, nil
}

func (m *MongoStore) Save(ctx context.Context, sessionID string, lines []domain.Line) error {
	doc := cartDocument{
		SessionID: sessionID,
		Lines:     make([]lineDocument, 0, len(lines)),
		UpdatedAt: time.Now().UTC(),
	}
	for _, l := range lines {
		doc.Lines = append(doc.Lines, lineDocument{
			ProductID: l.ProductID,
			Name:      l.Name,
			UnitPrice: l.UnitPrice.String(),
			Image:     l.Image,
			Quantity:  l.Quantity,
			Stock:     l.Stock,
		})
	}

	_, err := m.collection.ReplaceOne(ctx, bson.M{"_id": sessionID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to upsert cart: %w", err)
	}
	return nil
}

func (m *MongoStore) Delete(ctx context.Context, sessionID string) error {
	if _, err := m.collection.DeleteOne(ctx, bson.M{"_id": sessionID}); err != nil {
		return fmt.Errorf("failed to delete cart: %w", err)
	}
	return nil
}
