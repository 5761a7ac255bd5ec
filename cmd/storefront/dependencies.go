package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	cartstore "github.com/zuhaib446/nayab-gemstone/internal/cart/store"
	catalogstore "github.com/zuhaib446/nayab-gemstone/internal/catalog/store"
	"github.com/zuhaib446/nayab-gemstone/internal/config"
	storefrontgrpc "github.com/zuhaib446/nayab-gemstone/internal/grpc"
	"github.com/zuhaib446/nayab-gemstone/internal/orders/repository"
	"github.com/zuhaib446/nayab-gemstone/internal/storage/mongodb"
)

type dependencies struct {
	catalog catalogstore.Store
	carts   cartstore.Store
	orders  repository.Repository
	outbox  repository.OutboxRepository
	checks  map[string]storefrontgrpc.Check
	closers []func() error
	logger  *slog.Logger
}

func (d *dependencies) close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			d.logger.Warn("close failed", "error", err)
		}
	}
}

// openDependencies connects every backing store named by cfg. On error
// anything already opened is closed.
func openDependencies(ctx context.Context, cfg *config.Config, log *slog.Logger) (_ *dependencies, err error) {
	deps := &dependencies{checks: map[string]storefrontgrpc.Check{}, logger: log}
	defer func() {
		if err != nil {
			deps.close()
		}
	}()

	connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	var mongoDB *mongo.Database
	if cfg.NeedsMongo() {
		mongoDB, err = mongodb.Connect(connectCtx, cfg.MongoURI, cfg.MongoDBName)
		if err != nil {
			return nil, err
		}
		deps.closers = append(deps.closers, func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return mongoDB.Client().Disconnect(ctx)
		})
		deps.checks["mongodb"] = func(ctx context.Context) error {
			return mongoDB.Client().Ping(ctx, readpref.Primary())
		}
		log.Info("connected to mongodb", "database", cfg.MongoDBName)
	}

	var redisClient *redis.Client
	if cfg.NeedsRedis() {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       0,
		})
		deps.closers = append(deps.closers, redisClient.Close)
		if err = redisClient.Ping(connectCtx).Err(); err != nil {
			return nil, fmt.Errorf("redis connection failed: %w", err)
		}
		deps.checks["redis"] = func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}
		log.Info("connected to redis", "addr", cfg.RedisAddr)
	}

	if deps.catalog, err = openCatalog(connectCtx, cfg, mongoDB, log); err != nil {
		return nil, err
	}
	deps.closers = append(deps.closers, deps.catalog.Close)
	deps.checks["catalog"] = func(ctx context.Context) error {
		_, err := deps.catalog.ListCategories(ctx)
		return err
	}

	if deps.carts, err = openCarts(connectCtx, cfg, mongoDB, redisClient, log); err != nil {
		return nil, err
	}

	switch cfg.OrdersDriver {
	case config.DriverPostgres:
		repo, err := repository.NewPostgresRepository(&repository.Credentials{
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			DBName:   cfg.Postgres.DBName,
		})
		if err != nil {
			return nil, err
		}
		deps.closers = append(deps.closers, repo.Close)
		if err := repo.RunMigrations(); err != nil {
			return nil, err
		}
		deps.orders, deps.outbox = repo, repo
		deps.checks["postgres"] = repo.Ping
		log.Info("orders stored in postgres", "host", cfg.Postgres.Host, "database", cfg.Postgres.DBName)
	default:
		repo := repository.NewMemoryRepository()
		deps.orders, deps.outbox = repo, repo
		log.Warn("orders kept in memory")
	}

	return deps, nil
}

func openCatalog(ctx context.Context, cfg *config.Config, db *mongo.Database, log *slog.Logger) (catalogstore.Store, error) {
	switch cfg.CatalogDriver {
	case config.DriverSQLite:
		s, err := catalogstore.NewSQLiteStore(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		if err := s.RunMigrations(); err != nil {
			_ = s.Close()
			return nil, err
		}
		log.Info("catalog stored in sqlite", "path", cfg.SQLitePath)
		return s, nil
	case config.DriverMongo:
		s := catalogstore.NewMongoStore(db, log)
		if err := s.CreateIndexes(ctx); err != nil {
			return nil, err
		}
		log.Info("catalog stored in mongodb")
		return s, nil
	default:
		s := catalogstore.NewMemoryStore()
		if err := catalogstore.SeedDemo(ctx, s); err != nil {
			return nil, err
		}
		log.Warn("catalog kept in memory with demo products")
		return s, nil
	}
}

func openCarts(ctx context.Context, cfg *config.Config, db *mongo.Database, rdb *redis.Client, log *slog.Logger) (cartstore.Store, error) {
	switch cfg.CartStore {
	case config.DriverRedis:
		log.Info("carts stored in redis")
		return cartstore.NewRedisStore(rdb, cfg.CartTTL), nil
	case config.DriverMongo, config.DriverLayered:
		primary := cartstore.NewMongoStore(db, cfg.CartTTL)
		if err := primary.CreateIndexes(ctx); err != nil {
			return nil, err
		}
		if cfg.CartStore == config.DriverMongo {
			log.Info("carts stored in mongodb")
			return primary, nil
		}
		log.Info("carts stored in mongodb with redis cache")
		return cartstore.NewCachedStore(primary, cartstore.NewRedisStore(rdb, cfg.CartCacheTTL), log), nil
	case config.DriverMemory:
		log.Warn("carts kept in memory")
		return cartstore.NewMemoryStore(), nil
	}
	return nil, errors.New("unknown cart store " + cfg.CartStore)
}
