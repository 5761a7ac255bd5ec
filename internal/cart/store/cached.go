package store

import (
	"context"
	"errors"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"

	"github.com/zuhaib446/nayab-gemstone/internal/cart/domain"
	"golang.org/x/sync/singleflight"
)

const cacheStripes = 64

// CachedStore layers a cache (Redis) over a durable primary (MongoDB).
// Reads go cache first; writes go to the primary and then invalidate the
// cache entry. Cache failures are logged and never fail the call.
//
// A miss fills the cache only if no write to the session landed while the
// primary was being read. Writes bump a version per session stripe, and the
// fill compares that version under the stripe lock. Fills from other
// processes are not covered; the cache TTL bounds how long those can linger.
type CachedStore struct {
	primary Store
	cache   Store
	logger  *slog.Logger
	sfg     singleflight.Group // collapses concurrent misses for one session
	stripes [cacheStripes]stripe
}

type stripe struct {
	mu      sync.Mutex
	version uint64
}

func NewCachedStore(primary, cache Store, logger *slog.Logger) *CachedStore {
	return &CachedStore{
		primary: primary,
		cache:   cache,
		logger:  logger,
	}
}

func (s *CachedStore) Load(ctx context.Context, sessionID string) ([]domain.Line, error) {
	v, err, _ := s.sfg.Do(sessionID, func() (interface{}, error) {
		lines, err := s.cache.Load(ctx, sessionID)
		if err == nil {
			return lines, nil
		}
		if !errors.Is(err, ErrCartNotFound) {
			s.logger.WarnContext(ctx, "cart cache get failed", "session_id", sessionID, "error", err)
		}

		st := s.stripeFor(sessionID)
		st.mu.Lock()
		seen := st.version
		st.mu.Unlock()

		lines, err = s.primary.Load(ctx, sessionID)
		if err != nil {
			return nil, err
		}

		s.fill(ctx, st, seen, sessionID, lines)
		return lines, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]domain.Line), nil
}

// fill writes lines to the cache unless the session was written since seen.
func (s *CachedStore) fill(ctx context.Context, st *stripe, seen uint64, sessionID string, lines []domain.Line) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.version != seen {
		return
	}

	setCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
	defer cancel()
	if err := s.cache.Save(setCtx, sessionID, lines); err != nil {
		s.logger.WarnContext(ctx, "cart cache set failed", "session_id", sessionID, "error", err)
	}
}

func (s *CachedStore) Save(ctx context.Context, sessionID string, lines []domain.Line) error {
	if err := s.primary.Save(ctx, sessionID, lines); err != nil {
		return err
	}
	s.invalidate(sessionID)
	return nil
}

func (s *CachedStore) Delete(ctx context.Context, sessionID string) error {
	if err := s.primary.Delete(ctx, sessionID); err != nil {
		return err
	}
	s.invalidate(sessionID)
	return nil
}

func (s *CachedStore) invalidate(sessionID string) {
	st := s.stripeFor(sessionID)
	st.mu.Lock()
	defer st.mu.Unlock()
	st.version++

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.cache.Delete(ctx, sessionID); err != nil {
		s.logger.Warn("cart cache invalidate failed", "session_id", sessionID, "error", err)
	}
}

func (s *CachedStore) stripeFor(sessionID string) *stripe {
	h := fnv.New32a()
	_, _ = h.Write([]byte(sessionID))
	return &s.stripes[h.Sum32()%cacheStripes]
}
