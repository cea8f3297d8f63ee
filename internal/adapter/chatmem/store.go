package chatmem

import (
	"context"
	"sync"
	"time"

	"dataroom-rag/internal/domain"

	"github.com/patrickmn/go-cache"
)

// Store keeps completed answers per chat session in an expiring in-memory
// cache. Sessions that stay idle past the TTL are purged; durable chat
// history lives outside this service.
type Store struct {
	// mu serializes the read-modify-write in Append; the cache itself only
	// locks individual Get and Set calls.
	mu    sync.Mutex
	cache *cache.Cache
	ttl   time.Duration
}

// NewStore creates a store whose sessions expire after ttl and are purged at
// twice that interval.
func NewStore(ttl time.Duration) *Store {
	return &Store{
		cache: cache.New(ttl, 2*ttl),
		ttl:   ttl,
	}
}

// Append adds a completed answer to its session, resetting the session TTL.
func (s *Store) Append(_ context.Context, record domain.ChatRecord) error {
	key := record.SessionID
	if key == "" {
		// Fallback answers outside a session are not worth keeping.
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var records []domain.ChatRecord
	if existing, found := s.cache.Get(key); found {
		records = existing.([]domain.ChatRecord)
	}
	records = append(records, record)
	s.cache.Set(key, records, cache.DefaultExpiration)
	return nil
}

// History returns the most recent limit records of a session, oldest first.
// limit <= 0 returns everything.
func (s *Store) History(_ context.Context, sessionID string, limit int) ([]domain.ChatRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, found := s.cache.Get(sessionID)
	if !found {
		return nil, nil
	}
	records := existing.([]domain.ChatRecord)
	if limit > 0 && len(records) > limit {
		records = records[len(records)-limit:]
	}
	out := make([]domain.ChatRecord, len(records))
	copy(out, records)
	return out, nil
}

var _ domain.ChatStore = (*Store)(nil)
