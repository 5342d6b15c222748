package api

import (
	"time"

	"github.com/google/uuid"
	"github.com/jellydator/ttlcache/v3"

	"github.com/gpunexus/gpuf/internal/engine"
)

// ResultStore keeps finished generations for later retrieval by id. Entries
// expire ttl after they were saved; reads do not extend them.
type ResultStore struct {
	cache *ttlcache.Cache[uuid.UUID, engine.GenerationResult]
}

func NewResultStore(ttl time.Duration) *ResultStore {
	c := ttlcache.New[uuid.UUID, engine.GenerationResult](
		ttlcache.WithTTL[uuid.UUID, engine.GenerationResult](ttl),
		ttlcache.WithDisableTouchOnHit[uuid.UUID, engine.GenerationResult](),
	)
	go c.Start()
	return &ResultStore{cache: c}
}

// Close stops the expiration loop.
func (s *ResultStore) Close() {
	s.cache.Stop()
}

func (s *ResultStore) Save(res engine.GenerationResult) {
	s.cache.Set(res.ID, res, ttlcache.DefaultTTL)
}

func (s *ResultStore) Get(id uuid.UUID) (engine.GenerationResult, bool) {
	item := s.cache.Get(id)
	if item == nil {
		return engine.GenerationResult{}, false
	}
	return item.Value(), true
}

func (s *ResultStore) Len() int {
	return s.cache.Len()
}
