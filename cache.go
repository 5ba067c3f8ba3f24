package grove

import (
	"github.com/cespare/xxhash/v2"
	"github.com/elastic/go-freelru"
)

// DefaultCacheSize is the CachedStore capacity when none is given.
const DefaultCacheSize = 1024

// CachedStore is a read-through LRU in front of another BlobStore. Blobs
// are immutable once written, so entries never need invalidation.
type CachedStore struct {
	inner BlobStore
	lru   *freelru.SyncedLRU[string, []byte]
}

func hashID(id string) uint32 {
	return uint32(xxhash.Sum64String(id))
}

// NewCachedStore wraps inner with an LRU holding up to size blobs.
func NewCachedStore(inner BlobStore, size uint32) (*CachedStore, error) {
	if size == 0 {
		size = DefaultCacheSize
	}
	lru, err := freelru.NewSynced[string, []byte](size, hashID)
	if err != nil {
		return nil, err
	}
	return &CachedStore{inner: inner, lru: lru}, nil
}

func (s *CachedStore) Get(id string) ([]byte, error) {
	if data, ok := s.lru.Get(id); ok {
		return data, nil
	}
	data, err := s.inner.Get(id)
	if err != nil {
		return nil, err
	}
	s.lru.Add(id, data)
	return data, nil
}

func (s *CachedStore) Put(id string, data []byte) error {
	if err := s.inner.Put(id, data); err != nil {
		return err
	}
	s.lru.Add(id, data)
	return nil
}

func (s *CachedStore) Contains(id string) (bool, error) {
	if _, ok := s.lru.Peek(id); ok {
		return true, nil
	}
	return s.inner.Contains(id)
}
