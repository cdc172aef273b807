package memory

import (
	"context"
	"time"

	"catalog-lens/internal/repository/contract"

	"github.com/patrickmn/go-cache"
)

// CredentialStore keeps session values in process memory. A non-zero ttl
// makes entries expire the way a browser store entry would.
type CredentialStore struct {
	name  string
	cache *cache.Cache
}

func NewCredentialStore(name string, ttl time.Duration) *CredentialStore {
	expiration := cache.NoExpiration
	cleanup := time.Duration(0)
	if ttl > 0 {
		expiration = ttl
		cleanup = ttl
	}
	return &CredentialStore{
		name:  name,
		cache: cache.New(expiration, cleanup),
	}
}

func (s *CredentialStore) Name() string {
	return s.name
}

func (s *CredentialStore) Get(_ context.Context, key string) (string, error) {
	if x, found := s.cache.Get(key); found {
		return x.(string), nil
	}
	return "", contract.ErrCredentialNotFound
}

func (s *CredentialStore) Set(_ context.Context, key, value string) error {
	s.cache.Set(key, value, cache.DefaultExpiration)
	return nil
}

func (s *CredentialStore) Delete(_ context.Context, key string) error {
	s.cache.Delete(key)
	return nil
}
