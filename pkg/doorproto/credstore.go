package doorproto

import (
	"encoding/hex"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// CredentialStore caches Variant-A credential records keyed by credential_id,
// kept until expiry+grace per spec §3 ("cached by the peripheral ... kept
// until expiry + grace"). It is reloaded atomically on a backend
// cache-refresh push (spec §6).
type CredentialStore struct {
	mu       sync.RWMutex
	cache    *ttlcache.Cache[string, CredentialA]
	revoked  map[string]bool
}

// NewCredentialStore builds an empty store. Call Close when done to stop the
// cache's background janitor goroutine.
func NewCredentialStore() *CredentialStore {
	c := ttlcache.New[string, CredentialA]()
	go c.Start()
	return &CredentialStore{cache: c, revoked: make(map[string]bool)}
}

func (s *CredentialStore) Close() { s.cache.Stop() }

func credKey(id [16]byte) string { return hex.EncodeToString(id[:]) }

// Put inserts or refreshes a credential, with a TTL of (NotAfter+Grace)-now
// clamped to be non-negative.
func (s *CredentialStore) Put(c CredentialA, now time.Time) {
	ttl := c.NotAfter.Add(c.GracePeriod).Sub(now)
	if ttl < 0 {
		ttl = 0
	}
	s.cache.Set(credKey(c.CredentialID), c, ttl)
}

// Get looks up a cached credential by ID.
func (s *CredentialStore) Get(id [16]byte) (CredentialA, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item := s.cache.Get(credKey(id))
	if item == nil {
		return CredentialA{}, false
	}
	return item.Value(), true
}

// ReloadAllowlist atomically replaces the store's contents with records,
// implementing the "reloads its allowlist atomically" behavior of spec §6.
func (s *CredentialStore) ReloadAllowlist(records []CredentialA, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.DeleteAll()
	for _, c := range records {
		s.Put(c, now)
	}
}

// Evict removes one credential from the cache immediately, ahead of its TTL,
// so a revoked device is rejected by the allowlist membership check the
// instant the revocation lands rather than waiting out the cached entry.
func (s *CredentialStore) Evict(id [16]byte) {
	s.cache.Delete(credKey(id))
}

// SetRevoked marks/unmarks a revocation reference.
func (s *CredentialStore) SetRevoked(ref [16]byte, revoked bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := hex.EncodeToString(ref[:])
	if revoked {
		s.revoked[key] = true
	} else {
		delete(s.revoked, key)
	}
}

// IsRevoked implements RevocationChecker.
func (s *CredentialStore) IsRevoked(ref [16]byte) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.revoked[hex.EncodeToString(ref[:])]
}
