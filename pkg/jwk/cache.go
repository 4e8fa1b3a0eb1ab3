package jwk

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"sync"
	"time"
)

// FetchSet fetches a JWK set from the given URL and HTTP client.
func FetchSet(ctx context.Context, url string, client *http.Client) (*Set, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create JWK set request: %w", err)
	}
	req.Header.Set("Accept", "application/jwk-set+json, application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch JWK set: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch JWK set: %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read JWK set: %w", err)
	}

	set, err := ParseSet(body)
	if err != nil {
		return nil, err
	}

	if err := set.Validate(); err != nil {
		return nil, fmt.Errorf("failed to validate JWK set: %w", err)
	}

	return set, nil
}

// Store persists fetched JWK sets keyed by URL.
type Store interface {
	// Load returns the set stored for url, or nil when there is none or it
	// has expired.
	Load(ctx context.Context, url string) (*Set, error)

	// Save stores set for url for ttl.
	Save(ctx context.Context, url string, set *Set, ttl time.Duration) error

	// URLs lists the URLs with a stored set.
	URLs(ctx context.Context) ([]string, error)
}

type memoryEntry struct {
	raw     []byte
	expires time.Time
}

// MemoryStore is an in-process Store. Sets are stored as JSON so callers
// cannot mutate cached entries.
type MemoryStore struct {
	mutex   sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryStore returns an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]memoryEntry), now: time.Now}
}

func (m *MemoryStore) Load(_ context.Context, url string) (*Set, error) {
	m.mutex.RLock()
	entry, ok := m.entries[url]
	m.mutex.RUnlock()

	if !ok || m.now().After(entry.expires) {
		return nil, nil
	}

	var set Set
	if err := json.Unmarshal(entry.raw, &set); err != nil {
		return nil, fmt.Errorf("failed to decode stored JWK set: %w", err)
	}
	return &set, nil
}

func (m *MemoryStore) Save(_ context.Context, url string, set *Set, ttl time.Duration) error {
	raw, err := json.Marshal(set)
	if err != nil {
		return fmt.Errorf("failed to encode JWK set: %w", err)
	}

	m.mutex.Lock()
	m.entries[url] = memoryEntry{raw: raw, expires: m.now().Add(ttl)}
	m.mutex.Unlock()

	return nil
}

// URLs lists the URLs of unexpired sets and drops the expired ones.
func (m *MemoryStore) URLs(_ context.Context) ([]string, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	now := m.now()
	urls := make([]string, 0, len(m.entries))
	for url, entry := range m.entries {
		if now.After(entry.expires) {
			delete(m.entries, url)
			continue
		}
		urls = append(urls, url)
	}
	sort.Strings(urls)
	return urls, nil
}

// SetCache is a cache of JWK sets keyed by URL that can be easily used to verify
// tokens from multiple issuers. It handles refreshing the JWK sets when they expire
// and caching the JWK sets in a Store for a configurable amount of time.
type SetCache struct {
	store  Store
	client *http.Client

	// refreshInterval is the amount of time between refreshing JWK sets.
	refreshInterval time.Duration

	// cacheDuration is the amount of time to cache JWK sets.
	cacheDuration time.Duration

	// fetchMutex serializes fetches so that a cold cache is filled once.
	fetchMutex sync.Mutex
}

// NewSetCache returns a new JWK set cache. A nil store selects a MemoryStore,
// a nil client selects http.DefaultClient.
func NewSetCache(store Store, client *http.Client, refreshInterval, cacheDuration time.Duration) *SetCache {
	if store == nil {
		store = NewMemoryStore()
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &SetCache{
		store:           store,
		client:          client,
		refreshInterval: refreshInterval,
		cacheDuration:   cacheDuration,
	}
}

// Get returns the JWK set for the given URL, fetching it if it is not cached
// or has expired.
func (c *SetCache) Get(ctx context.Context, url string) (*Set, error) {
	set, err := c.store.Load(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to load JWK set: %w", err)
	}
	if set != nil {
		return set, nil
	}

	c.fetchMutex.Lock()
	defer c.fetchMutex.Unlock()

	// Another caller may have filled the store while we waited.
	if set, err := c.store.Load(ctx, url); err == nil && set != nil {
		return set, nil
	}

	return c.fetchLocked(ctx, url)
}

// GetKey returns the key with the given key id from the set at url.
func (c *SetCache) GetKey(ctx context.Context, url string, keyID string) (Value, error) {
	set, err := c.Get(ctx, url)
	if err != nil {
		return nil, err
	}

	key, err := set.Get(keyID)
	if err != nil {
		return nil, fmt.Errorf("failed to get key %q from JWK set: %w", keyID, err)
	}

	return key, nil
}

// Fetch fetches the JWK set for the given URL, replacing any cached copy.
func (c *SetCache) Fetch(ctx context.Context, url string) (*Set, error) {
	c.fetchMutex.Lock()
	defer c.fetchMutex.Unlock()
	return c.fetchLocked(ctx, url)
}

func (c *SetCache) fetchLocked(ctx context.Context, url string) (*Set, error) {
	set, err := FetchSet(ctx, url, c.client)
	if err != nil {
		return nil, err
	}

	if err := c.store.Save(ctx, url, set, c.cacheDuration); err != nil {
		return nil, fmt.Errorf("failed to store JWK set: %w", err)
	}

	return set, nil
}

// RefreshAll refreshes all JWK sets in the store.
func (c *SetCache) RefreshAll(ctx context.Context) error {
	urls, err := c.store.URLs(ctx)
	if err != nil {
		return fmt.Errorf("failed to list cached JWK sets: %w", err)
	}

	for _, url := range urls {
		if _, err := c.Fetch(ctx, url); err != nil {
			return fmt.Errorf("failed to refresh JWK set for %q: %w", url, err)
		}
	}
	return nil
}

// Start refreshes the JWK sets at the configured interval.
// It will block until the context is canceled, and will only return an error if
// the refresh fails, possibly due to a network error.
//
// Most callers will want to call this in a goroutine after creating the cache.
func (c *SetCache) Start(ctx context.Context) error {
	ticker := time.NewTicker(c.refreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := c.RefreshAll(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("failed to refresh JWK sets: %w", err)
			}
		}
	}
}
