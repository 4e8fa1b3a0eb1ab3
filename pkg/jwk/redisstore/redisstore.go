// Package redisstore keeps fetched JWK sets in Redis, so that every
// instance of a service shares one copy of each remote set.
//
//	client, err := redisstore.Connect(ctx, "redis://localhost:6379/0")
//	if err != nil {
//		return err
//	}
//	cache := jwk.NewSetCache(redisstore.New(client, ""), http.DefaultClient, 15*time.Minute, time.Hour)
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/anvilresearch/jose-sub000/pkg/jwk"
	"github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces the keys written by a Store.
const DefaultPrefix = "jose:jwks:"

var (
	ErrEmptyConnectionURL = errors.New("redisstore: empty connection URL")
	ErrNotReady           = errors.New("redisstore: redis is not ready")
)

// Store is a jwk.Store backed by Redis. Each set is a JSON string under
// prefix+url that expires with its TTL; the URLs are tracked in a Redis set
// under prefix+"urls".
type Store struct {
	client redis.UniversalClient
	prefix string
}

var _ jwk.Store = (*Store)(nil)

// New wraps client. An empty prefix selects DefaultPrefix.
func New(client redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Store{client: client, prefix: prefix}
}

// Connect parses a redis:// or rediss:// URL and pings the server.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	if url == "" {
		return nil, ErrEmptyConnectionURL
	}

	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redisstore: failed to parse connection URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Join(ErrNotReady, err)
	}

	return client, nil
}

func (s *Store) key(url string) string {
	return s.prefix + "set:" + url
}

func (s *Store) index() string {
	return s.prefix + "urls"
}

// Load returns the set stored for url, or nil when it is missing or expired.
func (s *Store) Load(ctx context.Context, url string) (*jwk.Set, error) {
	data, err := s.client.Get(ctx, s.key(url)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redisstore: failed to load %q: %w", url, err)
	}

	set, err := jwk.ParseSet(data)
	if err != nil {
		return nil, fmt.Errorf("redisstore: stored set for %q: %w", url, err)
	}
	return set, nil
}

// Save stores set for url for ttl.
func (s *Store) Save(ctx context.Context, url string, set *jwk.Set, ttl time.Duration) error {
	data, err := json.Marshal(set)
	if err != nil {
		return fmt.Errorf("redisstore: failed to encode set: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(url), data, ttl)
		pipe.SAdd(ctx, s.index(), url)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redisstore: failed to save %q: %w", url, err)
	}
	return nil
}

// URLs lists the URLs whose sets have not expired. Expired URLs are dropped
// from the index.
func (s *Store) URLs(ctx context.Context) ([]string, error) {
	urls, err := s.client.SMembers(ctx, s.index()).Result()
	if err != nil {
		return nil, fmt.Errorf("redisstore: failed to list URLs: %w", err)
	}

	live := make([]string, 0, len(urls))
	for _, url := range urls {
		n, err := s.client.Exists(ctx, s.key(url)).Result()
		if err != nil {
			return nil, fmt.Errorf("redisstore: failed to check %q: %w", url, err)
		}
		if n == 0 {
			if err := s.client.SRem(ctx, s.index(), url).Err(); err != nil {
				return nil, fmt.Errorf("redisstore: failed to drop %q: %w", url, err)
			}
			continue
		}
		live = append(live, url)
	}

	return live, nil
}
