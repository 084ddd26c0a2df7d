package kvstore

import (
	"context"
	"strings"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
)

// MemcachedStore implements Store on memcached, giving cache and rate-limit
// rows cross-instance visibility.
type MemcachedStore struct {
	client *memcache.Client
}

// NewMemcachedStore creates a MemcachedStore. addrs is a comma-separated
// list (e.g. "localhost:11211" or "host1:11211,host2:11211"). timeout and
// maxIdleConns configure the client; both use package defaults if zero.
func NewMemcachedStore(addrs string, timeout time.Duration, maxIdleConns int) (*MemcachedStore, error) {
	servers := parseAddrs(addrs)
	if len(servers) == 0 {
		servers = []string{"localhost:11211"}
	}
	client := memcache.New(servers...)
	if timeout > 0 {
		client.Timeout = timeout
	}
	if maxIdleConns > 0 {
		client.MaxIdleConns = maxIdleConns
	}
	return &MemcachedStore{client: client}, nil
}

func parseAddrs(s string) []string {
	var out []string
	for _, a := range strings.Split(s, ",") {
		a = strings.TrimSpace(a)
		if a != "" {
			out = append(out, a)
		}
	}
	return out
}

// Get implements Store.Get. Maps a memcached miss to ErrNotFound.
func (s *MemcachedStore) Get(ctx context.Context, partition, row string) ([]byte, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	item, err := s.client.Get(compositeKey(partition, row))
	if err != nil {
		if err == memcache.ErrCacheMiss {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return item.Value, nil
}

// Set implements Store.Set. expiry values beyond memcached's 30-day
// relative maximum are stored without expiry.
func (s *MemcachedStore) Set(ctx context.Context, partition, row string, value []byte, expiry time.Duration) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	const maxRelativeExp = 30 * 24 * 60 * 60 // memcached relative expiry cap
	expSec := int32(expiry.Seconds())
	if expSec < 0 || int64(expiry.Seconds()) > maxRelativeExp {
		expSec = 0
	}
	return s.client.Set(&memcache.Item{
		Key:        compositeKey(partition, row),
		Value:      value,
		Expiration: expSec,
	})
}

// Delete implements Store.Delete. A miss is not an error.
func (s *MemcachedStore) Delete(ctx context.Context, partition, row string) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	err := s.client.Delete(compositeKey(partition, row))
	if err == memcache.ErrCacheMiss {
		return nil
	}
	return err
}

// Ping checks if memcached is reachable. Used for health checks.
func (s *MemcachedStore) Ping() error {
	return s.client.Ping()
}

// Close closes the memcached client connections. Call during shutdown.
func (s *MemcachedStore) Close() error {
	return s.client.Close()
}
