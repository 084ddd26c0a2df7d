package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/kjstillabower/weather-cache-api/internal/kvstore"
	"github.com/kjstillabower/weather-cache-api/internal/models"
)

// latestRow is the single row each city partition holds; every write is a
// full overwrite of this row.
const latestRow = "latest"

// Store is a read-through TTL cache for weather payloads keyed by city,
// backed by a kvstore. Entries past the TTL are treated as absent on read
// but are not physically deleted; Clear removes them explicitly.
type Store struct {
	store kvstore.Store
	ttl   time.Duration
	now   func() time.Time
}

// envelope is the serialized cache row: payload as a transport-safe string
// plus the UTC write timestamp used for TTL validation.
type envelope struct {
	PayloadJSON  string `json:"payloadJson"`
	TimestampUTC string `json:"timestampUtc"`
}

// New creates a cache Store with the given backing store and TTL.
func New(store kvstore.Store, ttl time.Duration) *Store {
	return &Store{store: store, ttl: ttl, now: time.Now}
}

// Key returns the deterministic cache partition for a city: sha1 hex of the
// lowercase name.
func Key(city string) string {
	sum := sha1.Sum([]byte(strings.ToLower(city)))
	return hex.EncodeToString(sum[:])
}

// Get returns the cached payload for a city if a valid entry exists.
// Absence (no row, unparsable timestamp, age beyond TTL) is a normal
// result, not an error; err is only set for backing-store failures.
func (s *Store) Get(ctx context.Context, city string) (models.WeatherPayload, bool, error) {
	raw, err := s.store.Get(ctx, Key(city), latestRow)
	if err != nil {
		if err == kvstore.ErrNotFound {
			return models.WeatherPayload{}, false, nil
		}
		return models.WeatherPayload{}, false, err
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return models.WeatherPayload{}, false, nil
	}
	written, err := time.Parse(time.RFC3339Nano, env.TimestampUTC)
	if err != nil {
		return models.WeatherPayload{}, false, nil
	}
	if s.now().UTC().Sub(written) > s.ttl {
		return models.WeatherPayload{}, false, nil
	}

	var payload models.WeatherPayload
	if err := json.Unmarshal([]byte(env.PayloadJSON), &payload); err != nil {
		return models.WeatherPayload{}, false, nil
	}
	return payload, true, nil
}

// Set overwrites the city's entry with the payload and the current UTC
// timestamp. Always a full replace, never a partial merge.
func (s *Store) Set(ctx context.Context, city string, payload models.WeatherPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	env := envelope{
		PayloadJSON:  string(body),
		TimestampUTC: s.now().UTC().Format(time.RFC3339Nano),
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	// No store-level expiry. TTL is enforced on read; stale rows stay in
	// place until overwritten or cleared.
	return s.store.Set(ctx, Key(city), latestRow, raw, 0)
}

// Clear removes the city's entry. Clearing an absent entry is a no-op.
func (s *Store) Clear(ctx context.Context, city string) error {
	return s.store.Delete(ctx, Key(city), latestRow)
}

// TTL returns the configured entry lifetime.
func (s *Store) TTL() time.Duration {
	return s.ttl
}
