package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/kjstillabower/weather-cache-api/internal/kvstore"
	"github.com/kjstillabower/weather-cache-api/internal/models"
)

func testPayload() models.WeatherPayload {
	return models.WeatherPayload{
		Latitude:  26.9124,
		Longitude: 75.7873,
		Current:   json.RawMessage(`{"time":"2026-08-23T10:00","temperature_2m":31.5}`),
	}
}

// TestStore_RoundTrip verifies that Set immediately followed by Get within
// the TTL returns the exact payload written.
func TestStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := New(kvstore.NewMemoryStore(), 10*time.Minute)

	want := testPayload()
	if err := s.Set(ctx, "jaipur", want); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	got, ok, err := s.Get(ctx, "jaipur")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !ok {
		t.Fatal("Get() ok = false, want true")
	}
	if got.Latitude != want.Latitude || got.Longitude != want.Longitude {
		t.Errorf("Get() coordinates = (%v, %v), want (%v, %v)", got.Latitude, got.Longitude, want.Latitude, want.Longitude)
	}
	if string(got.Current) != string(want.Current) {
		t.Errorf("Get() current = %s, want %s", got.Current, want.Current)
	}
}

// TestStore_Get_CaseInsensitiveKey verifies that differently cased city
// names address the same entry.
func TestStore_Get_CaseInsensitiveKey(t *testing.T) {
	ctx := context.Background()
	s := New(kvstore.NewMemoryStore(), 10*time.Minute)

	if err := s.Set(ctx, "Jaipur", testPayload()); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	_, ok, err := s.Get(ctx, "jaipur")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !ok {
		t.Error("Get() with lowercase name ok = false, want true")
	}
}

// TestStore_Get_Miss verifies that absence is a normal result, not an error.
func TestStore_Get_Miss(t *testing.T) {
	ctx := context.Background()
	s := New(kvstore.NewMemoryStore(), 10*time.Minute)

	_, ok, err := s.Get(ctx, "nonexistent")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if ok {
		t.Error("Get() ok = true, want false for miss")
	}
}

// TestStore_Get_Expired verifies that an entry older than the TTL reads as
// absent while still physically existing in the backing store.
func TestStore_Get_Expired(t *testing.T) {
	ctx := context.Background()
	backing := kvstore.NewMemoryStore()
	s := New(backing, 10*time.Minute)

	writeTime := time.Now().UTC().Add(-time.Hour)
	s.now = func() time.Time { return writeTime }
	if err := s.Set(ctx, "delhi", testPayload()); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	s.now = time.Now
	_, ok, err := s.Get(ctx, "delhi")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if ok {
		t.Error("Get() ok = true, want false for expired entry")
	}

	// The row is not physically deleted by the read path.
	if _, err := backing.Get(ctx, Key("delhi"), "latest"); err != nil {
		t.Errorf("expired entry missing from backing store: %v", err)
	}
}

// TestStore_Get_UnparsableTimestamp verifies that a corrupted timestamp is
// treated as absence rather than an error.
func TestStore_Get_UnparsableTimestamp(t *testing.T) {
	ctx := context.Background()
	backing := kvstore.NewMemoryStore()
	s := New(backing, 10*time.Minute)

	raw, _ := json.Marshal(envelope{PayloadJSON: `{"latitude":1}`, TimestampUTC: "not-a-timestamp"})
	if err := backing.Set(ctx, Key("mumbai"), "latest", raw, 0); err != nil {
		t.Fatalf("backing Set() error = %v", err)
	}

	_, ok, err := s.Get(ctx, "mumbai")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if ok {
		t.Error("Get() ok = true, want false for unparsable timestamp")
	}
}

// TestStore_Clear verifies that Clear removes an entry, and that clearing
// an absent entry is a no-op.
func TestStore_Clear(t *testing.T) {
	ctx := context.Background()
	s := New(kvstore.NewMemoryStore(), 10*time.Minute)

	if err := s.Clear(ctx, "never-cached"); err != nil {
		t.Fatalf("Clear() of absent entry error = %v, want nil", err)
	}

	if err := s.Set(ctx, "jaipur", testPayload()); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := s.Clear(ctx, "jaipur"); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}

	_, ok, err := s.Get(ctx, "jaipur")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if ok {
		t.Error("Get() after Clear ok = true, want false")
	}
}

// TestStore_Set_Overwrites verifies that writes fully replace the previous
// entry rather than merging.
func TestStore_Set_Overwrites(t *testing.T) {
	ctx := context.Background()
	s := New(kvstore.NewMemoryStore(), 10*time.Minute)

	first := testPayload()
	if err := s.Set(ctx, "jaipur", first); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	second := models.WeatherPayload{Latitude: 1, Longitude: 2, Current: json.RawMessage(`{}`)}
	if err := s.Set(ctx, "jaipur", second); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	got, ok, err := s.Get(ctx, "jaipur")
	if err != nil || !ok {
		t.Fatalf("Get() = ok %v, err %v", ok, err)
	}
	if got.Latitude != 1 || string(got.Current) != "{}" {
		t.Errorf("Get() = %+v, want the second write", got)
	}
}

// TestKey_Deterministic verifies the key is stable and case-normalized.
func TestKey_Deterministic(t *testing.T) {
	if Key("Jaipur") != Key("jaipur") {
		t.Error("Key() differs across case, want identical")
	}
	if Key("jaipur") == Key("delhi") {
		t.Error("Key() collides for different cities")
	}
	if len(Key("jaipur")) != 40 {
		t.Errorf("Key() length = %d, want 40 hex chars", len(Key("jaipur")))
	}
}
