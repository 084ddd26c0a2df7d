//go:build integration
// +build integration

package kvstore

import (
	"context"
	"testing"
	"time"
)

// TestMemcachedStore_GetSet_Integration verifies round trips against a live
// memcached at localhost:11211.
func TestMemcachedStore_GetSet_Integration(t *testing.T) {
	s, err := NewMemcachedStore("localhost:11211", 500*time.Millisecond, 2)
	if err != nil {
		t.Fatalf("NewMemcachedStore() error = %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	if err := s.Set(ctx, "p-int", "r1", []byte("hello"), time.Minute); err != nil {
		t.Skipf("Set failed (memcached may not be running): %v", err)
	}

	got, err := s.Get(ctx, "p-int", "r1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(got) != "hello" {
		t.Errorf("Get() = %q, want %q", got, "hello")
	}
}

// TestMemcachedStore_Miss_Integration verifies miss and delete semantics
// against a live memcached.
func TestMemcachedStore_Miss_Integration(t *testing.T) {
	s, err := NewMemcachedStore("localhost:11211", 500*time.Millisecond, 2)
	if err != nil {
		t.Fatalf("NewMemcachedStore() error = %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	if err := s.Ping(); err != nil {
		t.Skipf("memcached not reachable: %v", err)
	}

	if _, err := s.Get(ctx, "p-int", "nonexistent"); err != ErrNotFound {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
	if err := s.Delete(ctx, "p-int", "nonexistent"); err != nil {
		t.Errorf("Delete() of absent row error = %v, want nil", err)
	}
}
