package kvstore

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when no row exists for the composite key.
var ErrNotFound = errors.New("kvstore: row not found")

// Store is a composite-key row store. Rows are addressed by (partition, row)
// and hold an opaque value. Per-row operations are atomic; read-modify-write
// sequences across Get and Set are not.
//
// expiry on Set is a store-level lifetime for the row; zero means the row
// never expires. Callers that need read-path TTL semantics (the weather
// cache) pass zero and validate age themselves.
type Store interface {
	Get(ctx context.Context, partition, row string) ([]byte, error)
	Set(ctx context.Context, partition, row string, value []byte, expiry time.Duration) error
	Delete(ctx context.Context, partition, row string) error
}
