// Package cache implements the content-addressed, first-writer-wins blob
// store consulted before and after job execution. Keys are opaque strings;
// the store never interprets them. A key, once written, is never
// overwritten.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable marks backend failures that the scheduler treats as a cache
// miss rather than a job failure. Backends wrap their I/O errors with it.
var ErrUnavailable = errors.New("cache store unavailable")

// Entry is one stored blob plus its provenance.
type Entry struct {
	Key       string
	Blob      []byte
	Origin    string
	CreatedAt time.Time
}

// Store is the cache contract. Get returns (nil, nil) on a miss. Put is
// first-writer-wins: it reports true when this call created the entry and
// false when the key already existed, in which case the stored blob is left
// untouched. Concurrent Puts to one key must resolve to exactly one winner.
type Store interface {
	Get(ctx context.Context, key string) (*Entry, error)
	Put(ctx context.Context, entry *Entry) (bool, error)
}
