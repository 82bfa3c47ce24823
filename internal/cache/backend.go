// Package cache keeps derived archive aggregates (recent threads, top
// posters, vote totals) so that pages do not recompute them on every read.
package cache

import "errors"

// ErrClosed is returned by backends used after Close.
var ErrClosed = errors.New("cache closed")

// Backend stores encoded values by key.
type Backend interface {
	Get(key string) ([]byte, bool, error)
	Set(key string, value []byte) error
	Delete(key string) error
	Close() error
}
