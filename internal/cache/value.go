package cache

import (
	"context"
	"encoding/json"
	"fmt"
)

// Key builds a cache key scoped to one entity, e.g. "Thread:12:subject".
func Key(entity string, id int64, name string) string {
	return fmt.Sprintf("%s:%d:%s", entity, id, name)
}

// Value is one cached aggregate. Reads fall back to a rebuild when the
// backend has nothing stored.
type Value[T any] struct {
	backend Backend
	key     string
	build   func(ctx context.Context) (T, error)
}

func newValue[T any](b Backend, key string, build func(ctx context.Context) (T, error)) *Value[T] {
	return &Value[T]{backend: b, key: key, build: build}
}

// Key returns the backend key of the value.
func (v *Value[T]) Key() string {
	return v.key
}

// Cached returns the stored value without rebuilding.
func (v *Value[T]) Cached() (T, bool, error) {
	var out T
	raw, ok, err := v.backend.Get(v.key)
	if err != nil || !ok {
		return out, false, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, false, fmt.Errorf("decoding %s: %w", v.key, err)
	}
	return out, true, nil
}

// Get returns the stored value, building and storing it when missing or
// unreadable.
func (v *Value[T]) Get(ctx context.Context) (T, error) {
	out, ok, err := v.Cached()
	if err == nil && ok {
		return out, nil
	}
	return v.Rebuild(ctx)
}

// Rebuild recomputes and stores the value. On failure the previous value
// stays in place.
func (v *Value[T]) Rebuild(ctx context.Context) (T, error) {
	out, err := v.build(ctx)
	if err != nil {
		return out, fmt.Errorf("rebuilding %s: %w", v.key, err)
	}
	return out, v.Set(out)
}

// Set stores value as is.
func (v *Value[T]) Set(value T) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", v.key, err)
	}
	return v.backend.Set(v.key, raw)
}

// WarmUp builds the value only if nothing is stored yet.
func (v *Value[T]) WarmUp(ctx context.Context) error {
	_, ok, err := v.Cached()
	if err == nil && ok {
		return nil
	}
	_, err = v.Rebuild(ctx)
	return err
}
