package cache

import (
	"sync"
	"time"
)

type memoryItem struct {
	value      []byte
	expiration time.Time
}

func (i *memoryItem) expired(now time.Time) bool {
	return !i.expiration.IsZero() && now.After(i.expiration)
}

// MemoryBackend is an in-process Backend. Entries expire after ttl; a
// zero ttl keeps them until deleted.
type MemoryBackend struct {
	items  map[string]*memoryItem
	mu     sync.RWMutex
	ttl    time.Duration
	stopCh chan struct{}
	once   sync.Once
}

// NewMemoryBackend creates an empty in-memory cache. With a non-zero ttl
// a goroutine sweeps expired entries every minute until Close.
func NewMemoryBackend(ttl time.Duration) *MemoryBackend {
	c := &MemoryBackend{
		items:  make(map[string]*memoryItem),
		ttl:    ttl,
		stopCh: make(chan struct{}),
	}
	if ttl > 0 {
		go c.cleanupLoop()
	}
	return c
}

func (c *MemoryBackend) Set(key string, value []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	item := &memoryItem{value: value}
	if c.ttl > 0 {
		item.expiration = time.Now().Add(c.ttl)
	}
	c.items[key] = item
	return nil
}

func (c *MemoryBackend) Get(key string) ([]byte, bool, error) {
	c.mu.RLock()
	item, exists := c.items[key]
	c.mu.RUnlock()

	if !exists {
		return nil, false, nil
	}
	if item.expired(time.Now()) {
		c.Delete(key) //nolint:errcheck // never fails
		return nil, false, nil
	}
	return item.value, true, nil
}

func (c *MemoryBackend) Delete(key string) error {
	c.mu.Lock()
	delete(c.items, key)
	c.mu.Unlock()
	return nil
}

// Size returns the number of items in cache.
func (c *MemoryBackend) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.items)
}

// Keys returns all keys in cache.
func (c *MemoryBackend) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	keys := make([]string, 0, len(c.items))
	for key := range c.items {
		keys = append(keys, key)
	}

	return keys
}

func (c *MemoryBackend) Close() error {
	c.once.Do(func() { close(c.stopCh) })
	return nil
}

func (c *MemoryBackend) cleanupLoop() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.cleanup()
		case <-c.stopCh:
			return
		}
	}
}

func (c *MemoryBackend) cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for key, item := range c.items {
		if item.expired(now) {
			delete(c.items, key)
		}
	}
}
