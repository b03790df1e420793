// Package resilience provides the retry loop, circuit breaker and API key
// rotation used around calls to the generation endpoint.
package resilience

import (
	"errors"
	"sync"
	"time"
)

// ErrNoKeys is returned by Next on an empty pool.
var ErrNoKeys = errors.New("keypool: no keys configured")

// KeyPool hands out API keys round-robin and skips keys that are
// currently rate-limited while another key is available. It is safe for
// concurrent use.
type KeyPool struct {
	mu      sync.Mutex
	keys    []keyEntry
	current int
	now     func() time.Time
}

type keyEntry struct {
	key       string
	resetAt   time.Time
	exhausted bool
}

// NewKeyPool creates a key pool from a list of API keys.
func NewKeyPool(keys []string) *KeyPool {
	entries := make([]keyEntry, len(keys))
	for i, k := range keys {
		entries[i] = keyEntry{key: k}
	}
	return &KeyPool{keys: entries, now: time.Now}
}

// Next returns the next available key. When every key is rate-limited it
// returns the one whose limit ends first, so callers always get a key to
// send with.
func (kp *KeyPool) Next() (string, error) {
	kp.mu.Lock()
	defer kp.mu.Unlock()

	n := len(kp.keys)
	if n == 0 {
		return "", ErrNoKeys
	}

	now := kp.now()
	for i := 0; i < n; i++ {
		idx := (kp.current + i) % n
		entry := &kp.keys[idx]

		if entry.exhausted && now.After(entry.resetAt) {
			entry.exhausted = false
		}

		if !entry.exhausted {
			kp.current = (idx + 1) % n
			return entry.key, nil
		}
	}

	earliest := 0
	for i := 1; i < n; i++ {
		if kp.keys[i].resetAt.Before(kp.keys[earliest].resetAt) {
			earliest = i
		}
	}
	kp.current = (earliest + 1) % n
	return kp.keys[earliest].key, nil
}

// MarkRateLimited takes key out of rotation until resetAt.
func (kp *KeyPool) MarkRateLimited(key string, resetAt time.Time) {
	kp.mu.Lock()
	defer kp.mu.Unlock()

	for i := range kp.keys {
		if kp.keys[i].key == key {
			kp.keys[i].exhausted = true
			kp.keys[i].resetAt = resetAt
			return
		}
	}
}

// Size returns the number of keys in the pool.
func (kp *KeyPool) Size() int {
	kp.mu.Lock()
	defer kp.mu.Unlock()
	return len(kp.keys)
}
