package api

import (
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

// storedResponse is a completed dispense response held for replay.
type storedResponse struct {
	status int
	body   []byte
}

// idempotencyGuard deduplicates dispense requests that carry an
// Idempotency-Key header. A replay within the TTL returns the original
// response verbatim instead of charging the wallet again; a concurrent
// duplicate blocks until the first request finishes.
type idempotencyGuard struct {
	mu       sync.Mutex
	inflight map[string]*sync.Mutex
	done     *cache.Cache
}

func newIdempotencyGuard(ttl time.Duration) *idempotencyGuard {
	return &idempotencyGuard{
		inflight: make(map[string]*sync.Mutex),
		done:     cache.New(ttl, 2*ttl),
	}
}

// acquire locks the key and returns any previously stored response. The
// returned release function must be called exactly once.
func (g *idempotencyGuard) acquire(key string) (*storedResponse, func()) {
	g.mu.Lock()
	keyMu, ok := g.inflight[key]
	if !ok {
		keyMu = &sync.Mutex{}
		g.inflight[key] = keyMu
	}
	g.mu.Unlock()

	keyMu.Lock()
	release := func() {
		keyMu.Unlock()
		g.mu.Lock()
		delete(g.inflight, key)
		g.mu.Unlock()
	}

	if v, found := g.done.Get(key); found {
		resp := v.(storedResponse)
		return &resp, release
	}
	return nil, release
}

// store records the response to replay for future requests with this key.
func (g *idempotencyGuard) store(key string, status int, body []byte) {
	g.done.SetDefault(key, storedResponse{status: status, body: body})
}
