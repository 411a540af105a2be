// Copyright 2026 The HardenMQTT Authors
// SPDX-License-Identifier: Apache-2.0

package troll

import (
	"crypto/sha256"
	"sync"
	"time"

	"github.com/hardenmqtt/hardenmqtt/lib/clock"
)

// DigestCache is a thread-safe, TTL-bounded set of content digests the
// troll has itself emitted, used to suppress feedback loops: a message
// the troll published reappears on its own "#" subscription, and must
// be recognized and dropped rather than perturbed again.
//
// The shape -- a mutex-guarded map plus a TTL-based Cleanup -- mirrors
// a revocation list's "ID seen recently" problem; entries age out
// automatically instead of growing without bound.
type DigestCache struct {
	mu      sync.Mutex
	entries map[[sha256.Size]byte]time.Time
	ttl     time.Duration
	clock   clock.Clock
}

// DefaultTTL is how long a recorded digest is remembered before it is
// assumed lost and swept by Cleanup.
const DefaultTTL = 60 * time.Second

// NewDigestCache creates an empty cache with the given TTL and clock.
func NewDigestCache(ttl time.Duration, clk clock.Clock) *DigestCache {
	return &DigestCache{
		entries: make(map[[sha256.Size]byte]time.Time),
		ttl:     ttl,
		clock:   clk,
	}
}

// Digest computes SHA-256(topic ‖ payload), the key used to recognize
// a republished message as the troll's own prior emission.
func Digest(topic string, payload []byte) [sha256.Size]byte {
	h := sha256.New()
	h.Write([]byte(topic))
	h.Write(payload)
	var out [sha256.Size]byte
	copy(out[:], h.Sum(nil))
	return out
}

// Record inserts digest with an expiry ttl in the future. Call this
// just before publishing a perturbation.
func (c *DigestCache) Record(digest [sha256.Size]byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[digest] = c.clock.Now().Add(c.ttl)
}

// ConsumeIfPresent looks up digest; if found (and not yet expired) it
// removes the entry and returns true, meaning the caller should skip
// this message as its own prior emission. An expired entry is treated
// as absent and removed opportunistically.
func (c *DigestCache) ConsumeIfPresent(digest [sha256.Size]byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	expiresAt, ok := c.entries[digest]
	if !ok {
		return false
	}
	delete(c.entries, digest)
	return c.clock.Now().Before(expiresAt)
}

// Cleanup removes every entry whose TTL has elapsed, bounding memory
// use for digests the troll recorded but never saw echoed back (e.g.
// because the broker dropped the republication).
func (c *DigestCache) Cleanup(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for digest, expiresAt := range c.entries {
		if !now.Before(expiresAt) {
			delete(c.entries, digest)
			removed++
		}
	}
	return removed
}

// Len reports the current number of tracked digests.
func (c *DigestCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
