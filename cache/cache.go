// Package cache implements ZMesh's at-most-once answer cache: a correlation
// id is marked "seen" the first time a Question carrying it arrives, and its
// Answer (once produced) is cached so a retried delivery of the same
// Question is served idempotently instead of re-invoking the answer
// handler. Storage is a mutex-guarded map keyed by correlation id, each
// entry carrying its expiry time; this cache prunes synchronously on each
// Observe call rather than
// via a background ticker, per the spec's "on every accept_question, prune
// entries whose expires_at has passed" rule.
package cache

import (
	"sync"
	"time"

	"github.com/minx-zmesh/zmesh/message"
)

type entry struct {
	answer    *message.Answer
	expiresAt time.Time
}

// AnswerCache deduplicates retried Questions for one MessageBox.
type AnswerCache struct {
	ttl     time.Duration
	mu      sync.Mutex
	entries map[string]*entry
	now     func() time.Time
}

// New creates an AnswerCache with the given entry lifetime.
func New(ttl time.Duration) *AnswerCache {
	return &AnswerCache{
		ttl:     ttl,
		entries: make(map[string]*entry),
		now:     time.Now,
	}
}

// Observe records that a Question with this correlation id has been seen.
// It returns true if the id was already present (a retry of a previously
// seen Question), false if this is the first time.
func (c *AnswerCache) Observe(correlationID string) (alreadySeen bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pruneLocked()

	if _, ok := c.entries[correlationID]; ok {
		return true
	}

	c.entries[correlationID] = &entry{expiresAt: c.now().Add(c.ttl)}
	return false
}

// SetAnswer caches the Answer produced for a previously Observe'd
// correlation id so later retries can be served without re-invoking the
// answer handler.
func (c *AnswerCache) SetAnswer(correlationID string, answer message.Answer) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[correlationID]
	if !ok {
		e = &entry{expiresAt: c.now().Add(c.ttl)}
		c.entries[correlationID] = e
	}
	e.answer = &answer
}

// Answer returns the cached Answer for a correlation id, if one has been
// set and has not expired.
func (c *AnswerCache) Answer(correlationID string) (message.Answer, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[correlationID]
	if !ok || e.answer == nil || c.now().After(e.expiresAt) {
		return message.Answer{}, false
	}
	return *e.answer, true
}

// Len reports the number of live (unexpired) entries, for tests.
func (c *AnswerCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pruneLocked()
	return len(c.entries)
}

func (c *AnswerCache) pruneLocked() {
	now := c.now()
	for id, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, id)
		}
	}
}
