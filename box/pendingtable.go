package box

import (
	"sync"

	"github.com/zeebo/xxh3"
)

// pendingShardCount partitions the correlation-id -> PendingAnswer table so
// that a box juggling many concurrent Asks doesn't serialize them all on one
// mutex.
const pendingShardCount = 32

type pendingShard struct {
	mu      sync.Mutex
	entries map[string]*PendingAnswer
}

// pendingAnswerTable is a hashed-sharded map from correlation_id to the
// PendingAnswer awaiting its AnswerMessage.
type pendingAnswerTable struct {
	shards [pendingShardCount]*pendingShard
}

func newPendingAnswerTable() *pendingAnswerTable {
	t := &pendingAnswerTable{}
	for i := range t.shards {
		t.shards[i] = &pendingShard{entries: make(map[string]*PendingAnswer)}
	}
	return t
}

func (t *pendingAnswerTable) shardFor(correlationID string) *pendingShard {
	h := xxh3.HashString(correlationID)
	return t.shards[h%pendingShardCount]
}

// store registers pa under correlationID, overwriting any prior entry.
func (t *pendingAnswerTable) store(correlationID string, pa *PendingAnswer) {
	s := t.shardFor(correlationID)
	s.mu.Lock()
	s.entries[correlationID] = pa
	s.mu.Unlock()
}

// load returns the PendingAnswer registered for correlationID, if any.
func (t *pendingAnswerTable) load(correlationID string) (*PendingAnswer, bool) {
	s := t.shardFor(correlationID)
	s.mu.Lock()
	defer s.mu.Unlock()
	pa, ok := s.entries[correlationID]
	return pa, ok
}

// delete removes the entry for correlationID, if present.
func (t *pendingAnswerTable) delete(correlationID string) {
	s := t.shardFor(correlationID)
	s.mu.Lock()
	delete(s.entries, correlationID)
	s.mu.Unlock()
}

// loadAndDelete atomically fetches and removes the entry for correlationID,
// so the caller that wins the race is the only one that observes it.
func (t *pendingAnswerTable) loadAndDelete(correlationID string) (*PendingAnswer, bool) {
	s := t.shardFor(correlationID)
	s.mu.Lock()
	defer s.mu.Unlock()
	pa, ok := s.entries[correlationID]
	if ok {
		delete(s.entries, correlationID)
	}
	return pa, ok
}

// failAll fails every outstanding entry with err and empties the table; used
// on box shutdown.
func (t *pendingAnswerTable) failAll(err error) {
	for _, s := range t.shards {
		s.mu.Lock()
		for id, pa := range s.entries {
			pa.Fail(err)
			delete(s.entries, id)
		}
		s.mu.Unlock()
	}
}
