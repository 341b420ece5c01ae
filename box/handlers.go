package box

import (
	"sync"

	"github.com/minx-zmesh/zmesh/message"
)

// TellHandler processes a Tell's content, dispatched synchronously from the
// goroutine that dequeued it. Handlers must be fast and non-blocking; slow
// work should be handed off elsewhere.
type TellHandler func(content *string)

// AnswerHandler processes a Question's content and produces the Answer
// routed back to the asker.
type AnswerHandler func(content *string) message.Answer

// Observer is notified of every Tell/Question arrival; it must not consume
// the message (no dequeue side effects).
type Observer func(contentType string)

// Subscription is returned by OnTellReceived/OnQuestionReceived. Calling
// Unsubscribe removes the callback; it is safe to call more than once and
// safe to call after the owning box has been closed.
type Subscription struct {
	unsub func()
	once  sync.Once
}

// Unsubscribe removes the observer callback this subscription was issued for.
func (s *Subscription) Unsubscribe() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		if s.unsub != nil {
			s.unsub()
		}
	})
}

// handlerRegistry enforces the spec's at-most-one-handler-per-content-type
// rule and fans out observer notifications. All methods are safe for
// concurrent use.
type handlerRegistry struct {
	mu     sync.Mutex
	listen map[string]TellHandler
	answer map[string]AnswerHandler

	nextID   uint64
	tellObs  map[uint64]Observer
	questObs map[uint64]Observer
}

func newHandlerRegistry() *handlerRegistry {
	return &handlerRegistry{
		listen:   make(map[string]TellHandler),
		answer:   make(map[string]AnswerHandler),
		tellObs:  make(map[uint64]Observer),
		questObs: make(map[uint64]Observer),
	}
}

// tryRegisterListen registers a Tell handler for contentType, failing if one
// is already registered (invariant: at most one listen handler per type).
func (r *handlerRegistry) tryRegisterListen(contentType string, h TellHandler) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.listen[contentType]; exists {
		return false
	}
	r.listen[contentType] = h
	return true
}

// tryRegisterAnswer registers a Question handler for contentType, failing if
// one is already registered.
func (r *handlerRegistry) tryRegisterAnswer(contentType string, h AnswerHandler) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.answer[contentType]; exists {
		return false
	}
	r.answer[contentType] = h
	return true
}

func (r *handlerRegistry) getListen(contentType string) (TellHandler, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.listen[contentType]
	return h, ok
}

func (r *handlerRegistry) getAnswer(contentType string) (AnswerHandler, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.answer[contentType]
	return h, ok
}

func (r *handlerRegistry) onTellReceived(cb Observer) *Subscription {
	r.mu.Lock()
	id := r.nextID
	r.nextID++
	r.tellObs[id] = cb
	r.mu.Unlock()

	return &Subscription{unsub: func() {
		r.mu.Lock()
		delete(r.tellObs, id)
		r.mu.Unlock()
	}}
}

func (r *handlerRegistry) onQuestionReceived(cb Observer) *Subscription {
	r.mu.Lock()
	id := r.nextID
	r.nextID++
	r.questObs[id] = cb
	r.mu.Unlock()

	return &Subscription{unsub: func() {
		r.mu.Lock()
		delete(r.questObs, id)
		r.mu.Unlock()
	}}
}

func (r *handlerRegistry) fireTell(contentType string) {
	r.mu.Lock()
	cbs := make([]Observer, 0, len(r.tellObs))
	for _, cb := range r.tellObs {
		cbs = append(cbs, cb)
	}
	r.mu.Unlock()

	for _, cb := range cbs {
		cb(contentType)
	}
}

func (r *handlerRegistry) fireQuestion(contentType string) {
	r.mu.Lock()
	cbs := make([]Observer, 0, len(r.questObs))
	for _, cb := range r.questObs {
		cbs = append(cbs, cb)
	}
	r.mu.Unlock()

	for _, cb := range cbs {
		cb(contentType)
	}
}
