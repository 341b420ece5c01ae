package box

import (
	"context"
	"sync"

	"github.com/minx-zmesh/zmesh/message"
)

// PendingAnswer is the client-side completion handle created by Ask: the
// worker resolves it when a matching Answer arrives, or Close fails it with
// ErrShutdown; on timeout or cancel Ask stops waiting and removes it from the
// pending table. Whichever observer reaches the handle first wins; later
// attempts are silent no-ops.
type PendingAnswer struct {
	done chan struct{}

	mu      sync.Mutex
	settled bool
	answer  message.Answer
	err     error
}

func newPendingAnswer() *PendingAnswer {
	return &PendingAnswer{done: make(chan struct{})}
}

// Resolve completes the handle successfully. It returns false if the handle
// was already settled by a prior Resolve/Fail.
func (p *PendingAnswer) Resolve(answer message.Answer) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.settled {
		return false
	}
	p.settled = true
	p.answer = answer
	close(p.done)
	return true
}

// Fail completes the handle with an error. It returns false if the handle
// was already settled by a prior Resolve/Fail.
func (p *PendingAnswer) Fail(err error) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.settled {
		return false
	}
	p.settled = true
	p.err = err
	close(p.done)
	return true
}

// Wait blocks until the handle is settled or ctx is done, whichever comes
// first.
func (p *PendingAnswer) Wait(ctx context.Context) (message.Answer, error) {
	select {
	case <-p.done:
		p.mu.Lock()
		defer p.mu.Unlock()
		return p.answer, p.err
	case <-ctx.Done():
		return message.Answer{}, ctx.Err()
	}
}

// AnswerSink delivers an Answer back along a Question's originating route.
// It is supplied by the router and must tolerate being called after the
// owning box has gone away.
type AnswerSink func(message.Answer)

// PendingQuestion is the server-side handle for a received Question awaiting
// a reply: it carries the question's content plus a one-shot sink that
// routes the eventual Answer back to the asker. Answer is idempotent-drop on
// every call after the first.
type PendingQuestion struct {
	ContentType       string
	Content           *string
	CorrelationID     string
	AnswerContentType *string

	once sync.Once
	sink AnswerSink
}

// NewPendingQuestion constructs a PendingQuestion from a decoded
// QuestionMessage and the sink that will route its eventual Answer back to
// the asker. Routers use this to hand accepted Questions to AcceptQuestion.
func NewPendingQuestion(q message.QuestionMessage, sink AnswerSink) *PendingQuestion {
	return newPendingQuestion(q, sink)
}

func newPendingQuestion(q message.QuestionMessage, sink AnswerSink) *PendingQuestion {
	return &PendingQuestion{
		ContentType:       q.ContentType,
		Content:           q.Content,
		CorrelationID:     q.CorrelationId,
		AnswerContentType: q.AnswerContentType,
		sink:              sink,
	}
}

// Answer delivers ans via the originating route. Only the first call has any
// effect; subsequent calls are silently dropped.
func (p *PendingQuestion) Answer(ans message.Answer) {
	p.once.Do(func() {
		if p.sink != nil {
			p.sink(ans)
		}
	})
}
