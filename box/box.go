// Package box implements MessageBox: the per-name mailbox that owns a
// DEALER socket, its worker, and the handler/dispatch state described by the
// core engine. Any box can act as both client (Tell/Ask) and server
// (try_listen/try_answer) for any content type.
package box

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-zeromq/zmq4"
	"go.uber.org/zap"

	"github.com/minx-zmesh/zmesh/cache"
	"github.com/minx-zmesh/zmesh/config"
	"github.com/minx-zmesh/zmesh/idgen"
	"github.com/minx-zmesh/zmesh/message"
	"github.com/minx-zmesh/zmesh/zmetrics"
)

// MessageBox is a named mailbox within a Node. It is created lazily by
// Node.At and is safe for concurrent use by any number of callers.
type MessageBox struct {
	name     string
	identity string

	sock   zmq4.Socket
	worker *worker

	handlers *handlerRegistry
	pending  *pendingAnswerTable
	cache    *cache.AnswerCache

	cfg     config.BoxConfig
	logger  *zap.Logger
	metrics *zmetrics.Metrics

	bufMu       sync.Mutex
	tellBuf     map[string][]*string
	questionBuf map[string][]*PendingQuestion

	closeOnce sync.Once
	closed    chan struct{}
}

// New dials a DEALER socket to address and starts its worker. Node uses this
// to create a box lazily the first time a name is looked up.
func New(ctx context.Context, name, address string, cfg config.BoxConfig) (*MessageBox, error) {
	return newMessageBox(ctx, name, address, cfg)
}

// newMessageBox dials a DEALER socket to address and starts its worker.
// Callers are the Node, which owns the box's lifetime from here on.
func newMessageBox(ctx context.Context, name, address string, cfg config.BoxConfig) (*MessageBox, error) {
	identity := idgen.NewRoutingIdentity()
	sock := zmq4.NewDealer(ctx, zmq4.WithID(zmq4.SocketIdentity(identity)))

	if err := sock.Dial("tcp://" + address); err != nil {
		return nil, transportErr("dial "+address, err)
	}

	b := &MessageBox{
		name:        name,
		identity:    identity,
		sock:        sock,
		handlers:    newHandlerRegistry(),
		pending:     newPendingAnswerTable(),
		cache:       cache.New(cfg.CacheTTL),
		cfg:         cfg,
		logger:      cfg.ResolvedLogger(),
		metrics:     cfg.Metrics,
		tellBuf:     make(map[string][]*string),
		questionBuf: make(map[string][]*PendingQuestion),
		closed:      make(chan struct{}),
	}

	b.worker = newWorker(sock, cfg.QueueSize, b.resolveAnswer, b.logger, b.metrics)
	b.worker.start()
	return b, nil
}

// Name returns the box's name within its node.
func (b *MessageBox) Name() string { return b.name }

// Tell enqueues a one-way TellMessage and returns without waiting for
// delivery.
func (b *MessageBox) Tell(contentType string, content *string) error {
	if contentType == "" {
		return ErrInvalidArgument
	}
	select {
	case <-b.closed:
		return ErrShutdown
	default:
	}

	payload, err := message.EncodeTell(message.TellMessage{
		ContentType:    contentType,
		Content:        content,
		MessageBoxName: b.name,
	}, b.cfg.CompressionThreshold)
	if err != nil {
		return err
	}

	if err := b.worker.enqueue(message.TypeTell, payload); err != nil {
		if b.metrics != nil {
			b.metrics.BusyRejected()
		}
		return err
	}
	if b.metrics != nil {
		b.metrics.TellSent()
	}
	return nil
}

// Ask sends a QuestionMessage and waits for its Answer, making up to
// opts.MaxRetries attempts (the first included) with opts.Timeout per attempt. ctx bounds the whole
// call; cancelling it returns ErrCancelled promptly.
func (b *MessageBox) Ask(ctx context.Context, contentType string, content, answerContentType *string, opts config.RequestOptions) (message.Answer, error) {
	if contentType == "" {
		return message.Answer{}, ErrInvalidArgument
	}
	if err := opts.Validate(); err != nil {
		return message.Answer{}, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	select {
	case <-b.closed:
		return message.Answer{}, ErrShutdown
	default:
	}

	correlationID := idgen.NewCorrelationID()
	start := time.Now()
	if b.metrics != nil {
		b.metrics.AskStarted()
	}

	for attempt := 0; attempt < opts.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			if b.metrics != nil {
				b.metrics.AskFinished("cancelled", time.Since(start))
			}
			return message.Answer{}, ErrCancelled
		}

		pa := newPendingAnswer()
		b.pending.store(correlationID, pa)

		payload, err := message.EncodeQuestion(message.QuestionMessage{
			ContentType:       contentType,
			Content:           content,
			MessageBoxName:    b.name,
			CorrelationId:     correlationID,
			AnswerContentType: answerContentType,
		}, b.cfg.CompressionThreshold)
		if err != nil {
			b.pending.delete(correlationID)
			return message.Answer{}, err
		}

		if err := b.worker.enqueue(message.TypeQuestion, payload); err != nil {
			b.pending.delete(correlationID)
			if b.metrics != nil {
				b.metrics.BusyRejected()
			}
			return message.Answer{}, err
		}
		if b.metrics != nil {
			b.metrics.QuestionAsked(attempt > 0)
		}

		attemptCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
		ans, waitErr := pa.Wait(attemptCtx)
		cancel()
		b.pending.delete(correlationID)

		if waitErr == nil {
			if b.metrics != nil {
				b.metrics.AskFinished("ok", time.Since(start))
			}
			return ans, nil
		}

		// A settled PendingAnswer (Resolve/Fail already observed by the
		// worker or Close) always wins over a context error: it means the
		// race already has a definitive outcome, most commonly ErrShutdown.
		if !errors.Is(waitErr, context.Canceled) && !errors.Is(waitErr, context.DeadlineExceeded) {
			if b.metrics != nil {
				b.metrics.AskFinished("shutdown", time.Since(start))
			}
			return message.Answer{}, waitErr
		}

		if errors.Is(waitErr, context.Canceled) {
			if b.metrics != nil {
				b.metrics.AskFinished("cancelled", time.Since(start))
			}
			return message.Answer{}, ErrCancelled
		}
		// context.DeadlineExceeded on this attempt: fall through and retry.
	}

	if b.metrics != nil {
		b.metrics.AskFinished("timeout", time.Since(start))
	}
	return message.Answer{}, fmt.Errorf("%w: after %d attempts", ErrRequestTimeout, opts.MaxRetries)
}

// TryListen registers h as the Tell handler for contentType. It returns
// false without replacing anything if a handler is already registered.
// Registering a handler immediately drains any Tells that were buffered
// while the content type had no handler.
func (b *MessageBox) TryListen(contentType string, h TellHandler) bool {
	if !b.handlers.tryRegisterListen(contentType, h) {
		return false
	}
	for {
		content, ok := b.popTell(contentType)
		if !ok {
			return true
		}
		h(content)
	}
}

// TryAnswer registers h as the Question handler for contentType. It returns
// false without replacing anything if a handler is already registered.
// Registering a handler immediately drains any Questions buffered while the
// content type had no handler.
func (b *MessageBox) TryAnswer(contentType string, h AnswerHandler) bool {
	if !b.handlers.tryRegisterAnswer(contentType, h) {
		return false
	}
	for {
		pq, ok := b.popQuestion(contentType)
		if !ok {
			return true
		}
		b.invokeAnswerHandler(h, pq)
	}
}

// GetQuestion pops one buffered PendingQuestion of contentType, if any.
func (b *MessageBox) GetQuestion(contentType string) (*PendingQuestion, bool) {
	return b.popQuestion(contentType)
}

// OnTellReceived registers an observer fired for every accepted Tell.
func (b *MessageBox) OnTellReceived(cb Observer) *Subscription {
	return b.handlers.onTellReceived(cb)
}

// OnQuestionReceived registers an observer fired for every accepted Question.
func (b *MessageBox) OnQuestionReceived(cb Observer) *Subscription {
	return b.handlers.onQuestionReceived(cb)
}

// AcceptTell is called by the router when a TellMessage addressed to this
// box has been decoded off the wire.
func (b *MessageBox) AcceptTell(msg message.TellMessage) {
	if b.metrics != nil {
		b.metrics.TellReceived()
	}

	b.pushTell(msg.ContentType, msg.Content)
	if h, ok := b.handlers.getListen(msg.ContentType); ok {
		if content, ok := b.popTell(msg.ContentType); ok {
			h(content)
		}
	}
	b.handlers.fireTell(msg.ContentType)
}

// AcceptQuestion is called by the router with a PendingQuestion constructed
// from a decoded QuestionMessage and an answer_sink that routes the eventual
// reply back to the asker's origin identity.
func (b *MessageBox) AcceptQuestion(pq *PendingQuestion) {
	alreadySeen := b.cache.Observe(pq.CorrelationID)

	if !alreadySeen {
		b.pushQuestion(pq.ContentType, pq)
		if h, ok := b.handlers.getAnswer(pq.ContentType); ok {
			if popped, ok := b.popQuestion(pq.ContentType); ok {
				b.invokeAnswerHandler(h, popped)
			}
		}
		b.handlers.fireQuestion(pq.ContentType)
		return
	}

	if cached, ok := b.cache.Answer(pq.CorrelationID); ok {
		if b.metrics != nil {
			b.metrics.CacheHit()
		}
		pq.Answer(cached)
		return
	}
	// Seen but still in flight: the original PendingQuestion will answer.
}

// HandleAnswer resolves the PendingAnswer matching msg.CorrelationId, if the
// box is still awaiting it. This is the router-facing counterpart to the
// worker's own DEALER reply path (see §4.3/§4.4): either route may be the
// one that observes an Answer first, depending on topology.
func (b *MessageBox) HandleAnswer(msg message.AnswerMessage) {
	b.resolveAnswer(msg)
}

func (b *MessageBox) resolveAnswer(msg message.AnswerMessage) {
	pa, ok := b.pending.loadAndDelete(msg.CorrelationId)
	if !ok {
		return // unknown, already completed, or cancelled: discard
	}
	pa.Resolve(message.Answer{ContentType: msg.ContentType, Content: msg.Content})
}

func (b *MessageBox) invokeAnswerHandler(h AnswerHandler, pq *PendingQuestion) {
	ans := h(pq.Content)
	b.cache.SetAnswer(pq.CorrelationID, ans)
	if b.metrics != nil {
		b.metrics.AnswerGiven()
	}
	pq.Answer(ans)
}

func (b *MessageBox) pushTell(contentType string, content *string) {
	b.bufMu.Lock()
	defer b.bufMu.Unlock()
	b.tellBuf[contentType] = append(b.tellBuf[contentType], content)
}

func (b *MessageBox) popTell(contentType string) (*string, bool) {
	b.bufMu.Lock()
	defer b.bufMu.Unlock()
	q := b.tellBuf[contentType]
	if len(q) == 0 {
		return nil, false
	}
	content := q[0]
	b.tellBuf[contentType] = q[1:]
	return content, true
}

func (b *MessageBox) pushQuestion(contentType string, pq *PendingQuestion) {
	b.bufMu.Lock()
	defer b.bufMu.Unlock()
	b.questionBuf[contentType] = append(b.questionBuf[contentType], pq)
}

func (b *MessageBox) popQuestion(contentType string) (*PendingQuestion, bool) {
	b.bufMu.Lock()
	defer b.bufMu.Unlock()
	q := b.questionBuf[contentType]
	if len(q) == 0 {
		return nil, false
	}
	pq := q[0]
	b.questionBuf[contentType] = q[1:]
	return pq, true
}

// Close shuts down the box: the worker stops, its socket closes, and every
// outstanding Ask fails with ErrShutdown. Close is idempotent.
func (b *MessageBox) Close() {
	b.closeOnce.Do(func() {
		close(b.closed)
		b.worker.stop()
		b.pending.failAll(ErrShutdown)
	})
}
