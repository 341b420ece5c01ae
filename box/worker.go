package box

import (
	"fmt"

	"github.com/go-zeromq/zmq4"
	"go.uber.org/zap"

	"github.com/minx-zmesh/zmesh/message"
	"github.com/minx-zmesh/zmesh/zmetrics"
)

// outboundFrame is one item on a worker's send queue.
type outboundFrame struct {
	kind    message.Type
	payload []byte
}

// worker owns one DEALER socket end to end: nothing else touches it. A
// dedicated goroutine pumps blocking Recv calls onto a channel so the main
// loop never blocks on send and receive at once; this mirrors the transport
// layer's receiver/processor split, generalized to one socket per box
// instead of one socket per node.
type worker struct {
	sock zmq4.Socket

	outbound chan outboundFrame
	recvCh   chan zmq4.Msg
	stopCh   chan struct{}
	pumpDone chan struct{}
	loopDone chan struct{}

	onAnswer func(message.AnswerMessage)
	logger   *zap.Logger
	metrics  *zmetrics.Metrics
}

func newWorker(sock zmq4.Socket, queueSize int, onAnswer func(message.AnswerMessage), logger *zap.Logger, metrics *zmetrics.Metrics) *worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &worker{
		sock:     sock,
		outbound: make(chan outboundFrame, queueSize),
		recvCh:   make(chan zmq4.Msg),
		stopCh:   make(chan struct{}),
		pumpDone: make(chan struct{}),
		loopDone: make(chan struct{}),
		onAnswer: onAnswer,
		logger:   logger,
		metrics:  metrics,
	}
}

func (w *worker) start() {
	go w.recvPump()
	go w.mainLoop()
}

// enqueue attempts a non-blocking send of an outbound frame, returning
// ErrBusy if the queue is full.
func (w *worker) enqueue(kind message.Type, payload []byte) error {
	select {
	case w.outbound <- outboundFrame{kind: kind, payload: payload}:
		return nil
	default:
		return ErrBusy
	}
}

// recvPump blocks on Recv in a loop, forwarding each frame to the main loop.
// Closing the socket is what unblocks a pending Recv on stop. A Recv error
// other than the socket closing on stop is treated as transient (the
// EAGAIN/EINTR class) and retried on the next iteration, rather than
// permanently disabling inbound delivery for the box.
func (w *worker) recvPump() {
	defer close(w.pumpDone)

	for {
		select {
		case <-w.stopCh:
			return
		default:
		}

		msg, err := w.sock.Recv()
		if err != nil {
			select {
			case <-w.stopCh:
				return
			default:
				w.logger.Debug("dealer recv error, retrying", zap.Error(err))
				continue
			}
		}

		select {
		case w.recvCh <- msg:
		case <-w.stopCh:
			return
		}
	}
}

func (w *worker) mainLoop() {
	defer close(w.loopDone)

	for {
		select {
		case <-w.stopCh:
			w.drainOutbound()
			return
		case frame := <-w.outbound:
			w.send(frame)
		case msg := <-w.recvCh:
			w.handleInbound(msg)
		}
	}
}

// drainOutbound flushes whatever is already queued before the socket closes,
// best-effort; a frame whose send fails is logged and dropped.
func (w *worker) drainOutbound() {
	for {
		select {
		case frame := <-w.outbound:
			w.send(frame)
		default:
			return
		}
	}
}

func (w *worker) send(frame outboundFrame) {
	msg := zmq4.NewMsgFrom([]byte(frame.kind), frame.payload)
	if err := w.sock.Send(msg); err != nil {
		w.logger.Warn("dealer send failed", zap.String("kind", string(frame.kind)), zap.Error(err))
	}
}

// handleInbound parses one reply frame as an AnswerMessage. The ROUTER's
// reply path strips the routing identity, and may or may not include the
// leading type_string frame; the decoder accepts either shape by always
// decoding the last frame.
func (w *worker) handleInbound(msg zmq4.Msg) {
	frames := msg.Frames
	if len(frames) == 0 {
		return
	}
	payload := frames[len(frames)-1]

	ans, err := message.DecodeAnswer(payload)
	if err != nil {
		w.logger.Debug("dropping malformed answer frame", zap.Error(err))
		if w.metrics != nil {
			w.metrics.MalformedDropped()
		}
		return
	}

	if w.onAnswer != nil {
		w.onAnswer(ans)
	}
}

func (w *worker) stop() {
	close(w.stopCh)
	<-w.loopDone
	_ = w.sock.Close()
	<-w.pumpDone
}

func transportErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrTransport, op, err)
}
