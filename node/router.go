package node

import (
	"context"

	"github.com/go-zeromq/zmq4"
	"go.uber.org/zap"

	"github.com/minx-zmesh/zmesh/box"
	"github.com/minx-zmesh/zmesh/config"
	"github.com/minx-zmesh/zmesh/message"
	"github.com/minx-zmesh/zmesh/zmetrics"
)

// answerItem is one reply queued for the router to send back along a
// previously recorded origin identity.
type answerItem struct {
	identity []byte
	msg      message.AnswerMessage
}

// router multiplexes one bound ROUTER socket across every MessageBox the
// owning Node serves, dispatching inbound frames by message_box_name and
// sending queued Answers from the same loop (one inbound frame or one queued
// Answer per iteration; what is left in the queue is drained on stop). Like
// a box's worker, the single ROUTER socket is touched only by this goroutine; a dedicated pump
// goroutine turns its blocking Recv into a channel read.
type router struct {
	sock zmq4.Socket
	node *Node

	compressionThreshold int
	logger               *zap.Logger
	metrics              *zmetrics.Metrics

	answerQueue chan answerItem
	recvCh      chan zmq4.Msg
	stopCh      chan struct{}
	pumpDone    chan struct{}
	loopDone    chan struct{}
}

func newRouter(ctx context.Context, bindAddress string, n *Node, cfg config.NodeConfig) (*router, error) {
	sock := zmq4.NewRouter(ctx)
	if err := sock.Listen("tcp://" + bindAddress); err != nil {
		return nil, transportErr("listen "+bindAddress, err)
	}

	boxCfg := cfg.BoxConfigFor()
	return &router{
		sock:                 sock,
		node:                 n,
		compressionThreshold: boxCfg.CompressionThreshold,
		logger:               cfg.ResolvedLogger(),
		metrics:              cfg.Metrics,
		answerQueue:          make(chan answerItem, boxCfg.QueueSize),
		recvCh:               make(chan zmq4.Msg),
		stopCh:               make(chan struct{}),
		pumpDone:             make(chan struct{}),
		loopDone:             make(chan struct{}),
	}, nil
}

func (r *router) start() {
	go r.recvPump()
	go r.mainLoop()
}

func (r *router) recvPump() {
	defer close(r.pumpDone)

	for {
		select {
		case <-r.stopCh:
			return
		default:
		}

		msg, err := r.sock.Recv()
		if err != nil {
			select {
			case <-r.stopCh:
				return
			default:
				r.logger.Debug("router recv error, retrying", zap.Error(err))
				continue
			}
		}

		select {
		case r.recvCh <- msg:
		case <-r.stopCh:
			return
		}
	}
}

func (r *router) mainLoop() {
	defer close(r.loopDone)

	for {
		select {
		case <-r.stopCh:
			r.drainAnswers()
			return
		case msg := <-r.recvCh:
			r.dispatch(msg)
		case item := <-r.answerQueue:
			r.sendAnswer(item)
		}
		if r.metrics != nil {
			r.metrics.SetRouterQueueSize(len(r.answerQueue))
		}
	}
}

func (r *router) drainAnswers() {
	for {
		select {
		case item := <-r.answerQueue:
			r.sendAnswer(item)
		default:
			return
		}
	}
}

// dispatch parses one inbound ROUTER frame and routes it to the destination
// box by message_box_name. Any malformed or short frame is dropped; the
// router keeps running.
func (r *router) dispatch(msg zmq4.Msg) {
	frames := msg.Frames
	if len(frames) != 3 {
		r.dropMalformed()
		return
	}
	identity, typeFrame, payload := frames[0], frames[1], frames[2]

	t, err := message.ParseType(string(typeFrame))
	if err != nil {
		r.dropMalformed()
		return
	}

	switch t {
	case message.TypeTell:
		r.dispatchTell(payload)
	case message.TypeQuestion:
		r.dispatchQuestion(identity, payload)
	case message.TypeAnswer:
		r.dispatchAnswer(payload)
	}
}

func (r *router) dispatchTell(payload []byte) {
	tm, err := message.DecodeTell(payload)
	if err != nil {
		r.dropMalformed()
		return
	}
	b, err := r.node.At(tm.MessageBoxName)
	if err != nil {
		r.logger.Debug("tell for unknown box", zap.String("box", tm.MessageBoxName))
		return
	}
	b.AcceptTell(tm)
}

func (r *router) dispatchQuestion(identity, payload []byte) {
	qm, err := message.DecodeQuestion(payload)
	if err != nil {
		r.dropMalformed()
		return
	}
	b, err := r.node.At(qm.MessageBoxName)
	if err != nil {
		r.logger.Debug("question for unknown box", zap.String("box", qm.MessageBoxName))
		return
	}

	origin := append([]byte(nil), identity...)
	sink := func(ans message.Answer) {
		item := answerItem{
			identity: origin,
			msg: message.AnswerMessage{
				ContentType:    ans.ContentType,
				Content:        ans.Content,
				MessageBoxName: qm.MessageBoxName,
				CorrelationId:  qm.CorrelationId,
			},
		}
		select {
		case r.answerQueue <- item:
		default:
			r.logger.Warn("answer queue full, dropping reply", zap.String("correlation_id", qm.CorrelationId))
		}
	}

	b.AcceptQuestion(box.NewPendingQuestion(qm, sink))
}

func (r *router) dispatchAnswer(payload []byte) {
	am, err := message.DecodeAnswer(payload)
	if err != nil {
		r.dropMalformed()
		return
	}
	b, err := r.node.At(am.MessageBoxName)
	if err != nil {
		r.logger.Debug("answer for unknown box", zap.String("box", am.MessageBoxName))
		return
	}
	b.HandleAnswer(am)
}

func (r *router) sendAnswer(item answerItem) {
	payload, err := message.EncodeAnswer(item.msg, r.compressionThreshold)
	if err != nil {
		r.logger.Warn("failed to encode answer", zap.Error(err))
		return
	}

	wire := zmq4.NewMsgFrom(item.identity, []byte(message.TypeAnswer), payload)
	if err := r.sock.Send(wire); err != nil {
		r.logger.Warn("router send failed", zap.Error(err))
	}
}

func (r *router) dropMalformed() {
	r.logger.Debug("dropping malformed frame")
	if r.metrics != nil {
		r.metrics.MalformedDropped()
	}
}

func (r *router) stop() {
	close(r.stopCh)
	_ = r.sock.Close()
	<-r.pumpDone
	<-r.loopDone
}
