// Package zmetrics provides Prometheus instrumentation for ZMesh nodes and
// message boxes, adapted from the engine's transaction/batch metrics to the
// Tell/Question/Answer vocabulary.
package zmetrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for a ZMesh instance. A nil
// *Metrics is safe to call every method on: each method checks for a nil
// receiver and then does nothing, so wiring metrics is opt-in.
type Metrics struct {
	TellsSent      prometheus.Counter
	TellsReceived  prometheus.Counter
	QuestionsAsked prometheus.Counter
	AnswersGiven   prometheus.Counter
	AskRetries     prometheus.Counter
	AskTimeouts    prometheus.Counter
	AskCancelled   prometheus.Counter
	AskInFlight    prometheus.Gauge
	AskLatency     prometheus.Histogram

	CacheHits       prometheus.Counter
	MalformedDrops  prometheus.Counter
	BusyRejections  prometheus.Counter
	RouterQueueSize prometheus.Gauge
}

// New creates a Metrics instance registered under the given namespace.
func New(namespace string) *Metrics {
	return &Metrics{
		TellsSent: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tells_sent_total",
			Help:      "Total number of Tell messages enqueued for sending",
		}),
		TellsReceived: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tells_received_total",
			Help:      "Total number of Tell messages accepted by a box",
		}),
		QuestionsAsked: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "questions_asked_total",
			Help:      "Total number of Ask attempts (including retries)",
		}),
		AnswersGiven: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "answers_given_total",
			Help:      "Total number of Answers produced by an answer handler",
		}),
		AskRetries: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ask_retries_total",
			Help:      "Total number of Ask retry attempts beyond the first",
		}),
		AskTimeouts: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ask_timeouts_total",
			Help:      "Total number of Ask calls that exhausted all retries",
		}),
		AskCancelled: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ask_cancelled_total",
			Help:      "Total number of Ask calls cancelled via context",
		}),
		AskInFlight: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ask_in_flight",
			Help:      "Number of Ask calls currently awaiting an Answer",
		}),
		AskLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ask_latency_seconds",
			Help:      "End-to-end latency of successful Ask calls",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
		CacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "answer_cache_hits_total",
			Help:      "Total number of retried Questions served from the answer cache",
		}),
		MalformedDrops: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "malformed_frames_dropped_total",
			Help:      "Total number of inbound frames dropped for failing to decode",
		}),
		BusyRejections: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbound_busy_rejections_total",
			Help:      "Total number of Tell/Ask calls rejected because the outbound queue was full",
		}),
		RouterQueueSize: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "router_answer_queue_size",
			Help:      "Current depth of the node's pending answer-send queue",
		}),
	}
}

func (m *Metrics) incTellsSent() {
	if m != nil {
		m.TellsSent.Inc()
	}
}

func (m *Metrics) incTellsReceived() {
	if m != nil {
		m.TellsReceived.Inc()
	}
}

func (m *Metrics) incQuestionsAsked() {
	if m != nil {
		m.QuestionsAsked.Inc()
	}
}

func (m *Metrics) incAnswersGiven() {
	if m != nil {
		m.AnswersGiven.Inc()
	}
}

func (m *Metrics) incAskRetries() {
	if m != nil {
		m.AskRetries.Inc()
	}
}

func (m *Metrics) incAskTimeouts() {
	if m != nil {
		m.AskTimeouts.Inc()
	}
}

func (m *Metrics) incAskCancelled() {
	if m != nil {
		m.AskCancelled.Inc()
	}
}

func (m *Metrics) addAskInFlight(delta float64) {
	if m != nil {
		m.AskInFlight.Add(delta)
	}
}

func (m *Metrics) observeAskLatency(d time.Duration) {
	if m != nil {
		m.AskLatency.Observe(d.Seconds())
	}
}

func (m *Metrics) incCacheHits() {
	if m != nil {
		m.CacheHits.Inc()
	}
}

func (m *Metrics) incMalformedDrops() {
	if m != nil {
		m.MalformedDrops.Inc()
	}
}

func (m *Metrics) incBusyRejections() {
	if m != nil {
		m.BusyRejections.Inc()
	}
}

func (m *Metrics) setRouterQueueSize(n int) {
	if m != nil {
		m.RouterQueueSize.Set(float64(n))
	}
}

// TellSent records a Tell message handed to the outbound queue.
func (m *Metrics) TellSent() { m.incTellsSent() }

// TellReceived records a Tell message accepted by a box.
func (m *Metrics) TellReceived() { m.incTellsReceived() }

// QuestionAsked records one Ask attempt (initial send or a retry).
func (m *Metrics) QuestionAsked(isRetry bool) {
	m.incQuestionsAsked()
	if isRetry {
		m.incAskRetries()
	}
}

// AnswerGiven records an answer handler producing an Answer.
func (m *Metrics) AnswerGiven() { m.incAnswersGiven() }

// AskStarted records the beginning of an Ask call.
func (m *Metrics) AskStarted() { m.addAskInFlight(1) }

// AskFinished records the end of an Ask call with its outcome.
func (m *Metrics) AskFinished(outcome string, elapsed time.Duration) {
	m.addAskInFlight(-1)
	switch outcome {
	case "ok":
		m.observeAskLatency(elapsed)
	case "timeout":
		m.incAskTimeouts()
	case "cancelled":
		m.incAskCancelled()
	}
}

// CacheHit records a retried Question served from the answer cache instead
// of re-invoking the answer handler.
func (m *Metrics) CacheHit() { m.incCacheHits() }

// MalformedDropped records a frame dropped for failing to decode.
func (m *Metrics) MalformedDropped() { m.incMalformedDrops() }

// BusyRejected records a Tell/Ask rejected because the outbound queue was full.
func (m *Metrics) BusyRejected() { m.incBusyRejections() }

// SetRouterQueueSize records the current depth of the node's answer queue.
func (m *Metrics) SetRouterQueueSize(n int) { m.setRouterQueueSize(n) }

// Server exposes the registered collectors over HTTP at /metrics.
type Server struct {
	server *http.Server
}

// NewServer creates a metrics HTTP server on the given address.
func NewServer(addr string) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	return &Server{server: &http.Server{Addr: addr, Handler: mux}}
}

// StartAsync starts the metrics server in a background goroutine.
func (s *Server) StartAsync() {
	go func() {
		_ = s.server.ListenAndServe()
	}()
}

// Stop gracefully stops the metrics server.
func (s *Server) Stop() error {
	return s.server.Close()
}
