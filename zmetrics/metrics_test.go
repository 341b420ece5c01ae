package zmetrics

import (
	"testing"
	"time"
)

func TestNilMetricsIsNoOp(t *testing.T) {
	var m *Metrics

	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("nil *Metrics should be a no-op, panicked: %v", r)
		}
	}()

	m.TellSent()
	m.TellReceived()
	m.QuestionAsked(true)
	m.AnswerGiven()
	m.AskStarted()
	m.AskFinished("ok", time.Millisecond)
	m.CacheHit()
	m.MalformedDropped()
	m.BusyRejected()
	m.SetRouterQueueSize(3)
}

func TestNewMetricsRecordsValues(t *testing.T) {
	m := New("zmesh_test_metrics")

	m.TellSent()
	m.QuestionAsked(false)
	m.QuestionAsked(true)
	m.AskStarted()
	m.AskFinished("ok", 5*time.Millisecond)

	if got := testCounterValue(t, m.TellsSent); got != 1 {
		t.Errorf("TellsSent = %v, want 1", got)
	}
	if got := testCounterValue(t, m.QuestionsAsked); got != 2 {
		t.Errorf("QuestionsAsked = %v, want 2", got)
	}
	if got := testCounterValue(t, m.AskRetries); got != 1 {
		t.Errorf("AskRetries = %v, want 1", got)
	}
}
