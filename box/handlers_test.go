package box

import (
	"testing"

	"github.com/minx-zmesh/zmesh/message"
)

func TestTryRegisterListenRejectsSecond(t *testing.T) {
	r := newHandlerRegistry()

	if !r.tryRegisterListen("greeting", func(*string) {}) {
		t.Fatal("first registration should succeed")
	}
	if r.tryRegisterListen("greeting", func(*string) {}) {
		t.Fatal("second registration for the same content type should fail")
	}
}

func TestTryRegisterAnswerRejectsSecond(t *testing.T) {
	r := newHandlerRegistry()
	h := func(*string) message.Answer { return message.Answer{} }

	if !r.tryRegisterAnswer("sum", h) {
		t.Fatal("first registration should succeed")
	}
	if r.tryRegisterAnswer("sum", h) {
		t.Fatal("second registration for the same content type should fail")
	}
}

func TestObserverFiresAndUnsubscribes(t *testing.T) {
	r := newHandlerRegistry()

	var calls int
	sub := r.onTellReceived(func(contentType string) { calls++ })

	r.fireTell("greeting")
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}

	sub.Unsubscribe()
	r.fireTell("greeting")
	if calls != 1 {
		t.Fatalf("expected no further calls after unsubscribe, got %d", calls)
	}

	// Unsubscribing twice must not panic.
	sub.Unsubscribe()
}
