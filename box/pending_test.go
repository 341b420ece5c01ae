package box

import (
	"context"
	"testing"
	"time"

	"github.com/minx-zmesh/zmesh/message"
)

func TestPendingAnswerResolveThenFailIsNoop(t *testing.T) {
	pa := newPendingAnswer()

	if !pa.Resolve(message.Answer{ContentType: "int"}) {
		t.Fatal("first Resolve should succeed")
	}
	if pa.Fail(ErrRequestTimeout) {
		t.Fatal("Fail after Resolve should report no-op")
	}

	ans, err := pa.Wait(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if ans.ContentType != "int" {
		t.Fatalf("unexpected answer: %+v", ans)
	}
}

func TestPendingAnswerWaitRespectsContext(t *testing.T) {
	pa := newPendingAnswer()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := pa.Wait(ctx)
	if err == nil {
		t.Fatal("expected a context error")
	}
}

func TestPendingQuestionAnswerIsIdempotent(t *testing.T) {
	var calls int
	var got message.Answer

	pq := newPendingQuestion(message.QuestionMessage{
		ContentType:    "sum",
		MessageBoxName: "B",
		CorrelationId:  "cid-1",
	}, func(ans message.Answer) {
		calls++
		got = ans
	})

	pq.Answer(message.Answer{ContentType: "int", Content: message.StrPtr("42")})
	pq.Answer(message.Answer{ContentType: "int", Content: message.StrPtr("99")})

	if calls != 1 {
		t.Fatalf("expected exactly one sink invocation, got %d", calls)
	}
	if got.Content == nil || *got.Content != "42" {
		t.Fatalf("expected first answer to win, got %+v", got)
	}
}
