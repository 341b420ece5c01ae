package node

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/minx-zmesh/zmesh/config"
	"github.com/minx-zmesh/zmesh/message"
)

func freeAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to reserve a port: %v", err)
	}
	addr := l.Addr().String()
	_ = l.Close()
	return addr
}

func TestEchoTell(t *testing.T) {
	addrA, addrB := freeAddr(t), freeAddr(t)
	systemMap := map[string]string{"A": addrA, "B": addrB}

	n1, err := NewNode(addrA, systemMap, config.DefaultNodeConfig())
	if err != nil {
		t.Fatalf("n1: %v", err)
	}
	defer n1.Stop()

	n2, err := NewNode(addrB, systemMap, config.DefaultNodeConfig())
	if err != nil {
		t.Fatalf("n2: %v", err)
	}
	defer n2.Stop()

	localB, err := n2.At("B")
	if err != nil {
		t.Fatalf("n2.At(B): %v", err)
	}

	received := make(chan string, 1)
	localB.TryListen("greeting", func(content *string) {
		if content != nil {
			received <- *content
		} else {
			received <- ""
		}
	})

	remoteB, err := n1.At("B")
	if err != nil {
		t.Fatalf("n1.At(B): %v", err)
	}
	content := "hi"
	if err := remoteB.Tell("greeting", &content); err != nil {
		t.Fatalf("Tell: %v", err)
	}

	select {
	case got := <-received:
		if got != "hi" {
			t.Fatalf("expected %q, got %q", "hi", got)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatal("timed out waiting for tell to be delivered")
	}
}

func TestAskAnswer(t *testing.T) {
	addrA, addrB := freeAddr(t), freeAddr(t)
	systemMap := map[string]string{"A": addrA, "B": addrB}

	n1, err := NewNode(addrA, systemMap, config.DefaultNodeConfig())
	if err != nil {
		t.Fatalf("n1: %v", err)
	}
	defer n1.Stop()

	n2, err := NewNode(addrB, systemMap, config.DefaultNodeConfig())
	if err != nil {
		t.Fatalf("n2: %v", err)
	}
	defer n2.Stop()

	localB, err := n2.At("B")
	if err != nil {
		t.Fatalf("n2.At(B): %v", err)
	}
	localB.TryAnswer("sum", func(content *string) message.Answer {
		return message.Answer{ContentType: "int", Content: content}
	})

	remoteB, err := n1.At("B")
	if err != nil {
		t.Fatalf("n1.At(B): %v", err)
	}

	content := "42"
	ans, err := remoteB.Ask(context.Background(), "sum", &content, nil, config.DefaultRequestOptions())
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if ans.ContentType != "int" || ans.Content == nil || *ans.Content != "42" {
		t.Fatalf("unexpected answer: %+v", ans)
	}
}

func TestAskRetryDeduplicatesHandlerInvocation(t *testing.T) {
	addrA, addrB := freeAddr(t), freeAddr(t)
	systemMap := map[string]string{"A": addrA, "B": addrB}

	n1, err := NewNode(addrA, systemMap, config.DefaultNodeConfig())
	if err != nil {
		t.Fatalf("n1: %v", err)
	}
	defer n1.Stop()

	n2, err := NewNode(addrB, systemMap, config.DefaultNodeConfig())
	if err != nil {
		t.Fatalf("n2: %v", err)
	}
	defer n2.Stop()

	localB, err := n2.At("B")
	if err != nil {
		t.Fatalf("n2.At(B): %v", err)
	}

	var invocations int
	localB.TryAnswer("slow", func(content *string) message.Answer {
		invocations++
		time.Sleep(200 * time.Millisecond)
		return message.Answer{ContentType: "ack"}
	})

	remoteB, err := n1.At("B")
	if err != nil {
		t.Fatalf("n1.At(B): %v", err)
	}

	opts := config.RequestOptions{Timeout: 50 * time.Millisecond, MaxRetries: 5}
	ans, err := remoteB.Ask(context.Background(), "slow", nil, nil, opts)
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if ans.ContentType != "ack" {
		t.Fatalf("unexpected answer: %+v", ans)
	}
	if invocations != 1 {
		t.Fatalf("expected the handler invoked exactly once despite retries, got %d", invocations)
	}
}

func TestAskTimeoutWhenNoHandler(t *testing.T) {
	addrA, addrB := freeAddr(t), freeAddr(t)
	systemMap := map[string]string{"A": addrA, "B": addrB}

	n1, err := NewNode(addrA, systemMap, config.DefaultNodeConfig())
	if err != nil {
		t.Fatalf("n1: %v", err)
	}
	defer n1.Stop()

	n2, err := NewNode(addrB, systemMap, config.DefaultNodeConfig())
	if err != nil {
		t.Fatalf("n2: %v", err)
	}
	defer n2.Stop()

	if _, err := n2.At("B"); err != nil {
		t.Fatalf("n2.At(B): %v", err)
	}

	remoteB, err := n1.At("B")
	if err != nil {
		t.Fatalf("n1.At(B): %v", err)
	}

	opts := config.RequestOptions{Timeout: 100 * time.Millisecond, MaxRetries: 2}
	start := time.Now()
	_, err = remoteB.Ask(context.Background(), "ping", nil, nil, opts)
	elapsed := time.Since(start)

	if err == nil {
		t.Fatal("expected a timeout error")
	}
	if elapsed < 200*time.Millisecond {
		t.Fatalf("expected to wait through both attempts, took %v", elapsed)
	}
}

func TestAtUnknownBox(t *testing.T) {
	n, err := NewNode("", map[string]string{"A": "127.0.0.1:7000"}, config.DefaultNodeConfig())
	if err != nil {
		t.Fatalf("NewNode: %v", err)
	}
	defer n.Stop()

	if _, err := n.At("nonexistent"); !errors.Is(err, ErrUnknownBox) {
		t.Fatalf("expected ErrUnknownBox, got %v", err)
	}
}

func TestStopFailsOutstandingAsks(t *testing.T) {
	addrA, addrB := freeAddr(t), freeAddr(t)
	systemMap := map[string]string{"A": addrA, "B": addrB}

	n1, err := NewNode(addrA, systemMap, config.DefaultNodeConfig())
	if err != nil {
		t.Fatalf("n1: %v", err)
	}

	n2, err := NewNode(addrB, systemMap, config.DefaultNodeConfig())
	if err != nil {
		t.Fatalf("n2: %v", err)
	}
	defer n2.Stop()

	if _, err := n2.At("B"); err != nil {
		t.Fatalf("n2.At(B): %v", err)
	}

	remoteB, err := n1.At("B")
	if err != nil {
		t.Fatalf("n1.At(B): %v", err)
	}

	done := make(chan error, 1)
	go func() {
		opts := config.RequestOptions{Timeout: 10 * time.Second, MaxRetries: 1}
		_, err := remoteB.Ask(context.Background(), "slow", nil, nil, opts)
		done <- err
	}()

	time.Sleep(50 * time.Millisecond)
	n1.Stop()

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected Ask to fail once the node stopped")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not unblock the outstanding Ask in time")
	}
}
