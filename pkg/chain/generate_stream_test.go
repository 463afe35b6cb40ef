package chain

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestGenerateStream(t *testing.T) {
	// Unique contexts at order 2 make the stream fully deterministic.
	m := newTestModel(t, 2)
	mustTrain(t, m, "Catalina")

	var sb strings.Builder
	for c := range m.GenerateStream(context.Background()) {
		sb.WriteRune(c)
	}
	if sb.String() != "Catalina" {
		t.Errorf("streamed %q, want \"Catalina\"", sb.String())
	}
}

func TestGenerateStreamBudget(t *testing.T) {
	m := newTestModel(t, 1)
	if err := m.Observe("", 'a', 1); err != nil {
		t.Fatal(err)
	}
	if err := m.Observe("a", 'a', 1); err != nil {
		t.Fatal(err)
	}

	var got []rune
	for c := range m.GenerateStream(context.Background(), WithMaxSteps(10)) {
		got = append(got, c)
	}
	if len(got) != 10 {
		t.Errorf("streamed %d characters before the budget closed the channel, want 10", len(got))
	}
}

func TestGenerateStreamCancel(t *testing.T) {
	m := newTestModel(t, 1)
	if err := m.Observe("", 'a', 1); err != nil {
		t.Fatal(err)
	}
	if err := m.Observe("a", 'a', 1); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	stream := m.GenerateStream(ctx, WithMaxSteps(0))

	for i := 0; i < 5; i++ {
		if _, ok := <-stream; !ok {
			t.Fatal("stream closed before cancellation")
		}
	}
	cancel()

	// Drain; the goroutine must notice the cancellation and close the
	// channel promptly.
	done := make(chan struct{})
	go func() {
		for range stream {
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("stream did not close after cancellation")
	}
}
