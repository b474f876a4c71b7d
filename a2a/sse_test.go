package a2a

import (
	"context"
	"strings"
	"testing"
)

func TestReadSSEDispatchesOnBlankLine(t *testing.T) {
	raw := "data: {\"jsonrpc\":\"2.0\"}\n\n"
	var events []sseEvent
	err := readSSE(context.Background(), strings.NewReader(raw), func(e sseEvent) bool {
		events = append(events, e)
		return true
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 1 || events[0].data != `{"jsonrpc":"2.0"}` {
		t.Fatalf("unexpected events: %+v", events)
	}
}

func TestReadSSEConcatenatesMultipleDataLines(t *testing.T) {
	raw := "data: line1\ndata: line2\n\n"
	var events []sseEvent
	_ = readSSE(context.Background(), strings.NewReader(raw), func(e sseEvent) bool {
		events = append(events, e)
		return true
	})
	if len(events) != 1 || events[0].data != "line1\nline2" {
		t.Fatalf("unexpected events: %+v", events)
	}
}

func TestReadSSEIgnoresEventIDAndCommentLines(t *testing.T) {
	raw := ": heartbeat\nevent: message\nid: 42\ndata: payload\n\n"
	var events []sseEvent
	_ = readSSE(context.Background(), strings.NewReader(raw), func(e sseEvent) bool {
		events = append(events, e)
		return true
	})
	if len(events) != 1 || events[0].data != "payload" {
		t.Fatalf("unexpected events: %+v", events)
	}
}

func TestReadSSEDispatchesFinalBufferOnEOF(t *testing.T) {
	raw := "data: no-trailing-blank-line"
	var events []sseEvent
	_ = readSSE(context.Background(), strings.NewReader(raw), func(e sseEvent) bool {
		events = append(events, e)
		return true
	})
	if len(events) != 1 || events[0].data != "no-trailing-blank-line" {
		t.Fatalf("expected final buffered event to dispatch, got %+v", events)
	}
}

func TestReadSSEStopsWhenHandlerReturnsFalse(t *testing.T) {
	raw := "data: first\n\ndata: second\n\n"
	var events []sseEvent
	_ = readSSE(context.Background(), strings.NewReader(raw), func(e sseEvent) bool {
		events = append(events, e)
		return false
	})
	if len(events) != 1 {
		t.Fatalf("expected handler to stop the stream after first event, got %d events", len(events))
	}
}

func TestReadSSERespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := readSSE(ctx, strings.NewReader("data: x\n\n"), func(e sseEvent) bool {
		t.Fatalf("handler should not run after cancellation")
		return true
	})
	if err == nil {
		t.Fatalf("expected context cancellation error")
	}
}
