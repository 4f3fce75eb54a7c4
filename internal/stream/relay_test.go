package stream

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"
)

// blockingUpstream is a test double for a provider connection that never
// produces data; Read unblocks only when the connection is closed.
type blockingUpstream struct {
	closed chan struct{}
	once   sync.Once
}

func newBlockingUpstream() *blockingUpstream {
	return &blockingUpstream{closed: make(chan struct{})}
}

func (b *blockingUpstream) Read(p []byte) (int, error) {
	<-b.closed
	return 0, io.EOF
}

func (b *blockingUpstream) Close() error {
	b.once.Do(func() { close(b.closed) })
	return nil
}

func (b *blockingUpstream) wasClosed() bool {
	select {
	case <-b.closed:
		return true
	default:
		return false
	}
}

type failingUpstream struct {
	err error
}

func (f *failingUpstream) Read(p []byte) (int, error) { return 0, f.err }
func (f *failingUpstream) Close() error               { return nil }

func TestRelayForwardsFramesAndSentinel(t *testing.T) {
	upstream := io.NopCloser(strings.NewReader(
		"data: <think>hmm</think>\n\ndata: Hello\n\ndata: [DONE]\n\n"))

	var events []Event
	relay := NewRelay(func(ev Event) error {
		events = append(events, ev)
		return nil
	}, 0)

	var out bytes.Buffer
	if err := relay.Run(context.Background(), upstream, &out); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	expected := "data: <think>hmm</think>\ndata: Hello\ndata: [DONE]\n"
	if out.String() != expected {
		t.Errorf("Expected output %q, got %q", expected, out.String())
	}

	if len(events) != 2 {
		t.Fatalf("Expected 2 events, got %d", len(events))
	}
	if events[0].Kind != KindThink || events[0].Content != "hmm" {
		t.Errorf("Unexpected think event %v", events[0])
	}
	if events[1].Kind != KindResponse || events[1].Content != "Hello" {
		t.Errorf("Unexpected response event %v", events[1])
	}

	if relay.Think() != "hmm" || relay.Response() != "Hello" {
		t.Errorf("Unexpected relay buffers: think=%q response=%q", relay.Think(), relay.Response())
	}
}

func TestRelayWritesSentinelOnUpstreamEOF(t *testing.T) {
	// Upstream closed without sending [DONE]: the client still gets a
	// terminated stream.
	upstream := io.NopCloser(strings.NewReader("data: partial\n\n"))

	relay := NewRelay(nil, 0)
	var out bytes.Buffer
	if err := relay.Run(context.Background(), upstream, &out); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if !strings.HasSuffix(out.String(), "data: [DONE]\n") {
		t.Errorf("Expected trailing sentinel, got %q", out.String())
	}
}

func TestRelayClientDisconnectClosesUpstream(t *testing.T) {
	upstream := newBlockingUpstream()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- NewRelay(nil, 0).Run(ctx, upstream, &bytes.Buffer{})
	}()

	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Relay did not abort after client disconnect")
	}

	if !upstream.wasClosed() {
		t.Error("Expected upstream connection to be closed")
	}
}

func TestRelayIdleTimeout(t *testing.T) {
	upstream := newBlockingUpstream()

	err := NewRelay(nil, 50*time.Millisecond).Run(context.Background(), upstream, &bytes.Buffer{})
	if !errors.Is(err, ErrUpstreamTimeout) {
		t.Errorf("Expected ErrUpstreamTimeout, got %v", err)
	}
	if !upstream.wasClosed() {
		t.Error("Expected upstream connection to be closed after timeout")
	}
}

func TestRelayReadErrorWrapped(t *testing.T) {
	upstream := &failingUpstream{err: errors.New("connection reset")}

	err := NewRelay(nil, 0).Run(context.Background(), upstream, &bytes.Buffer{})

	var readErr *StreamReadError
	if !errors.As(err, &readErr) {
		t.Fatalf("Expected StreamReadError, got %v", err)
	}
	if readErr.Unwrap() != upstream.err {
		t.Errorf("Expected wrapped cause %v, got %v", upstream.err, readErr.Unwrap())
	}
}

func TestRelaySinkErrorStopsStream(t *testing.T) {
	upstream := io.NopCloser(strings.NewReader("data: a\n\ndata: b\n\ndata: [DONE]\n\n"))
	sinkErr := errors.New("sink full")

	relay := NewRelay(func(Event) error { return sinkErr }, 0)
	err := relay.Run(context.Background(), upstream, &bytes.Buffer{})
	if !errors.Is(err, sinkErr) {
		t.Errorf("Expected sink error to propagate, got %v", err)
	}
}

func TestRelayEventOrderMatchesUpstream(t *testing.T) {
	upstream := io.NopCloser(strings.NewReader(
		"data: one\n\ndata: <think>two</think>\n\ndata:  three\n\ndata: [DONE]\n\n"))

	var kinds []EventKind
	relay := NewRelay(func(ev Event) error {
		kinds = append(kinds, ev.Kind)
		return nil
	}, 0)

	if err := relay.Run(context.Background(), upstream, &bytes.Buffer{}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	expected := []EventKind{KindResponse, KindThink, KindResponse}
	for i, k := range expected {
		if i >= len(kinds) || kinds[i] != k {
			t.Fatalf("Expected kinds %v, got %v", expected, kinds)
		}
	}
}
