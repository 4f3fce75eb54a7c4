package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrUpstreamTimeout is returned when the provider produces no data within
// the relay's idle window.
var ErrUpstreamTimeout = errors.New("upstream produced no data within the idle window")

// StreamReadError wraps a transport failure while reading the upstream.
type StreamReadError struct {
	Err error
}

func (e *StreamReadError) Error() string { return fmt.Sprintf("stream read failed: %v", e.Err) }
func (e *StreamReadError) Unwrap() error { return e.Err }

// Relay pumps a provider byte stream through a Decoder and forwards the
// accepted `data: <payload>` frames to a client writer, flushing after each
// one. All accumulation state is owned by the relay instance, so concurrent
// requests run fully isolated pipelines.
type Relay struct {
	dec  *Decoder
	idle time.Duration
}

// NewRelay builds a relay. sink may be nil if the caller only needs the
// frames forwarded. idle <= 0 disables the upstream idle timeout.
func NewRelay(sink Sink, idle time.Duration) *Relay {
	return &Relay{dec: NewDecoder(sink), idle: idle}
}

type readResult struct {
	data []byte
	err  error
}

// Run reads upstream until the sentinel, EOF, an error or ctx cancellation,
// writing frames to w as they arrive. The upstream is always closed before
// Run returns, so a client disconnect (ctx cancellation) aborts the
// upstream read promptly. The sentinel line is written to w on every clean
// termination, even when the upstream closed without sending one.
func (r *Relay) Run(ctx context.Context, upstream io.ReadCloser, w io.Writer) error {
	defer upstream.Close()

	flusher, _ := w.(http.Flusher)
	r.dec.Frame = func(payload string) error {
		if _, err := io.WriteString(w, framePrefix+payload+"\n"); err != nil {
			return fmt.Errorf("client write failed: %w", err)
		}
		if flusher != nil {
			flusher.Flush()
		}
		return nil
	}

	reads := make(chan readResult)
	go func() {
		defer close(reads)
		buf := make([]byte, 4096)
		for {
			n, err := upstream.Read(buf)
			var data []byte
			if n > 0 {
				data = append([]byte(nil), buf[:n]...)
			}
			select {
			case reads <- readResult{data: data, err: err}:
			case <-ctx.Done():
				return
			}
			if err != nil {
				return
			}
		}
	}()

	var timeout <-chan time.Time
	var timer *time.Timer
	if r.idle > 0 {
		timer = time.NewTimer(r.idle)
		defer timer.Stop()
		timeout = timer.C
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timeout:
			return ErrUpstreamTimeout
		case res, ok := <-reads:
			if !ok {
				return nil
			}
			if timer != nil {
				if !timer.Stop() {
					<-timer.C
				}
				timer.Reset(r.idle)
			}
			if len(res.data) > 0 {
				done, err := r.dec.Feed(res.data)
				if err != nil {
					return err
				}
				if done {
					return r.finish(w, flusher)
				}
			}
			if res.err != nil {
				if errors.Is(res.err, io.EOF) {
					if _, err := r.dec.Close(); err != nil {
						return err
					}
					return r.finish(w, flusher)
				}
				return &StreamReadError{Err: res.err}
			}
		}
	}
}

func (r *Relay) finish(w io.Writer, flusher http.Flusher) error {
	if _, err := io.WriteString(w, framePrefix+doneSentinel+"\n"); err != nil {
		return fmt.Errorf("client write failed: %w", err)
	}
	if flusher != nil {
		flusher.Flush()
	}
	return nil
}

// Think returns the reasoning text accumulated by this relay's stream.
func (r *Relay) Think() string { return r.dec.Think() }

// Response returns the answer transcript accumulated by this relay's stream.
func (r *Relay) Response() string { return r.dec.Response() }
