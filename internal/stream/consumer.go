package stream

import (
	"context"
	"errors"
	"io"
)

// Consumer is the client-side counterpart of Relay: it reads a relayed HTTP
// response body incrementally and maintains the two UI-facing buffers. It
// stops on the sentinel or when the connection closes; a read failure is
// fatal for the request, there is no automatic reconnect.
type Consumer struct {
	dec *Decoder
}

// NewConsumer builds a consumer. sink may be nil if the caller only reads
// the final buffers after Run returns.
func NewConsumer(sink Sink) *Consumer {
	return &Consumer{dec: NewDecoder(sink)}
}

// Run reads body until the sentinel, EOF or a read error. Chunk sizes are
// whatever the transport delivers; the decoder tolerates any split.
func (c *Consumer) Run(ctx context.Context, body io.Reader) error {
	buf := make([]byte, 2048)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := body.Read(buf)
		if n > 0 {
			done, ferr := c.dec.Feed(buf[:n])
			if ferr != nil {
				return ferr
			}
			if done {
				return nil
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				_, ferr := c.dec.Close()
				return ferr
			}
			return &StreamReadError{Err: err}
		}
	}
}

// Think returns the reasoning buffer.
func (c *Consumer) Think() string { return c.dec.Think() }

// Response returns the answer buffer.
func (c *Consumer) Response() string { return c.dec.Response() }

// Done reports whether the sentinel was seen.
func (c *Consumer) Done() bool { return c.dec.Done() }
