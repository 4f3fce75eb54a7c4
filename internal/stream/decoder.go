package stream

import (
	"bytes"
	"strings"
)

// EventKind distinguishes reasoning output from answer output.
type EventKind string

const (
	KindThink    EventKind = "think"
	KindResponse EventKind = "response"
)

// Event is one classified fragment of a model stream. For KindResponse,
// Content is the full transcript accumulated so far (cumulative, never a
// delta). For KindThink, Content is the reasoning text accumulated across
// all think-tagged payloads of the stream.
type Event struct {
	Kind    EventKind `json:"kind"`
	Content string    `json:"content"`
}

// Sink receives classified events synchronously. Returning an error stops
// decoding; the error is propagated to the caller feeding the decoder.
type Sink func(Event) error

const (
	framePrefix  = "data: "
	doneSentinel = "[DONE]"
	thinkOpen    = "<think>"
	thinkClose   = "</think>"
)

// Decoder turns an incrementally delivered byte stream of `data: <payload>`
// lines into classified events. Input may be split at arbitrary byte
// boundaries: bytes are buffered until a newline arrives, so a multi-byte
// rune split across reads is never corrupted.
type Decoder struct {
	sink Sink

	// Frame, when set, is called with each accepted payload before
	// classification (sentinel excluded). Used by Relay to forward the
	// wire frame downstream.
	Frame func(payload string) error

	buf      []byte
	think    strings.Builder
	response strings.Builder
	done     bool
}

func NewDecoder(sink Sink) *Decoder {
	return &Decoder{sink: sink}
}

// Feed consumes the next chunk of upstream bytes. It returns done=true once
// the [DONE] sentinel has been seen; the sentinel itself is never emitted
// as an event. Any further input after that is ignored.
func (d *Decoder) Feed(p []byte) (bool, error) {
	if d.done {
		return true, nil
	}
	d.buf = append(d.buf, p...)
	for {
		i := bytes.IndexByte(d.buf, '\n')
		if i < 0 {
			return false, nil
		}
		line := strings.TrimSuffix(string(d.buf[:i]), "\r")
		d.buf = d.buf[i+1:]

		done, err := d.line(line)
		if err != nil {
			return false, err
		}
		if done {
			d.done = true
			d.buf = nil
			return true, nil
		}
	}
}

// Close processes any trailing bytes that were not newline-terminated.
// Call it when the upstream reaches EOF.
func (d *Decoder) Close() (bool, error) {
	if d.done || len(d.buf) == 0 {
		return d.done, nil
	}
	line := strings.TrimSuffix(string(d.buf), "\r")
	d.buf = nil
	done, err := d.line(line)
	if done {
		d.done = true
	}
	return done, err
}

func (d *Decoder) line(line string) (bool, error) {
	payload, ok := strings.CutPrefix(line, framePrefix)
	if !ok {
		// Framing noise: blank keep-alive lines, comments, etc.
		return false, nil
	}
	if payload == doneSentinel {
		return true, nil
	}
	if payload == "" {
		return false, nil
	}
	if d.Frame != nil {
		if err := d.Frame(payload); err != nil {
			return false, err
		}
	}

	// A payload carrying either marker is reasoning content. The markers
	// are stripped and the text accumulates across tagged payloads, so a
	// reasoning block spanning several frames keeps its earlier text.
	if strings.Contains(payload, thinkOpen) || strings.Contains(payload, thinkClose) {
		text := strings.ReplaceAll(payload, thinkOpen, "")
		text = strings.ReplaceAll(text, thinkClose, "")
		d.think.WriteString(text)
		return false, d.emit(Event{Kind: KindThink, Content: d.think.String()})
	}

	d.response.WriteString(payload)
	return false, d.emit(Event{Kind: KindResponse, Content: d.response.String()})
}

func (d *Decoder) emit(ev Event) error {
	if d.sink == nil {
		return nil
	}
	return d.sink(ev)
}

// Think returns the reasoning text accumulated so far.
func (d *Decoder) Think() string { return d.think.String() }

// Response returns the answer transcript accumulated so far.
func (d *Decoder) Response() string { return d.response.String() }

// Done reports whether the terminal sentinel has been seen.
func (d *Decoder) Done() bool { return d.done }
