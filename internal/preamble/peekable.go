package preamble

import (
	"bytes"
	"fmt"
	"io"
)

// Stream is the duck-typed duplex byte stream PeekableStream wraps: any
// concrete variant (raw TCP, TLS-over-TCP, a QUIC bi-stream) that can read
// and write.
type Stream interface {
	io.Reader
	io.Writer
}

// PeekableStream wraps a duplex byte stream with an in-memory read-ahead
// buffer. Bytes pulled into the buffer are re-emitted by ordinary reads
// before any fresh bytes from the underlying stream; the buffer can be
// replaced wholesale (ResetHeader) or dropped (PeekRemove) between reads.
type PeekableStream struct {
	inner Stream
	peek  []byte
}

// New wraps inner in a PeekableStream with an empty peek buffer.
func New(inner Stream) *PeekableStream {
	return &PeekableStream{inner: inner}
}

// Peek copies up to len(out) bytes from the peek buffer into out without
// consuming them. If the peek buffer is empty, it first reads at most one
// byte from the underlying stream into the buffer.
func (p *PeekableStream) Peek(out []byte) (int, error) {
	if len(p.peek) == 0 {
		var b [1]byte
		n, err := p.inner.Read(b[:])
		if n > 0 {
			p.peek = append(p.peek, b[:n]...)
		}
		if err != nil && n == 0 {
			return 0, err
		}
	}
	n := copy(out, p.peek)
	return n, nil
}

// PeekHeader extends the peek buffer with single-byte reads from the
// underlying stream until it ends with CRLFCRLF or exceeds MaxSize, then
// parses it as a preamble. The bytes remain in the peek buffer.
func (p *PeekableStream) PeekHeader() (*Header, error) {
	for !bytes.HasSuffix(p.peek, []byte("\r\n\r\n")) {
		if len(p.peek) > MaxSize {
			return nil, fmt.Errorf("preamble: header too long")
		}
		var b [1]byte
		n, err := p.inner.Read(b[:])
		if n > 0 {
			p.peek = append(p.peek, b[:n]...)
		}
		if err != nil {
			if n == 0 {
				return nil, err
			}
			break
		}
	}
	return Parse(p.peek)
}

// ResetHeader replaces the peek buffer entirely with the serialized form of
// h, so the next read observes the rewritten preamble.
func (p *PeekableStream) ResetHeader(h *Header) {
	p.peek = Serialize(h)
}

// PeekRemove clears the peek buffer, so the next read comes directly from
// the underlying stream.
func (p *PeekableStream) PeekRemove() {
	p.peek = nil
}

// ReadIdentifierPrefix reads exactly len(buf) bytes directly from the underlying
// stream, bypassing the peek buffer. Used to consume the fixed six-byte
// identifier prefix that always precedes any peek'd preamble bytes.
func (p *PeekableStream) ReadIdentifierPrefix(buf []byte) error {
	_, err := io.ReadFull(p.inner, buf)
	return err
}

// Read drains the peek buffer first; once it is empty, reads delegate to
// the underlying stream.
func (p *PeekableStream) Read(b []byte) (int, error) {
	if len(p.peek) > 0 {
		n := copy(b, p.peek)
		p.peek = p.peek[n:]
		return n, nil
	}
	return p.inner.Read(b)
}

// Write delegates straight to the underlying stream; the write path is not
// buffered.
func (p *PeekableStream) Write(b []byte) (int, error) {
	return p.inner.Write(b)
}

// Close closes the underlying stream if it implements io.Closer.
func (p *PeekableStream) Close() error {
	if c, ok := p.inner.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
