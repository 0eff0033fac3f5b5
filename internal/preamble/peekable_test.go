package preamble

import (
	"bytes"
	"io"
	"net"
	"testing"
	"time"
)

// fakeStream is a minimal Stream backed by bytes, for tests that don't need
// a real duplex connection.
type fakeStream struct {
	r io.Reader
	w bytes.Buffer
}

func (f *fakeStream) Read(b []byte) (int, error)  { return f.r.Read(b) }
func (f *fakeStream) Write(b []byte) (int, error) { return f.w.Write(b) }

func TestPeekDoesNotConsume(t *testing.T) {
	s := &fakeStream{r: bytes.NewReader([]byte("hello"))}
	p := New(s)

	var out [1]byte
	if _, err := p.Peek(out[:]); err != nil {
		t.Fatalf("Peek: %v", err)
	}
	if out[0] != 'h' {
		t.Fatalf("Peek got %q, want 'h'", out[0])
	}

	buf := make([]byte, 5)
	n, err := io.ReadFull(p, buf)
	if err != nil {
		t.Fatalf("ReadFull: %v", err)
	}
	if string(buf[:n]) != "hello" {
		t.Fatalf("Read() = %q, want %q", buf[:n], "hello")
	}
}

func TestPeekHeaderThenReadReplaysBuffer(t *testing.T) {
	raw := "GET / HTTP/1.1\r\nHost: x\r\n\r\nBODY"
	s := &fakeStream{r: bytes.NewReader([]byte(raw))}
	p := New(s)

	h, err := p.PeekHeader()
	if err != nil {
		t.Fatalf("PeekHeader: %v", err)
	}
	if h.Method != "GET" {
		t.Fatalf("Method = %q", h.Method)
	}

	all, err := io.ReadAll(p)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(all) != raw {
		t.Fatalf("replayed bytes = %q, want %q", all, raw)
	}
}

func TestResetHeaderRewritesBuffer(t *testing.T) {
	raw := "GET / HTTP/1.1\r\nHost: x\r\n\r\nBODY"
	s := &fakeStream{r: bytes.NewReader([]byte(raw))}
	p := New(s)

	if _, err := p.PeekHeader(); err != nil {
		t.Fatalf("PeekHeader: %v", err)
	}

	rewritten := &Header{Method: "GET", URI: "/other", Version: "HTTP/1.1", Fields: map[string]string{}}
	p.ResetHeader(rewritten)

	all, err := io.ReadAll(p)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	want := string(Serialize(rewritten)) + "BODY"
	if string(all) != want {
		t.Fatalf("got %q, want %q", all, want)
	}
}

func TestPeekRemoveDropsBuffer(t *testing.T) {
	raw := "CONNECT host:443 HTTP/1.1\r\n\r\nBODY"
	s := &fakeStream{r: bytes.NewReader([]byte(raw))}
	p := New(s)

	if _, err := p.PeekHeader(); err != nil {
		t.Fatalf("PeekHeader: %v", err)
	}
	p.PeekRemove()

	all, err := io.ReadAll(p)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(all) != "BODY" {
		t.Fatalf("got %q, want %q", all, "BODY")
	}
}

func TestPeekHeaderTooLong(t *testing.T) {
	body := bytes.Repeat([]byte{'a'}, MaxSize+10)
	s := &fakeStream{r: bytes.NewReader(body)}
	p := New(s)
	if _, err := p.PeekHeader(); err == nil {
		t.Fatal("expected header too long error")
	}
}

func TestPeekableStreamOverNetPipe(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	go func() {
		client.Write([]byte("GET / HTTP/1.1\r\n\r\n"))
	}()

	p := New(server)
	server.SetReadDeadline(time.Now().Add(2 * time.Second))
	h, err := p.PeekHeader()
	if err != nil {
		t.Fatalf("PeekHeader: %v", err)
	}
	if h.Method != "GET" || h.URI != "/" {
		t.Fatalf("got %+v", h)
	}
}
