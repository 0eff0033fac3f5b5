package node

import (
	"net"
	"net/url"
	"testing"

	"github.com/reformc/rweb/internal/preamble"
)

func TestRewriteOldStyleProxy(t *testing.T) {
	h := &preamble.Header{
		Method:  "GET",
		URI:     "http://192.0.2.12/path",
		Version: "HTTP/1.1",
		Fields: map[string]string{
			"Proxy-Connection": "keep-alive",
			"Host":             "aabbccddeeff.example.com",
		},
	}

	hostPort, ok := rewriteOldStyleProxy(h)
	if !ok {
		t.Fatal("rewriteOldStyleProxy: expected ok")
	}
	if hostPort != "192.0.2.12:80" {
		t.Fatalf("hostPort = %q, want %q", hostPort, "192.0.2.12:80")
	}
	if h.URI != "/path" {
		t.Fatalf("URI = %q, want %q", h.URI, "/path")
	}
	if _, ok := h.Get("Proxy-Connection"); ok {
		t.Fatal("expected Proxy-Connection removed")
	}
	if v, _ := h.Get("Connection"); v != "close" {
		t.Fatalf("Connection = %q, want %q", v, "close")
	}
}

func TestRewriteOldStyleProxyEmptyPathBecomesSlash(t *testing.T) {
	h := &preamble.Header{
		Method:  "GET",
		URI:     "http://192.0.2.12",
		Version: "HTTP/1.1",
		Fields:  map[string]string{"Proxy-Connection": "keep-alive"},
	}
	_, ok := rewriteOldStyleProxy(h)
	if !ok {
		t.Fatal("expected ok")
	}
	if h.URI != "/" {
		t.Fatalf("URI = %q, want %q", h.URI, "/")
	}
}

func TestHostPortOrDefault(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{"http://host/path", "host:80"},
		{"https://host/path", "host:443"},
		{"rtsp://host/stream", "host:554"},
		{"http://host:8080/path", "host:8080"},
	}
	for _, c := range cases {
		u, err := url.Parse(c.raw)
		if err != nil {
			t.Fatalf("url.Parse(%q): %v", c.raw, err)
		}
		if got := hostPortOrDefault(u); got != c.want {
			t.Fatalf("hostPortOrDefault(%q) = %q, want %q", c.raw, got, c.want)
		}
	}
}

func TestIsLoop(t *testing.T) {
	gw := &net.TCPAddr{IP: net.ParseIP("192.0.2.1"), Port: 5677}
	n := New(nil, gw)

	same := &net.TCPAddr{IP: net.ParseIP("192.0.2.1"), Port: 5677}
	if !n.isLoop(same) {
		t.Fatal("expected loop detected for identical address")
	}

	other := &net.TCPAddr{IP: net.ParseIP("192.0.2.2"), Port: 5677}
	if n.isLoop(other) {
		t.Fatal("expected no loop for different address")
	}
}

func TestIsLoopNilGatewayAddr(t *testing.T) {
	n := New(nil, nil)
	addr := &net.TCPAddr{IP: net.ParseIP("192.0.2.1"), Port: 5677}
	if n.isLoop(addr) {
		t.Fatal("expected no loop when gateway address is unknown")
	}
}
