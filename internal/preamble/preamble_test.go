package preamble

import "testing"

func TestParseSerializeRoundTrip(t *testing.T) {
	raw := []byte("GET / HTTP/1.1\r\nHost: example.com\r\n\r\n")
	h, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if h.Method != "GET" || h.URI != "/" || h.Version != "HTTP/1.1" {
		t.Fatalf("got %+v", h)
	}
	v, ok := h.Get("Host")
	if !ok || v != "example.com" {
		t.Fatalf("Host header = %q, %v", v, ok)
	}

	out := Serialize(h)
	h2, err := Parse(out)
	if err != nil {
		t.Fatalf("re-parse serialized: %v", err)
	}
	if h2.Method != h.Method || h2.URI != h.URI || h2.Version != h.Version {
		t.Fatalf("round trip mismatch: %+v != %+v", h2, h)
	}
}

func TestParseRejectsEmptyTokens(t *testing.T) {
	cases := [][]byte{
		[]byte(" / HTTP/1.1\r\n\r\n"),
		[]byte("GET  HTTP/1.1\r\n\r\n"),
		[]byte("GET /\r\n\r\n"),
	}
	for _, c := range cases {
		if _, err := Parse(c); err == nil {
			t.Fatalf("Parse(%q) expected error", c)
		}
	}
}

func TestParseDropsMethodEchoHeader(t *testing.T) {
	raw := []byte("GET http://host/path HTTP/1.1\r\nGET: http://host/path\r\nProxy-Connection: keep-alive\r\n\r\n")
	h, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if _, ok := h.Get("GET"); ok {
		t.Fatalf("expected method-echo header GET to be dropped, fields=%+v", h.Fields)
	}
	if _, ok := h.Get("Proxy-Connection"); !ok {
		t.Fatalf("expected Proxy-Connection header to survive")
	}
}

func TestHostLabel(t *testing.T) {
	cases := []struct{ in, want string }{
		{"aabbccddeeff.example.com", "aabbccddeeff"},
		{"aabbccddeeff.example.com:8443", "aabbccddeeff"},
		{"AABBCCDDEEFF", "aabbccddeeff"},
	}
	for _, c := range cases {
		got, err := HostLabel(c.in)
		if err != nil {
			t.Fatalf("HostLabel(%q): %v", c.in, err)
		}
		if got != c.want {
			t.Fatalf("HostLabel(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
