// Package preamble implements the request preamble codec (method, URI,
// version, headers) and the PeekableStream that lets a proxy inspect and
// rewrite a preamble before any bytes are forwarded.
package preamble

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/net/idna"
)

// MaxSize is the maximum byte length of a preamble before parsing fails.
const MaxSize = 65536

// Header is a parsed request preamble: the first-line tokens plus a
// case-sensitive, first-match header map.
type Header struct {
	Method  string
	URI     string
	Version string
	Fields  map[string]string
}

// Get returns the header value for key, if present.
func (h *Header) Get(key string) (string, bool) {
	v, ok := h.Fields[key]
	return v, ok
}

// Set inserts or overwrites a header value.
func (h *Header) Set(key, value string) {
	if h.Fields == nil {
		h.Fields = make(map[string]string)
	}
	h.Fields[key] = value
}

// Remove deletes a header value, if present.
func (h *Header) Remove(key string) {
	delete(h.Fields, key)
}

// Parse splits buf on '\r'/'\n' into lines. The first non-empty line splits
// on single spaces into method/uri/version (at least 3 tokens); the
// remaining lines split on the first ':' into trimmed key/value pairs. Any
// header whose key equals method is dropped. Parse fails if method, uri, or
// version is empty.
func Parse(buf []byte) (*Header, error) {
	lines := bytes.FieldsFunc(buf, func(r rune) bool { return r == '\r' || r == '\n' })
	h := &Header{Fields: make(map[string]string)}

	if len(lines) == 0 {
		return nil, fmt.Errorf("preamble: empty buffer")
	}

	first := string(lines[0])
	parts := strings.SplitN(first, " ", 3)
	if len(parts) == 3 {
		h.Method = parts[0]
		h.URI = parts[1]
		h.Version = parts[2]
	}

	for _, line := range lines[1:] {
		kv := strings.SplitN(string(line), ":", 2)
		if len(kv) != 2 {
			continue
		}
		key := strings.TrimSpace(kv[0])
		value := strings.TrimSpace(kv[1])
		if key == h.Method {
			continue
		}
		if _, seen := h.Fields[key]; seen {
			continue
		}
		h.Fields[key] = value
	}

	if h.Method == "" || h.URI == "" || h.Version == "" {
		return nil, fmt.Errorf("preamble: method, uri and version must be non-empty")
	}
	return h, nil
}

// Serialize writes the preamble back to wire form: "method SP uri SP
// version CRLF" then each header as "key: value CRLF", then a final CRLF.
// Header order is not guaranteed.
func Serialize(h *Header) []byte {
	var buf bytes.Buffer
	buf.WriteString(h.Method)
	buf.WriteByte(' ')
	buf.WriteString(h.URI)
	buf.WriteByte(' ')
	buf.WriteString(h.Version)
	buf.WriteString("\r\n")
	for k, v := range h.Fields {
		buf.WriteString(k)
		buf.WriteString(": ")
		buf.WriteString(v)
		buf.WriteString("\r\n")
	}
	buf.WriteString("\r\n")
	return buf.Bytes()
}

// HostLabel returns the leftmost dot-separated label of host, with IDNA
// punycode normalization applied first so an internationalized Host header
// still yields the plain-ASCII identifier label underneath it.
func HostLabel(host string) (string, error) {
	host = strings.TrimSpace(host)
	if h, _, ok := strings.Cut(host, ":"); ok && strings.Count(host, ":") == 1 {
		host = h
	}
	ascii, err := idna.ToASCII(host)
	if err != nil {
		ascii = host
	}
	ascii = strings.ToLower(ascii)
	label, _, _ := strings.Cut(ascii, ".")
	if label == "" {
		return "", fmt.Errorf("preamble: empty host label in %q", host)
	}
	return label, nil
}
