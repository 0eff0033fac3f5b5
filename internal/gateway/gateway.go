// Package gateway implements the public-facing dispatcher: it terminates
// plain HTTP, TLS-wrapped HTTPS, RTSP-over-TCP and HTTP CONNECT on one TCP
// listener, and steers each accepted stream onto the owning Node's QUIC
// connection.
package gateway

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/url"

	"github.com/reformc/rweb/internal/identifier"
	"github.com/reformc/rweb/internal/preamble"
	"github.com/reformc/rweb/internal/reformerr"
	"github.com/reformc/rweb/internal/registry"
)

// errConnectNotAllowed signals a CONNECT request arriving on the plain-TCP
// side of the listener, which is only permitted over the TLS side.
var errConnectNotAllowed = errors.New("gateway: CONNECT not allowed on plain TCP")

// Server dispatches accepted public connections onto registered Nodes.
type Server struct {
	Registry  *registry.Registry
	TLSConfig *tls.Config
}

// New returns a Server backed by reg, TLS-terminating with tlsConfig.
func New(reg *registry.Registry, tlsConfig *tls.Config) *Server {
	return &Server{Registry: reg, TLSConfig: tlsConfig}
}

// Serve accepts connections on ln until Accept returns an error.
func (s *Server) Serve(ln net.Listener) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return err
		}
		go s.handleConn(conn)
	}
}

// bufConn lets a connection's first byte be peeked (to decide TLS vs. plain)
// without losing it, by routing subsequent reads through the same
// bufio.Reader that performed the peek.
type bufConn struct {
	net.Conn
	r *bufio.Reader
}

func (b *bufConn) Read(p []byte) (int, error) { return b.r.Read(p) }

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	br := bufio.NewReader(conn)
	first, err := br.Peek(1)
	if err != nil {
		return
	}
	wrapped := &bufConn{Conn: conn, r: br}

	var stream preamble.Stream = wrapped
	var sni string
	isTLS := first[0] == 0x16

	if isTLS {
		tlsConn := tls.Server(wrapped, s.TLSConfig)
		if err := tlsConn.HandshakeContext(context.Background()); err != nil {
			log.Printf("gateway: TLS handshake failed: %v", err)
			return
		}
		sni = tlsConn.ConnectionState().ServerName
		stream = tlsConn
	}

	p := preamble.New(stream)
	h, err := p.PeekHeader()
	if err != nil {
		log.Printf("gateway: preamble read failed: %v", err)
		return
	}

	id, err := s.classify(h, sni, !isTLS)
	if err != nil {
		if errors.Is(err, errConnectNotAllowed) {
			p.Write(reformerr.ConnectNotAllowed())
		}
		return
	}

	s.forward(p, id)
}

// classify extracts the target identifier from a request preamble per the
// Gateway's policy branches, in order: RTSP OPTIONS, CONNECT-over-plain
// (rejected), then SNI-or-Host label.
func (s *Server) classify(h *preamble.Header, sni string, isPlain bool) (identifier.ID, error) {
	if h.Method == "OPTIONS" && h.Version == "RTSP/1.0" {
		u, err := url.Parse(h.URI)
		if err != nil || u.Hostname() == "" {
			return identifier.None, fmt.Errorf("gateway: RTSP OPTIONS uri has no host: %q", h.URI)
		}
		label, err := preamble.HostLabel(u.Hostname())
		if err != nil {
			return identifier.None, err
		}
		return identifier.FromText(label)
	}

	if isPlain && h.Method == "CONNECT" {
		return identifier.None, errConnectNotAllowed
	}

	host := sni
	if host == "" {
		host, _ = h.Get("Host")
	}
	if host == "" {
		return identifier.None, fmt.Errorf("gateway: no SNI or Host header present")
	}
	label, err := preamble.HostLabel(host)
	if err != nil {
		return identifier.None, err
	}
	return identifier.FromText(label)
}

// forward looks up id's owning Node, opens a bi-stream prefixed with id, and
// copies bytes in both directions until either side closes. On any failure
// to reach the Node it replies with the canned offline body instead.
func (s *Server) forward(p *preamble.PeekableStream, id identifier.ID) {
	conn, ok := s.Registry.Lookup(id)
	if !ok {
		p.Write(reformerr.DeviceOffline())
		return
	}

	bi, err := conn.OpenStreamSync(context.Background())
	if err != nil {
		p.Write(reformerr.DeviceOffline())
		return
	}
	defer bi.Close()

	if _, err := bi.Write(id[:]); err != nil {
		return
	}

	done := make(chan struct{}, 2)
	go func() { io.Copy(bi, p); done <- struct{}{} }()
	go func() { io.Copy(p, bi); done <- struct{}{} }()
	<-done
}

// ResolveAddr resolves host:port into a *net.TCPAddr, the address form the
// Node side's loop detection compares against (see internal/node).
func ResolveAddr(hostPort string) (*net.TCPAddr, error) {
	return net.ResolveTCPAddr("tcp", hostPort)
}
