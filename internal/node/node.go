// Package node implements the Node-side proxy engine: the dispatcher that
// consumes inbound bi-streams from the Gateway (or from a hole-punched peer)
// and proxies them to a configured upstream.
package node

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/quic-go/quic-go"

	"github.com/reformc/rweb/internal/forwarding"
	"github.com/reformc/rweb/internal/identifier"
	"github.com/reformc/rweb/internal/preamble"
	"github.com/reformc/rweb/internal/reformerr"
	"github.com/reformc/rweb/internal/rendezvous"
)

// natPunchTimeout bounds how long a Node waits for a relayed P2P rendezvous
// to produce a hole-punched connection before giving up.
const natPunchTimeout = 20 * time.Second

// Node holds the forwarding table and the Gateway address used for loop
// detection.
type Node struct {
	Table       *forwarding.Table
	GatewayAddr *net.TCPAddr

	// LocalPort and SelfAddr, when set, let HandleStream answer P2P
	// rendezvous requests relayed by the Gateway on behalf of this Node.
	LocalPort int
	SelfAddr  string
}

// New returns a Node ready to dispatch inbound bi-streams against table.
func New(table *forwarding.Table, gatewayAddr *net.TCPAddr) *Node {
	return &Node{Table: table, GatewayAddr: gatewayAddr}
}

// Register writes the node's identifier list on a fresh uni-stream, per the
// registration wire format (u16 BE count, N * 6 bytes).
func Register(ctx context.Context, conn *quic.Conn, ids []identifier.ID) error {
	uni, err := conn.OpenUniStreamSync(ctx)
	if err != nil {
		return fmt.Errorf("node: open registration stream: %w", err)
	}
	if err := identifier.WriteList(uni, ids); err != nil {
		uni.Close()
		return fmt.Errorf("node: write registration: %w", err)
	}
	return uni.Close()
}

// AcceptLoop accepts bi-streams from conn until it closes, dispatching each
// to HandleStream in its own goroutine.
func (n *Node) AcceptLoop(conn *quic.Conn) {
	for {
		stream, err := conn.AcceptStream(context.Background())
		if err != nil {
			return
		}
		go n.HandleStream(stream)
	}
}

// HandleStream processes one inbound bi-stream: consumes the six-byte
// identifier prefix, peeks the preamble, and dispatches on method.
func (n *Node) HandleStream(raw *quic.Stream) {
	defer raw.Close()

	p := preamble.New(raw)
	var idBuf [identifier.Size]byte
	if err := p.ReadIdentifierPrefix(idBuf[:]); err != nil {
		p.Write(reformerr.BadRequest())
		return
	}
	id, err := identifier.FromBytes(idBuf[:])
	if err != nil {
		p.Write(reformerr.BadRequest())
		return
	}

	upstream, hasUpstream := n.Table.Lookup(id)
	if !hasUpstream {
		p.Write(reformerr.BadRequest())
		return
	}

	h, err := p.PeekHeader()
	if err != nil {
		p.Write(reformerr.BadRequest())
		return
	}

	switch {
	case h.Method == "CONNECT":
		n.handleConnect(p, h)
	case h.Method == "P2P":
		n.handleP2P(p, id)
	default:
		if _, proxyConn := h.Get("Proxy-Connection"); proxyConn {
			n.handleOldStyleProxy(p, h)
			return
		}
		n.handleForward(p, upstream)
	}
}

func (n *Node) handleP2P(p *preamble.PeekableStream, id identifier.ID) {
	ctx, cancel := context.WithTimeout(context.Background(), natPunchTimeout)
	defer cancel()

	punched, err := rendezvous.RespondTarget(ctx, p, n.LocalPort, id, n.SelfAddr)
	if err != nil {
		log.Printf("node: P2P rendezvous failed: %v", err)
		return
	}
	n.AcceptLoop(punched)
}

func (n *Node) handleConnect(p *preamble.PeekableStream, h *preamble.Header) {
	p.PeekRemove()

	addr, err := net.ResolveTCPAddr("tcp", h.URI)
	if err != nil {
		p.Write(reformerr.BadRequest())
		return
	}
	if n.isLoop(addr) {
		p.Write(reformerr.LoopDetected())
		return
	}

	upstream, err := net.DialTCP("tcp", nil, addr)
	if err != nil {
		p.Write(reformerr.BadRequest())
		return
	}
	defer upstream.Close()

	if _, err := p.Write(reformerr.ConnectEstablished()); err != nil {
		return
	}
	copyBoth(p, upstream)
}

// rewriteOldStyleProxy mutates h in place per spec §4.4's old-style-proxy
// rewrite and returns the host:port the rewritten request should be
// forwarded to. It performs no I/O, so it can be tested directly.
func rewriteOldStyleProxy(h *preamble.Header) (hostPort string, ok bool) {
	u, err := url.Parse(h.URI)
	if err != nil || u.Host == "" {
		return "", false
	}

	// preamble.Parse already drops a header whose key equals the method.
	h.Remove("Proxy-Connection")
	h.Set("Connection", "close")

	prefix := u.Scheme + "://" + u.Host
	path := strings.TrimPrefix(h.URI, prefix)
	if path == "" {
		path = "/"
	}
	h.URI = path

	return hostPortOrDefault(u), true
}

// handleOldStyleProxy rewrites the preamble to strip proxy-only headers and
// the scheme://host[:port] prefix from the request path, then forwards to
// the extracted host.
func (n *Node) handleOldStyleProxy(p *preamble.PeekableStream, h *preamble.Header) {
	hostPort, ok := rewriteOldStyleProxy(h)
	if !ok {
		p.Write(reformerr.BadRequest())
		return
	}

	addr, err := net.ResolveTCPAddr("tcp", hostPort)
	if err != nil {
		p.Write(reformerr.BadRequest())
		return
	}
	if n.isLoop(addr) {
		p.Write(reformerr.LoopDetected())
		return
	}

	p.ResetHeader(h)

	upstream, err := net.DialTCP("tcp", nil, addr)
	if err != nil {
		p.Write(reformerr.BadRequest())
		return
	}
	defer upstream.Close()
	copyBoth(p, upstream)
}

func (n *Node) handleForward(p *preamble.PeekableStream, upstream *url.URL) {
	addr, err := net.ResolveTCPAddr("tcp", forwarding.HostPort(upstream))
	if err != nil {
		p.Write(reformerr.BadRequest())
		return
	}
	if n.isLoop(addr) {
		p.Write(reformerr.LoopDetected())
		return
	}

	tcpConn, err := net.DialTCP("tcp", nil, addr)
	if err != nil {
		p.Write(reformerr.BadRequest())
		return
	}
	defer tcpConn.Close()

	var upstreamConn io.ReadWriteCloser = tcpConn
	if upstream.Scheme == "https" {
		tlsConn := tls.Client(tcpConn, &tls.Config{InsecureSkipVerify: true, ServerName: upstream.Hostname()})
		if err := tlsConn.Handshake(); err != nil {
			p.Write(reformerr.BadRequest())
			return
		}
		upstreamConn = tlsConn
	}
	defer upstreamConn.Close()
	copyBoth(p, upstreamConn)
}

func (n *Node) isLoop(addr *net.TCPAddr) bool {
	if n.GatewayAddr == nil {
		return false
	}
	return addr.IP.Equal(n.GatewayAddr.IP) && addr.Port == n.GatewayAddr.Port
}

func hostPortOrDefault(u *url.URL) string {
	if u.Port() != "" {
		return u.Host
	}
	switch u.Scheme {
	case "https":
		return u.Hostname() + ":443"
	case "rtsp":
		return u.Hostname() + ":554"
	default:
		return u.Hostname() + ":80"
	}
}

func copyBoth(a io.ReadWriter, b io.ReadWriteCloser) {
	done := make(chan struct{}, 2)
	go func() { io.Copy(b, a); done <- struct{}{} }()
	go func() { io.Copy(a, b); done <- struct{}{} }()
	<-done
}
