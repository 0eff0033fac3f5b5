package rendezvous

import (
	"context"
	"fmt"
	"io"
	"log"
	"net"
	"strconv"

	"github.com/quic-go/quic-go"

	"github.com/reformc/rweb/internal/identifier"
	"github.com/reformc/rweb/internal/natpredict"
	"github.com/reformc/rweb/internal/preamble"
)

// sweepWidthForSignal derives the hole-punch sweep width from a peer
// Signal's Nat-Type header, defaulting to FullCone (a single candidate) if
// the header is absent or unrecognized. Pure, so it can be tested directly.
func sweepWidthForSignal(peer Signal) int {
	natType := natpredict.FullCone
	if peer.NatTypeHdr == "Symmetric" {
		natType = natpredict.Symmetric
	}
	return natpredict.SweepWidth(natType)
}

// parsePeerAddr splits a Signal's Addr field into the IP and port the sweep
// should target. Pure aside from the DNS fallback, so the common IP-literal
// case can be tested without a resolver.
func parsePeerAddr(addr string) (net.IP, uint16, error) {
	host, portText, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, 0, fmt.Errorf("rendezvous: invalid peer addr %q: %w", addr, err)
	}
	ip := net.ParseIP(host)
	if ip == nil {
		resolved, err := net.ResolveIPAddr("ip", host)
		if err != nil {
			return nil, 0, fmt.Errorf("rendezvous: resolve peer host %q: %w", host, err)
		}
		ip = resolved.IP
	}
	port, err := strconv.Atoi(portText)
	if err != nil || port < 0 || port > 0xFFFF {
		return nil, 0, fmt.Errorf("rendezvous: invalid peer port %q", portText)
	}
	return ip, uint16(port), nil
}

// negotiateSweep runs the port-prediction sweep toward peer's observed
// address and Nat-Type, used by both the initiator and the target once each
// has a Signal describing the other side.
func negotiateSweep(ctx context.Context, localPort int, peer Signal) (*quic.Conn, error) {
	ip, port, err := parsePeerAddr(peer.Addr)
	if err != nil {
		return nil, err
	}
	return natpredict.Sweep(ctx, localPort, ip, port, sweepWidthForSignal(peer))
}

// Initiate opens a rendezvous request against targetID on the Gateway
// connection, waits for the relayed reply carrying the target's observed
// address and Nat-Type, then hole-punches a direct QUIC connection to the
// target. localPort is reused for both the Gateway connection's local port
// and every hole-punch candidate dial.
func Initiate(ctx context.Context, gatewayConn *quic.Conn, localPort int, targetID identifier.ID, selfAddr string) (*quic.Conn, error) {
	stream, err := gatewayConn.OpenStreamSync(ctx)
	if err != nil {
		return nil, fmt.Errorf("rendezvous: open signaling stream: %w", err)
	}
	defer stream.Close()

	if _, err := stream.Write(BuildRequest(targetID, "0.0.0.0:0", selfAddr)); err != nil {
		return nil, fmt.Errorf("rendezvous: send request: %w", err)
	}

	p := preamble.New(stream)
	h, err := p.PeekHeader()
	if err != nil {
		return nil, fmt.Errorf("rendezvous: read reply: %w", err)
	}
	sig, err := Parse(h)
	if err != nil {
		return nil, fmt.Errorf("rendezvous: parse reply: %w", err)
	}

	log.Printf("rendezvous: initiating hole-punch to %s (addr=%s nat=%s)", targetID, sig.Addr, sig.NatTypeHdr)
	return negotiateSweep(ctx, localPort, sig)
}

// RespondTarget handles an inbound P2P bi-stream delivered by the Gateway
// relay to the rendezvous target: it parses the initiator's Signal, replies
// with this side's own address information, and races its own hole-punch
// sweep toward the initiator's observed address.
func RespondTarget(ctx context.Context, p *preamble.PeekableStream, localPort int, ownMac identifier.ID, selfAddr string) (*quic.Conn, error) {
	h, err := p.PeekHeader()
	if err != nil {
		return nil, fmt.Errorf("rendezvous: read request: %w", err)
	}
	sig, err := Parse(h)
	if err != nil {
		return nil, fmt.Errorf("rendezvous: parse request: %w", err)
	}

	if _, err := p.Write(BuildReply(ownMac, "0.0.0.0:0", selfAddr, "")); err != nil {
		return nil, fmt.Errorf("rendezvous: send reply: %w", err)
	}

	return negotiateSweep(ctx, localPort, sig)
}

// ServeResponsePath accepts TCP connections on ln and proxies each over a
// fresh bi-stream on the hole-punched QUIC connection punched, prefixed with
// targetID so the receiving Node's dispatcher routes it correctly.
func ServeResponsePath(ln *net.TCPListener, punched *quic.Conn, targetID identifier.ID) error {
	for {
		conn, err := ln.AcceptTCP()
		if err != nil {
			return err
		}
		go relayLocalConn(conn, punched, targetID)
	}
}

func relayLocalConn(local *net.TCPConn, punched *quic.Conn, targetID identifier.ID) {
	defer local.Close()

	stream, err := punched.OpenStreamSync(context.Background())
	if err != nil {
		log.Printf("rendezvous: open response-path stream: %v", err)
		return
	}
	defer stream.Close()

	if _, err := stream.Write(targetID[:]); err != nil {
		return
	}

	done := make(chan struct{}, 2)
	go func() { io.Copy(stream, local); done <- struct{}{} }()
	go func() { io.Copy(local, stream); done <- struct{}{} }()
	<-done
}
