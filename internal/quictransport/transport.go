// Package quictransport bootstraps the single QUIC endpoint configuration
// shared by the Gateway (dual client+server role) and a Node (client role
// dialing the Gateway, server role accepting peer hole-punches).
package quictransport

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"time"

	"github.com/quic-go/quic-go"
)

// Fixed transport policy, not a runtime knob.
const (
	MaxIdleTimeout                 = 21 * time.Second
	KeepAliveInterval              = 10 * time.Second
	MaxConcurrentBidiStreams       = 10_000
	MaxConcurrentUniStreamsGateway = 10_000
	MaxConcurrentUniStreamsNode    = 1_000

	// ServerName is the fixed ALPN/SNI-adjacent identity clients present
	// when dialing the Gateway. Client certificate verification is
	// disabled: Gateway identity rests on possession of the shared
	// self-signed certificate embedded in every Node build, not on a CA
	// chain.
	ServerName = "reform"
)

func quicConfig(maxUniStreams int64) *quic.Config {
	return &quic.Config{
		MaxIdleTimeout:                 MaxIdleTimeout,
		KeepAlivePeriod:                KeepAliveInterval,
		MaxIncomingStreams:             MaxConcurrentBidiStreams,
		MaxIncomingUniStreams:          maxUniStreams,
	}
}

// OpenDualEndpoint binds a UDP socket and configures it as a QUIC endpoint
// that can both accept Node registrations and act as a QUIC server for the
// rendezvous relay. Used by the Gateway.
func OpenDualEndpoint(bindAddr string, certPEM, keyPEM, trustedCertPEM []byte) (*quic.Transport, *tls.Config, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", bindAddr)
	if err != nil {
		return nil, nil, fmt.Errorf("quictransport: resolve %q: %w", bindAddr, err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, nil, fmt.Errorf("quictransport: listen %q: %w", bindAddr, err)
	}

	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("quictransport: load keypair: %w", err)
	}

	tlsConf := &tls.Config{
		Certificates:       []tls.Certificate{cert},
		NextProtos:         []string{ServerName},
		ClientAuth:         tls.NoClientCert,
		InsecureSkipVerify: true,
	}

	tr := &quic.Transport{Conn: conn}
	return tr, tlsConf, nil
}

// Listen starts accepting QUIC connections on tr using tlsConf and the
// Gateway-side stream limits.
func Listen(tr *quic.Transport, tlsConf *tls.Config) (*quic.Listener, error) {
	return tr.Listen(tlsConf, quicConfig(MaxConcurrentUniStreamsGateway))
}

// OpenClientEndpoint binds a UDP socket on bindAddr for dialing out. It sets
// no trust policy; DialGateway and DialPeer supply the TLS config per dial.
func OpenClientEndpoint(bindAddr string) (*quic.Transport, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", bindAddr)
	if err != nil {
		return nil, fmt.Errorf("quictransport: resolve %q: %w", bindAddr, err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, fmt.Errorf("quictransport: listen %q: %w", bindAddr, err)
	}
	return &quic.Transport{Conn: conn}, nil
}

// DialGateway dials the Gateway's QUIC endpoint, presenting ServerName and
// trusting only the Gateway's bundled certificate.
func DialGateway(ctx context.Context, tr *quic.Transport, addr *net.UDPAddr, trustedCertPEM []byte) (*quic.Conn, error) {
	tlsConf, err := trustedConfig(trustedCertPEM)
	if err != nil {
		return nil, err
	}
	return tr.Dial(ctx, addr, tlsConf, quicConfig(MaxConcurrentUniStreamsNode))
}

// DialPeer dials a hole-punched peer address. Peer identity is established
// by the rendezvous handshake, not by certificate chain, so server
// certificate verification is disabled (unlike DialGateway, which pins the
// Gateway's certificate).
func DialPeer(ctx context.Context, tr *quic.Transport, addr *net.UDPAddr) (*quic.Conn, error) {
	tlsConf := &tls.Config{
		NextProtos:         []string{ServerName},
		InsecureSkipVerify: true,
	}
	return tr.Dial(ctx, addr, tlsConf, quicConfig(MaxConcurrentUniStreamsNode))
}

// trustedConfig builds a tls.Config that trusts exactly the certificate in
// trustedCertPEM, rather than any system CA. Gateway identity is pinned to
// the single self-signed certificate embedded in the Node binary at build
// time.
func trustedConfig(trustedCertPEM []byte) (*tls.Config, error) {
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(trustedCertPEM) {
		return nil, fmt.Errorf("quictransport: no certificate found in trusted PEM")
	}
	return &tls.Config{
		ServerName: ServerName,
		NextProtos: []string{ServerName},
		RootCAs:    pool,
	}, nil
}

// AcceptLoop accepts connections from ln until ctx is cancelled, invoking
// handler for each one in its own goroutine.
func AcceptLoop(ctx context.Context, ln *quic.Listener, handler func(*quic.Conn)) error {
	for {
		conn, err := ln.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("quictransport: accept: %w", err)
		}
		go handler(conn)
	}
}
