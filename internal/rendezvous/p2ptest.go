package rendezvous

import (
	"context"
	"fmt"
	"io"
	"net"

	"github.com/quic-go/quic-go"

	"github.com/reformc/rweb/internal/addrcodec"
	"github.com/reformc/rweb/internal/quictransport"
)

// RunProbeServer accepts connections on ln and, for each, writes the
// connecting peer's observed UDP address back on a fresh uni-stream, using
// the binary address codec. This lets a Node behind NAT learn the public
// address it appears to have as seen from a second UDP endpoint, separate
// from the registration endpoint; a difference between the two observed
// addresses is what distinguishes Symmetric from FullCone NAT.
func RunProbeServer(ctx context.Context, ln *quic.Listener) error {
	for {
		conn, err := ln.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("rendezvous: probe accept: %w", err)
		}
		go respondToProbe(ctx, conn)
	}
}

func respondToProbe(ctx context.Context, conn *quic.Conn) {
	defer conn.CloseWithError(0, "probe complete")

	remote, ok := conn.RemoteAddr().(*net.UDPAddr)
	if !ok {
		return
	}
	uni, err := conn.OpenUniStreamSync(ctx)
	if err != nil {
		return
	}
	defer uni.Close()

	buf, err := addrcodec.Encode(remote)
	if err != nil {
		return
	}
	uni.Write(buf)
}

// ProbeSelfAddr dials a P2PTEST probe server at probeAddr over tr and
// returns the address the probe server observed for this dial.
func ProbeSelfAddr(ctx context.Context, tr *quic.Transport, probeAddr *net.UDPAddr) (*net.UDPAddr, error) {
	conn, err := quictransport.DialPeer(ctx, tr, probeAddr)
	if err != nil {
		return nil, fmt.Errorf("rendezvous: dial probe: %w", err)
	}
	defer conn.CloseWithError(0, "probe complete")

	uni, err := conn.AcceptUniStream(ctx)
	if err != nil {
		return nil, fmt.Errorf("rendezvous: accept probe reply: %w", err)
	}

	buf := make([]byte, 19)
	n, err := io.ReadAtLeast(uni, buf, 7)
	if err != nil {
		return nil, fmt.Errorf("rendezvous: read probe reply: %w", err)
	}
	addr, _, err := addrcodec.Decode(buf[:n])
	if err != nil {
		return nil, fmt.Errorf("rendezvous: decode probe reply: %w", err)
	}
	return addr, nil
}
