package natpredict

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/quic-go/quic-go"

	"github.com/reformc/rweb/internal/quictransport"
)

// CandidateTimeout bounds a single candidate's QUIC handshake attempt.
const CandidateTimeout = 3 * time.Second

// MaxRounds is the number of retry rounds attempted before the sweep gives
// up, per spec's fixed hole-punch retry cadence.
const MaxRounds = 5

// Sweep races QUIC dial attempts against up to width predicted ports on
// peerIP, retrying up to MaxRounds times, and returns the first connection
// to complete its handshake. localPort is reused across all attempts via
// SO_REUSEADDR/SO_REUSEPORT so the same socket that dialed out can also
// receive the peer's simultaneous-open packet.
func Sweep(ctx context.Context, localPort int, peerIP net.IP, observedPort uint16, width int) (*quic.Conn, error) {
	for round := 0; round < MaxRounds; round++ {
		conn, err := sweepRound(ctx, localPort, peerIP, observedPort, width)
		if err == nil {
			return conn, nil
		}
	}
	return nil, fmt.Errorf("natpredict: hole-punch exhausted %d rounds", MaxRounds)
}

func sweepRound(ctx context.Context, localPort int, peerIP net.IP, observedPort uint16, width int) (*quic.Conn, error) {
	roundCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type result struct {
		conn *quic.Conn
		err  error
	}
	results := make(chan result, width)

	for _, port := range Candidates(observedPort, width) {
		go func(port uint16) {
			conn, err := dialCandidate(roundCtx, localPort, &net.UDPAddr{IP: peerIP, Port: int(port)})
			results <- result{conn, err}
		}(port)
	}

	var firstErr error
	for i := 0; i < width; i++ {
		r := <-results
		if r.err == nil {
			cancel()
			return r.conn, nil
		}
		if firstErr == nil {
			firstErr = r.err
		}
	}
	return nil, firstErr
}

func dialCandidate(ctx context.Context, localPort int, remote *net.UDPAddr) (*quic.Conn, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, CandidateTimeout)
	defer cancel()

	lc := net.ListenConfig{Control: setSimultaneousBind}
	packetConn, err := lc.ListenPacket(ctx, "udp", fmt.Sprintf(":%d", localPort))
	if err != nil {
		return nil, fmt.Errorf("natpredict: bind local port %d: %w", localPort, err)
	}
	udpConn := packetConn.(*net.UDPConn)

	tr := &quic.Transport{Conn: udpConn}
	conn, err := quictransport.DialPeer(ctx, tr, remote)
	if err != nil {
		udpConn.Close()
		time.Sleep(time.Until(start.Add(CandidateTimeout)))
		return nil, fmt.Errorf("natpredict: dial %v: %w", remote, err)
	}
	return conn, nil
}
