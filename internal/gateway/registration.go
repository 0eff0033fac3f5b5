package gateway

import (
	"context"
	"log"
	"time"

	"github.com/quic-go/quic-go"

	"github.com/reformc/rweb/internal/identifier"
	"github.com/reformc/rweb/internal/reformerr"
	"github.com/reformc/rweb/internal/rendezvous"
)

// registrationTimeout bounds how long the Gateway waits for a Node's
// registration uni-stream after the QUIC handshake completes.
const registrationTimeout = 5 * time.Second

// AcceptNodeConn drives one Node's connection lifecycle: read its
// registration uni-stream, validate and insert its identifiers, then block
// until the connection closes and remove them.
func (s *Server) AcceptNodeConn(conn *quic.Conn) {
	ctx, cancel := context.WithTimeout(context.Background(), registrationTimeout)
	uni, err := conn.AcceptUniStream(ctx)
	cancel()
	if err != nil {
		log.Printf("gateway: registration stream not received: %v", err)
		conn.CloseWithError(0, "registration timeout")
		return
	}

	ids, err := identifier.ReadList(uni)
	if err != nil {
		log.Printf("gateway: malformed registration: %v", err)
		conn.CloseWithError(0, "malformed registration")
		return
	}

	if err := s.Registry.RegisterAll(ids, conn); err != nil {
		log.Printf("gateway: registration rejected: %v", err)
		conn.CloseWithError(uint64(reformerr.CodeDuplicateRegistration), "node_mac already online")
		return
	}

	go s.acceptRelayStreams(conn)

	<-conn.Context().Done()
	s.Registry.Unregister(conn)
}

// acceptRelayStreams handles bi-streams a registered Node opens on its own
// connection to request P2P rendezvous with another Node.
func (s *Server) acceptRelayStreams(conn *quic.Conn) {
	observedAddr := conn.RemoteAddr().String()
	for {
		stream, err := conn.AcceptStream(context.Background())
		if err != nil {
			return
		}
		go rendezvous.Relay(s.Registry, stream, observedAddr)
	}
}
