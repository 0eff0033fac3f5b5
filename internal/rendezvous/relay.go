package rendezvous

import (
	"context"
	"log"

	"github.com/google/uuid"
	"github.com/quic-go/quic-go"

	"github.com/reformc/rweb/internal/natpredict"
	"github.com/reformc/rweb/internal/preamble"
	"github.com/reformc/rweb/internal/registry"
)

// Relay handles one P2P signaling bi-stream opened by an initiator Node
// against its Gateway connection: it forwards the request to the target
// Node, classifies each leg's NAT type independently, and threads the
// target's reply back to the initiator.
func Relay(reg *registry.Registry, initiator *quic.Stream, observedInitiatorAddr string) {
	negotiationID := uuid.NewString()
	defer initiator.Close()

	p := preamble.New(initiator)
	h, err := p.PeekHeader()
	if err != nil {
		log.Printf("rendezvous[%s]: read initiator preamble: %v", negotiationID, err)
		return
	}
	sig, err := Parse(h)
	if err != nil {
		log.Printf("rendezvous[%s]: parse initiator preamble: %v", negotiationID, err)
		return
	}

	targetConn, ok := reg.Lookup(sig.Mac)
	if !ok {
		log.Printf("rendezvous[%s]: target %s not registered", negotiationID, sig.Mac)
		return
	}

	ctx := context.Background()
	target, err := targetConn.OpenStreamSync(ctx)
	if err != nil {
		log.Printf("rendezvous[%s]: open target stream: %v", negotiationID, err)
		return
	}
	defer target.Close()

	initiatorNatType := natType(natpredict.Classify(observedInitiatorAddr, sig.SelfAddr))

	if _, err := target.Write(sig.Mac[:]); err != nil {
		return
	}
	if _, err := target.Write(BuildReply(sig.Mac, observedInitiatorAddr, sig.SelfAddr, initiatorNatType)); err != nil {
		return
	}

	targetP := preamble.New(target)
	targetHeader, err := targetP.PeekHeader()
	if err != nil {
		log.Printf("rendezvous[%s]: read target reply: %v", negotiationID, err)
		return
	}
	targetSig, err := Parse(targetHeader)
	if err != nil {
		log.Printf("rendezvous[%s]: parse target reply: %v", negotiationID, err)
		return
	}

	observedTargetAddr, ok := remoteAddrString(targetConn)
	if !ok {
		observedTargetAddr = targetSig.Addr
	}
	targetNatType := natType(natpredict.Classify(observedTargetAddr, targetSig.SelfAddr))

	reply := BuildReply(sig.Mac, observedTargetAddr, targetSig.SelfAddr, targetNatType)
	if _, err := initiator.Write(reply); err != nil {
		log.Printf("rendezvous[%s]: write reply to initiator: %v", negotiationID, err)
	}
}

func natType(t natpredict.NatType) string {
	if t == natpredict.Symmetric {
		return "Symmetric"
	}
	return "FullCone"
}

func remoteAddrString(conn *quic.Conn) (string, bool) {
	addr := conn.RemoteAddr()
	if addr == nil {
		return "", false
	}
	return addr.String(), true
}
