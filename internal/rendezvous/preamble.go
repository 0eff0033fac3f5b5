// Package rendezvous implements the Gateway-mediated NAT traversal protocol:
// the P2P/P2PTEST signaling preamble, the Gateway's relay between two Node
// connections, and the Node-side initiator and probe-server roles.
package rendezvous

import (
	"fmt"

	"github.com/reformc/rweb/internal/identifier"
	"github.com/reformc/rweb/internal/preamble"
)

const (
	methodP2P     = "P2P"
	uriP2P        = "/p2p"
	uriP2PTest    = "/p2ptest"
	versionHTTP11 = "HTTP/1.1"
)

// Signal is one parsed P2P/P2PTEST signaling message.
type Signal struct {
	Mac        identifier.ID
	Addr       string
	SelfAddr   string
	NatTypeHdr string
	IsProbe    bool
}

// BuildRequest serializes a P2P signaling preamble for mac, announcing addr
// (the address this side wants relayed) and, if known, selfAddr (the
// address this side observed for itself via a P2PTEST probe).
func BuildRequest(mac identifier.ID, addr, selfAddr string) []byte {
	return build(uriP2P, mac, addr, selfAddr, "")
}

// BuildProbeRequest serializes a P2PTEST request preamble, used for the
// address-echo probe rather than a rendezvous negotiation.
func BuildProbeRequest(mac identifier.ID) []byte {
	return build(uriP2PTest, mac, "0.0.0.0:0", "", "")
}

// BuildReply serializes a P2P signaling reply carrying natType, as computed
// by whichever side (Gateway relay or Node) classifies this leg.
func BuildReply(mac identifier.ID, addr, selfAddr, natType string) []byte {
	return build(uriP2P, mac, addr, selfAddr, natType)
}

func build(uri string, mac identifier.ID, addr, selfAddr, natType string) []byte {
	h := &preamble.Header{
		Method:  methodP2P,
		URI:     uri,
		Version: versionHTTP11,
		Fields: map[string]string{
			"mac":  mac.String(),
			"addr": addr,
		},
	}
	if selfAddr != "" {
		h.Set("self_addr", selfAddr)
	}
	if natType != "" {
		h.Set("Nat-Type", natType)
	}
	return preamble.Serialize(h)
}

// Parse extracts a Signal from a P2P/P2PTEST preamble.
func Parse(h *preamble.Header) (Signal, error) {
	if h.Method != methodP2P {
		return Signal{}, fmt.Errorf("rendezvous: unexpected method %q", h.Method)
	}
	macText, ok := h.Get("mac")
	if !ok {
		return Signal{}, fmt.Errorf("rendezvous: missing mac header")
	}
	mac, err := identifier.FromText(macText)
	if err != nil {
		return Signal{}, fmt.Errorf("rendezvous: invalid mac %q: %w", macText, err)
	}
	addr, _ := h.Get("addr")
	selfAddr, _ := h.Get("self_addr")
	natType, _ := h.Get("Nat-Type")

	return Signal{
		Mac:        mac,
		Addr:       addr,
		SelfAddr:   selfAddr,
		NatTypeHdr: natType,
		IsProbe:    h.URI == uriP2PTest,
	}, nil
}
