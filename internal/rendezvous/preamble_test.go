package rendezvous

import (
	"testing"

	"github.com/reformc/rweb/internal/identifier"
	"github.com/reformc/rweb/internal/preamble"
)

func mustID(t *testing.T, s string) identifier.ID {
	t.Helper()
	id, err := identifier.FromText(s)
	if err != nil {
		t.Fatalf("identifier.FromText(%q): %v", s, err)
	}
	return id
}

func TestBuildRequestRoundTrip(t *testing.T) {
	id := mustID(t, "001122334455")
	raw := BuildRequest(id, "203.0.113.5:4000", "198.51.100.9:5000")

	h, err := preamble.Parse(raw)
	if err != nil {
		t.Fatalf("preamble.Parse: %v", err)
	}
	sig, err := Parse(h)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if sig.Mac != id {
		t.Fatalf("Mac = %s, want %s", sig.Mac, id)
	}
	if sig.Addr != "203.0.113.5:4000" {
		t.Fatalf("Addr = %q", sig.Addr)
	}
	if sig.SelfAddr != "198.51.100.9:5000" {
		t.Fatalf("SelfAddr = %q", sig.SelfAddr)
	}
	if sig.NatTypeHdr != "" {
		t.Fatalf("NatTypeHdr = %q, want empty", sig.NatTypeHdr)
	}
	if sig.IsProbe {
		t.Fatal("IsProbe = true for a /p2p request")
	}
}

func TestBuildProbeRequestIsMarkedProbe(t *testing.T) {
	id := mustID(t, "aabbccddeeff")
	raw := BuildProbeRequest(id)

	h, err := preamble.Parse(raw)
	if err != nil {
		t.Fatalf("preamble.Parse: %v", err)
	}
	sig, err := Parse(h)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !sig.IsProbe {
		t.Fatal("IsProbe = false for a /p2ptest request")
	}
}

func TestBuildReplyCarriesNatType(t *testing.T) {
	id := mustID(t, "112233445566")
	raw := BuildReply(id, "203.0.113.5:4000", "", "Symmetric")

	h, err := preamble.Parse(raw)
	if err != nil {
		t.Fatalf("preamble.Parse: %v", err)
	}
	sig, err := Parse(h)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if sig.NatTypeHdr != "Symmetric" {
		t.Fatalf("NatTypeHdr = %q, want Symmetric", sig.NatTypeHdr)
	}
	if sig.SelfAddr != "" {
		t.Fatalf("SelfAddr = %q, want empty", sig.SelfAddr)
	}
}

func TestParseRejectsWrongMethod(t *testing.T) {
	h := &preamble.Header{Method: "GET", URI: "/", Version: "HTTP/1.1", Fields: map[string]string{}}
	if _, err := Parse(h); err == nil {
		t.Fatal("expected error for non-P2P method")
	}
}

func TestParseRejectsMissingMac(t *testing.T) {
	h := &preamble.Header{Method: methodP2P, URI: uriP2P, Version: versionHTTP11, Fields: map[string]string{}}
	if _, err := Parse(h); err == nil {
		t.Fatal("expected error for missing mac header")
	}
}
