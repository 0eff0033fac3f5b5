package rendezvous

import (
	"net"
	"testing"

	"github.com/reformc/rweb/internal/natpredict"
)

func TestSweepWidthForSignal(t *testing.T) {
	if got := sweepWidthForSignal(Signal{NatTypeHdr: "Symmetric"}); got != natpredict.SweepWidth(natpredict.Symmetric) {
		t.Fatalf("sweepWidthForSignal(Symmetric) = %d", got)
	}
	if got := sweepWidthForSignal(Signal{NatTypeHdr: "FullCone"}); got != natpredict.SweepWidth(natpredict.FullCone) {
		t.Fatalf("sweepWidthForSignal(FullCone) = %d", got)
	}
	if got := sweepWidthForSignal(Signal{}); got != natpredict.SweepWidth(natpredict.FullCone) {
		t.Fatalf("sweepWidthForSignal(empty) = %d, want FullCone width", got)
	}
}

func TestParsePeerAddrIPv4Literal(t *testing.T) {
	ip, port, err := parsePeerAddr("203.0.113.5:4000")
	if err != nil {
		t.Fatalf("parsePeerAddr: %v", err)
	}
	if !ip.Equal(net.ParseIP("203.0.113.5")) {
		t.Fatalf("ip = %v", ip)
	}
	if port != 4000 {
		t.Fatalf("port = %d, want 4000", port)
	}
}

func TestParsePeerAddrRejectsMalformed(t *testing.T) {
	if _, _, err := parsePeerAddr("not-an-addr"); err == nil {
		t.Fatal("expected error for malformed addr")
	}
}

func TestParsePeerAddrRejectsBadPort(t *testing.T) {
	if _, _, err := parsePeerAddr("203.0.113.5:not-a-port"); err == nil {
		t.Fatal("expected error for non-numeric port")
	}
}
