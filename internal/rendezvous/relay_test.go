package rendezvous

import (
	"testing"

	"github.com/reformc/rweb/internal/natpredict"
)

func TestNatTypeString(t *testing.T) {
	if got := natType(natpredict.Symmetric); got != "Symmetric" {
		t.Fatalf("natType(Symmetric) = %q", got)
	}
	if got := natType(natpredict.FullCone); got != "FullCone" {
		t.Fatalf("natType(FullCone) = %q", got)
	}
}
