// Package natpredict implements the symmetric-NAT port-prediction function
// and the candidate sweep that races hole-punch attempts across predicted
// ports.
package natpredict

// NatType classifies the address-translation behavior a peer's NAT shows
// across two observed endpoints.
type NatType int

const (
	// FullCone means the peer's self-reported address matches the address
	// the Gateway observed; a single candidate port is worth trying.
	FullCone NatType = iota
	// Symmetric means the two addresses differ; the peer picks a new
	// source port per destination, so a wide sweep of predicted ports is
	// needed.
	Symmetric
)

// SweepWidth returns how many candidate ports to try for a peer classified
// as t.
func SweepWidth(t NatType) int {
	if t == Symmetric {
		return 1000
	}
	return 1
}

// portBand is a contiguous, non-overlapping range of source ports sharing a
// common allocation pattern.
type portBand struct{ min, max uint16 }

// bands is the non-overlapping interpretation of the port-prediction table;
// the source data has an overlapping band (13684..32768) that is almost
// certainly a typo for 16384..32768, corrected here.
var bands = []portBand{
	{1, 1024},
	{1025, 16383},
	{16384, 32767},
	{32768, 49151},
	{49152, 65535},
}

func bandFor(port uint16) portBand {
	for _, b := range bands {
		if port >= b.min && port <= b.max {
			return b
		}
	}
	return bands[len(bands)-1]
}

// PredictPort is a pure function over (observedPort, i): it returns the
// i-th candidate port to try, wrapping around within observedPort's band
// once the band's top is exceeded so the result always stays in range.
func PredictPort(observedPort uint16, i int) uint16 {
	b := bandFor(observedPort)
	width := int(b.max) - int(b.min) + 1
	offset := ((int(observedPort) - int(b.min) + i) % width)
	return b.min + uint16(offset)
}

// Candidates returns the first n predicted ports starting from i=0.
func Candidates(observedPort uint16, n int) []uint16 {
	out := make([]uint16, n)
	for i := 0; i < n; i++ {
		out[i] = PredictPort(observedPort, i)
	}
	return out
}

// Classify derives the NatType from the two addresses exchanged during
// rendezvous: the address the Gateway observed for a peer, and the address
// the peer reports observing for itself (if it ran the P2PTEST probe).
func Classify(observed, selfReported string) NatType {
	if selfReported == "" || selfReported == observed {
		return FullCone
	}
	return Symmetric
}
