package forwarding

import (
	"encoding/json"
	"fmt"

	"github.com/reformc/rweb/internal/identifier"
)

// P2PCell is one --p2p-list row: a peer identifier and the local TCP port
// whose accepted connections are tunnelled to that peer.
type P2PCell struct {
	ID   identifier.ID
	Port uint16
}

type jsonP2PCell struct {
	Mac  string `json:"mac"`
	Port uint16 `json:"port"`
}

// ParseP2PList decodes a JSON array of {"mac","port"} rows.
func ParseP2PList(data []byte) ([]P2PCell, error) {
	var rows []jsonP2PCell
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("forwarding: decode p2p list: %w", err)
	}
	out := make([]P2PCell, 0, len(rows))
	for _, row := range rows {
		id, err := identifier.FromText(row.Mac)
		if err != nil {
			return nil, fmt.Errorf("forwarding: invalid mac %q: %w", row.Mac, err)
		}
		out = append(out, P2PCell{ID: id, Port: row.Port})
	}
	return out, nil
}

// P2PTable indexes P2PCell rows by their local listen port, mirroring the
// Rust original's by-port lookup.
type P2PTable struct {
	cells []P2PCell
}

// NewP2PTable builds a P2PTable from decoded cells.
func NewP2PTable(cells []P2PCell) *P2PTable {
	return &P2PTable{cells: cells}
}

// LookupPort returns the cell whose Port matches key.
func (t *P2PTable) LookupPort(key uint16) (P2PCell, bool) {
	for _, c := range t.cells {
		if c.Port == key {
			return c, true
		}
	}
	return P2PCell{}, false
}

// Ports returns every port present in the table.
func (t *P2PTable) Ports() []uint16 {
	out := make([]uint16, 0, len(t.cells))
	for _, c := range t.cells {
		out = append(out, c.Port)
	}
	return out
}
