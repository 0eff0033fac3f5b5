// Package forwarding holds the Node's forwarding table: the set of
// (identifier, upstream URL) entries a Node was started with, plus the JSON
// decoding for the --proxy-list and --p2p-list configuration files.
package forwarding

import (
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/reformc/rweb/internal/identifier"
)

// defaultPorts maps a forwarding-table URL scheme to the port assumed when
// the URL carries none.
var defaultPorts = map[string]string{
	"http":  "80",
	"https": "443",
	"rtsp":  "554",
}

// Entry is one forwarding-table row: an identifier and the upstream URL it
// forwards to.
type Entry struct {
	ID  identifier.ID
	URL *url.URL
}

// Table is the Node's identifier -> upstream lookup, built once at startup
// from --proxy-list and held immutable afterward.
type Table struct {
	byID map[identifier.ID]*url.URL
}

// jsonEntry mirrors the wire shape of one --proxy-list row: {"mac": "...",
// "url": "..."}.
type jsonEntry struct {
	Mac string `json:"mac"`
	URL string `json:"url"`
}

// ParseProxyList decodes a JSON array of {"mac","url"} rows into a Table.
func ParseProxyList(data []byte) (*Table, error) {
	var rows []jsonEntry
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("forwarding: decode proxy list: %w", err)
	}

	t := &Table{byID: make(map[identifier.ID]*url.URL, len(rows))}
	for _, row := range rows {
		id, err := identifier.FromText(row.Mac)
		if err != nil {
			return nil, fmt.Errorf("forwarding: invalid mac %q: %w", row.Mac, err)
		}
		u, err := url.Parse(row.URL)
		if err != nil {
			return nil, fmt.Errorf("forwarding: invalid url %q: %w", row.URL, err)
		}
		if _, ok := defaultPorts[u.Scheme]; !ok {
			return nil, fmt.Errorf("forwarding: unsupported scheme %q in %q", u.Scheme, row.URL)
		}
		if _, ok := t.byID[id]; ok {
			return nil, fmt.Errorf("forwarding: duplicate identifier %s", id)
		}
		t.byID[id] = u
	}
	return t, nil
}

// Lookup returns the upstream URL registered for id.
func (t *Table) Lookup(id identifier.ID) (*url.URL, bool) {
	u, ok := t.byID[id]
	return u, ok
}

// IDs returns every identifier in the table, in no particular order. This is
// the set a Node registers with the Gateway.
func (t *Table) IDs() []identifier.ID {
	ids := make([]identifier.ID, 0, len(t.byID))
	for id := range t.byID {
		ids = append(ids, id)
	}
	return ids
}

// HostPort returns "host:port" for u, filling in the scheme's default port
// when u carries none.
func HostPort(u *url.URL) string {
	if u.Port() != "" {
		return u.Host
	}
	return u.Hostname() + ":" + defaultPorts[u.Scheme]
}
