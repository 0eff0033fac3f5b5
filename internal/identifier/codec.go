package identifier

import (
	"encoding/binary"
	"fmt"
	"io"
)

// WriteList writes the binary identifier-list codec: u16 big-endian count
// followed by Size*count bytes.
func WriteList(w io.Writer, ids []ID) error {
	if len(ids) > 0xFFFF {
		return fmt.Errorf("identifier: list too long: %d", len(ids))
	}
	var hdr [2]byte
	binary.BigEndian.PutUint16(hdr[:], uint16(len(ids)))
	if _, err := w.Write(hdr[:]); err != nil {
		return fmt.Errorf("identifier: write count: %w", err)
	}
	for _, id := range ids {
		if _, err := w.Write(id[:]); err != nil {
			return fmt.Errorf("identifier: write id: %w", err)
		}
	}
	return nil
}

// ReadList reads the binary identifier-list codec written by WriteList.
func ReadList(r io.Reader) ([]ID, error) {
	var hdr [2]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, fmt.Errorf("identifier: read count: %w", err)
	}
	n := binary.BigEndian.Uint16(hdr[:])
	ids := make([]ID, 0, n)
	for i := uint16(0); i < n; i++ {
		var buf [Size]byte
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return nil, fmt.Errorf("identifier: read id %d: %w", i, err)
		}
		ids = append(ids, buf)
	}
	return ids, nil
}
