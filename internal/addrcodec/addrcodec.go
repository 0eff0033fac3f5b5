// Package addrcodec implements the binary socket address wire format used in
// the P2PTEST probe reply: a family byte, 4 or 16 address bytes, and a
// big-endian port.
package addrcodec

import (
	"encoding/binary"
	"fmt"
	"net"
)

const (
	familyIPv4 = 0x04
	familyIPv6 = 0x06
)

// Encode writes addr as family byte + address bytes + big-endian u16 port.
func Encode(addr *net.UDPAddr) ([]byte, error) {
	ip4 := addr.IP.To4()
	if ip4 != nil {
		out := make([]byte, 1+4+2)
		out[0] = familyIPv4
		copy(out[1:5], ip4)
		binary.BigEndian.PutUint16(out[5:7], uint16(addr.Port))
		return out, nil
	}
	ip16 := addr.IP.To16()
	if ip16 == nil {
		return nil, fmt.Errorf("addrcodec: invalid IP %v", addr.IP)
	}
	out := make([]byte, 1+16+2)
	out[0] = familyIPv6
	copy(out[1:17], ip16)
	binary.BigEndian.PutUint16(out[17:19], uint16(addr.Port))
	return out, nil
}

// Decode parses the wire format Encode produces, returning the address and
// the number of bytes consumed.
func Decode(buf []byte) (*net.UDPAddr, int, error) {
	if len(buf) < 1 {
		return nil, 0, fmt.Errorf("addrcodec: empty buffer")
	}
	switch buf[0] {
	case familyIPv4:
		if len(buf) < 1+4+2 {
			return nil, 0, fmt.Errorf("addrcodec: short ipv4 buffer")
		}
		ip := net.IP(append([]byte{}, buf[1:5]...))
		port := binary.BigEndian.Uint16(buf[5:7])
		return &net.UDPAddr{IP: ip, Port: int(port)}, 7, nil
	case familyIPv6:
		if len(buf) < 1+16+2 {
			return nil, 0, fmt.Errorf("addrcodec: short ipv6 buffer")
		}
		ip := net.IP(append([]byte{}, buf[1:17]...))
		port := binary.BigEndian.Uint16(buf[17:19])
		return &net.UDPAddr{IP: ip, Port: int(port)}, 19, nil
	default:
		return nil, 0, fmt.Errorf("addrcodec: unknown family byte 0x%02x", buf[0])
	}
}
