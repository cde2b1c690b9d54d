package ospf

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"net"
)

// ============================================================================
// Low-level wire helpers
//
// OSPF fields are natively word-aligned (unlike XDR's opaque/string types),
// so unlike an RPC codec there is no padding to compute here - every helper
// below is a thin, explicit wrapper over encoding/binary so that field
// offsets in Encode/Decode read the same as the RFC's packet diagrams.
// ============================================================================

// WriteUint16 appends a big-endian uint16 to buf.
func WriteUint16(buf *bytes.Buffer, v uint16) error {
	return binary.Write(buf, binary.BigEndian, v)
}

// WriteUint32 appends a big-endian uint32 to buf.
func WriteUint32(buf *bytes.Buffer, v uint32) error {
	return binary.Write(buf, binary.BigEndian, v)
}

// WriteIPv4 appends a 4-byte IPv4 address in network byte order.
func WriteIPv4(buf *bytes.Buffer, ip net.IP) error {
	v4 := ip.To4()
	if v4 == nil {
		return fmt.Errorf("ospf: %v is not an IPv4 address", ip)
	}
	_, err := buf.Write(v4)
	return err
}

// ReadUint16 reads a big-endian uint16 at offset off.
func ReadUint16(b []byte, off int) (uint16, error) {
	if off+2 > len(b) {
		return 0, fmt.Errorf("ospf: short buffer reading uint16 at %d (len %d)", off, len(b))
	}
	return binary.BigEndian.Uint16(b[off:]), nil
}

// ReadUint32 reads a big-endian uint32 at offset off.
func ReadUint32(b []byte, off int) (uint32, error) {
	if off+4 > len(b) {
		return 0, fmt.Errorf("ospf: short buffer reading uint32 at %d (len %d)", off, len(b))
	}
	return binary.BigEndian.Uint32(b[off:]), nil
}

// ReadIPv4 reads a 4-byte IPv4 address at offset off.
func ReadIPv4(b []byte, off int) (net.IP, error) {
	if off+4 > len(b) {
		return nil, fmt.Errorf("ospf: short buffer reading IPv4 at %d (len %d)", off, len(b))
	}
	ip := make(net.IP, 4)
	copy(ip, b[off:off+4])
	return ip, nil
}

// RouterID is a 32-bit OSPF router identifier, conventionally printed as a
// dotted-quad even though it need not correspond to a reachable address.
type RouterID uint32

func (r RouterID) String() string {
	return fmt.Sprintf("%d.%d.%d.%d", byte(r>>24), byte(r>>16), byte(r>>8), byte(r))
}

// RouterIDFromIP converts a 4-byte IPv4 address into a RouterID.
func RouterIDFromIP(ip net.IP) RouterID {
	v4 := ip.To4()
	if v4 == nil {
		return 0
	}
	return RouterID(binary.BigEndian.Uint32(v4))
}

// IP renders a RouterID (or any LS-ID / area-ID shaped uint32) as an IPv4 address.
func (r RouterID) IP() net.IP {
	ip := make(net.IP, 4)
	binary.BigEndian.PutUint32(ip, uint32(r))
	return ip
}

// AreaID is a 32-bit OSPF area identifier; zero is the backbone area.
type AreaID uint32

func (a AreaID) String() string { return RouterID(a).String() }

// Backbone is the well-known backbone area ID.
const Backbone AreaID = 0
