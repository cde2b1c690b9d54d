package ospf

import (
	"bytes"
	"fmt"
	"net"
)

// HeaderLength is the fixed size, in bytes, of the common OSPF packet header.
const HeaderLength = 24

// Header is the 24-byte common OSPF packet header (RFC 2328 §A.3.1) shared
// by all five packet types.
type Header struct {
	Version    uint8
	Type       PacketType
	Length     uint16 // includes this header
	RouterID   RouterID
	AreaID     AreaID
	Checksum   uint16
	AuType     AuType
	AuthData   [8]byte // simple password, or MD5 {keyID, dataLen, seqNum} per RFC 2328 §D.4.3
}

// Encode appends the header to buf in wire order.
func (h *Header) Encode(buf *bytes.Buffer) error {
	if err := buf.WriteByte(h.Version); err != nil {
		return err
	}
	if err := buf.WriteByte(byte(h.Type)); err != nil {
		return err
	}
	if err := WriteUint16(buf, h.Length); err != nil {
		return err
	}
	if err := WriteUint32(buf, uint32(h.RouterID)); err != nil {
		return err
	}
	if err := WriteUint32(buf, uint32(h.AreaID)); err != nil {
		return err
	}
	if err := WriteUint16(buf, h.Checksum); err != nil {
		return err
	}
	if err := WriteUint16(buf, uint16(h.AuType)); err != nil {
		return err
	}
	_, err := buf.Write(h.AuthData[:])
	return err
}

// DecodeHeader parses the 24-byte common header from the start of b.
func DecodeHeader(b []byte) (*Header, error) {
	if len(b) < HeaderLength {
		return nil, fmt.Errorf("ospf: packet too short for header: %d bytes", len(b))
	}
	h := &Header{
		Version: b[0],
		Type:    PacketType(b[1]),
	}
	var err error
	var u16 uint16
	var u32 uint32

	if u16, err = ReadUint16(b, 2); err != nil {
		return nil, err
	}
	h.Length = u16

	if u32, err = ReadUint32(b, 4); err != nil {
		return nil, err
	}
	h.RouterID = RouterID(u32)

	if u32, err = ReadUint32(b, 8); err != nil {
		return nil, err
	}
	h.AreaID = AreaID(u32)

	if u16, err = ReadUint16(b, 12); err != nil {
		return nil, err
	}
	h.Checksum = u16

	if u16, err = ReadUint16(b, 14); err != nil {
		return nil, err
	}
	h.AuType = AuType(u16)

	copy(h.AuthData[:], b[16:24])
	return h, nil
}

// LSAHeader is the 20-byte LSA header common to every LSA type (RFC 2328
// §A.4.1). The storage key derived from it - (Type, LSID, AdvRouter) - is
// what the LSDB and retransmission lists index by.
type LSAHeader struct {
	Age            uint16 // includes the DoNotAge high bit; callers use AgeValue()/IsDoNotAge()
	Options        uint8
	Type           LSAType
	LSID           uint32
	AdvRouter      RouterID
	SequenceNumber int32
	Checksum       uint16
	Length         uint16 // header + body
}

// AgeValue returns the age in seconds with the DoNotAge bit masked off.
func (h LSAHeader) AgeValue() uint16 { return h.Age &^ DoNotAge }

// IsDoNotAge reports whether the DoNotAge bit is set.
func (h LSAHeader) IsDoNotAge() bool { return h.Age&DoNotAge != 0 }

// Key returns the composite storage key used by the LSDB.
func (h LSAHeader) Key() LSAKey {
	return LSAKey{Type: h.Type, LSID: h.LSID, AdvRouter: h.AdvRouter}
}

// LSAKey is the composite map key every LSA is stored under within its
// flooding scope (area, link, or AS) - replacing the AVL/patricia trees of
// balanced-tree keyed stores of older implementations.
type LSAKey struct {
	Type      LSAType
	LSID      uint32
	AdvRouter RouterID
}

func (k LSAKey) String() string {
	return fmt.Sprintf("%s(id=%s,adv=%s)", k.Type, net.IP(RouterID(k.LSID).IP()), k.AdvRouter)
}

// Encode appends the 20-byte LSA header to buf.
func (h *LSAHeader) Encode(buf *bytes.Buffer) error {
	if err := WriteUint16(buf, h.Age); err != nil {
		return err
	}
	if err := buf.WriteByte(h.Options); err != nil {
		return err
	}
	if err := buf.WriteByte(byte(h.Type)); err != nil {
		return err
	}
	if err := WriteUint32(buf, h.LSID); err != nil {
		return err
	}
	if err := WriteUint32(buf, uint32(h.AdvRouter)); err != nil {
		return err
	}
	if err := WriteUint32(buf, uint32(h.SequenceNumber)); err != nil {
		return err
	}
	if err := WriteUint16(buf, h.Checksum); err != nil {
		return err
	}
	return WriteUint16(buf, h.Length)
}

// DecodeLSAHeader parses a 20-byte LSA header from the start of b.
func DecodeLSAHeader(b []byte) (*LSAHeader, error) {
	if len(b) < 20 {
		return nil, fmt.Errorf("ospf: packet too short for LSA header: %d bytes", len(b))
	}
	h := &LSAHeader{}
	var err error

	if h.Age, err = ReadUint16(b, 0); err != nil {
		return nil, err
	}
	h.Options = b[2]
	h.Type = LSAType(b[3])

	if h.LSID, err = ReadUint32(b, 4); err != nil {
		return nil, err
	}
	var adv uint32
	if adv, err = ReadUint32(b, 8); err != nil {
		return nil, err
	}
	h.AdvRouter = RouterID(adv)

	var seq uint32
	if seq, err = ReadUint32(b, 12); err != nil {
		return nil, err
	}
	h.SequenceNumber = int32(seq)

	if h.Checksum, err = ReadUint16(b, 16); err != nil {
		return nil, err
	}
	if h.Length, err = ReadUint16(b, 18); err != nil {
		return nil, err
	}
	return h, nil
}

// ComputeChecksum computes and sets the Fletcher checksum over the LSA,
// per RFC 2328 §12.1.4: the checksum covers the LSA header (excluding the
// LS-Age field) and the body.
func ComputeChecksum(header *LSAHeader, body []byte) uint16 {
	buf := &bytes.Buffer{}
	// Checksum is computed with Age excluded: start from Options.
	buf.WriteByte(header.Options)
	buf.WriteByte(byte(header.Type))
	_ = WriteUint32(buf, header.LSID)
	_ = WriteUint32(buf, uint32(header.AdvRouter))
	_ = WriteUint32(buf, uint32(header.SequenceNumber))
	_ = WriteUint16(buf, 0) // checksum field itself, zeroed
	_ = WriteUint16(buf, header.Length)
	buf.Write(body)

	data := buf.Bytes()
	const checksumOffsetFromOptions = 1 + 1 + 4 + 4 + 4 // bytes before checksum field
	return Fletcher16(data, checksumOffsetFromOptions)
}
