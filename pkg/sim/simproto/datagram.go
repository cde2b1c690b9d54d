package simproto

import (
	"encoding/binary"
	"fmt"
)

// IP protocol numbers carried in simulated datagrams.
const (
	ProtoICMP uint8 = 1
	ProtoIGMP uint8 = 2
	ProtoOSPF uint8 = 89
)

// ICMP types emulated by the router harness.
const (
	IcmpEchoReply       uint8 = 0
	IcmpUnreachable     uint8 = 3
	IcmpEcho            uint8 = 8
	IcmpTimeExceeded    uint8 = 11
)

// ICMP unreachable codes.
const (
	IcmpCodeNetUnreachable  uint8 = 0
	IcmpCodeHostUnreachable uint8 = 1
	IcmpCodePortUnreachable uint8 = 3
)

// DefaultTTL is the initial TTL of harness-originated datagrams.
const DefaultTTL uint8 = 64

// SimHeaderLength is the length of the per-datagram simulation header: the
// sender's timestamp (virtual seconds + milliseconds) and the outbound
// phyint.
const SimHeaderLength = 12

// SimHeader is the simulation envelope around every inter-router datagram.
type SimHeader struct {
	TimestampSec  uint32
	TimestampMsec uint32
	PhyInt        int32 // sender's outbound interface
}

// IPHeaderLength is the length of the simulator's fixed IP header. The
// simulator carries a reduced IPv4 header - addresses, protocol, TTL, and
// length are the only fields the harness's forwarding and ICMP emulation
// consume.
const IPHeaderLength = 12

// IPHeader is the simulated IP datagram header.
type IPHeader struct {
	Src    uint32
	Dst    uint32
	Proto  uint8
	TTL    uint8
	Length uint16 // header + payload
}

// Datagram is one simulated IP datagram in decoded form.
type Datagram struct {
	Sim     SimHeader
	IP      IPHeader
	Payload []byte
}

// Encode renders the datagram in wire form: sim header, IP header, payload.
func (d *Datagram) Encode() []byte {
	d.IP.Length = uint16(IPHeaderLength + len(d.Payload))
	b := make([]byte, SimHeaderLength+IPHeaderLength+len(d.Payload))
	binary.BigEndian.PutUint32(b[0:4], d.Sim.TimestampSec)
	binary.BigEndian.PutUint32(b[4:8], d.Sim.TimestampMsec)
	binary.BigEndian.PutUint32(b[8:12], uint32(d.Sim.PhyInt))

	binary.BigEndian.PutUint32(b[12:16], d.IP.Src)
	binary.BigEndian.PutUint32(b[16:20], d.IP.Dst)
	b[20] = d.IP.Proto
	b[21] = d.IP.TTL
	binary.BigEndian.PutUint16(b[22:24], d.IP.Length)
	copy(b[24:], d.Payload)
	return b
}

// DecodeDatagram parses one wire-form simulated datagram.
func DecodeDatagram(b []byte) (*Datagram, error) {
	if len(b) < SimHeaderLength+IPHeaderLength {
		return nil, fmt.Errorf("simproto: datagram too short: %d", len(b))
	}
	d := &Datagram{
		Sim: SimHeader{
			TimestampSec:  binary.BigEndian.Uint32(b[0:4]),
			TimestampMsec: binary.BigEndian.Uint32(b[4:8]),
			PhyInt:        int32(binary.BigEndian.Uint32(b[8:12])),
		},
		IP: IPHeader{
			Src:    binary.BigEndian.Uint32(b[12:16]),
			Dst:    binary.BigEndian.Uint32(b[16:20]),
			Proto:  b[20],
			TTL:    b[21],
			Length: binary.BigEndian.Uint16(b[22:24]),
		},
	}
	end := SimHeaderLength + int(d.IP.Length)
	if end > len(b) || int(d.IP.Length) < IPHeaderLength {
		return nil, fmt.Errorf("simproto: datagram length field %d inconsistent with %d bytes", d.IP.Length, len(b))
	}
	d.Payload = b[SimHeaderLength+IPHeaderLength: end]
	return d, nil
}

// ICMPMessage is the simulated ICMP payload: type, code, and for echo the
// identifier/sequence pair; errors instead carry the original destination
// the error refers to.
type ICMPMessage struct {
	Type     uint8
	Code     uint8
	Ident    uint16
	Sequence uint16
	Original uint32 // destination of the datagram that triggered an error
}

// ICMPLength is the fixed simulated ICMP message length.
const ICMPLength = 12

func (m *ICMPMessage) Encode() []byte {
	b := make([]byte, ICMPLength)
	b[0] = m.Type
	b[1] = m.Code
	binary.BigEndian.PutUint16(b[4:6], m.Ident)
	binary.BigEndian.PutUint16(b[6:8], m.Sequence)
	binary.BigEndian.PutUint32(b[8:12], m.Original)
	return b
}

func DecodeICMP(b []byte) (*ICMPMessage, error) {
	if len(b) < ICMPLength {
		return nil, fmt.Errorf("simproto: icmp too short: %d", len(b))
	}
	return &ICMPMessage{
		Type:     b[0],
		Code:     b[1],
		Ident:    binary.BigEndian.Uint16(b[4:6]),
		Sequence: binary.BigEndian.Uint16(b[6:8]),
		Original: binary.BigEndian.Uint32(b[8:12]),
	}, nil
}

// IsMulticast reports whether addr falls in 224.0.0.0/4.
func IsMulticast(addr uint32) bool {
	return addr>>28 == 0xe
}
