package simproto

import (
	"bytes"
	"testing"
)

func TestHelloRoundTrip(t *testing.T) {
	in := Hello{RouterID: 0x01010101, UDPPort: 40001}
	out, err := DecodeHello(in.Encode())
	if err != nil {
		t.Fatalf("DecodeHello: %v", err)
	}
	if *out != in {
		t.Errorf("round trip mismatch: %+v", out)
	}
}

func TestTickResponseRoundTrip(t *testing.T) {
	in := TickResponse{
		Tick: 99,
		Stats: DBStats{
			LowArea:       1,
			AreaLSAs:      7,
			AreaChecksum:  0xdeadbeef,
			ASExternals:   2,
			ASExternalSum: 0x1234,
		},
	}
	out, err := DecodeTickResponse(in.Encode())
	if err != nil {
		t.Fatalf("DecodeTickResponse: %v", err)
	}
	if *out != in {
		t.Errorf("round trip mismatch: %+v", out)
	}
}

func TestAddrMapRoundTrip(t *testing.T) {
	in := &AddrMap{
		Full: true,
		Entries: []AddrMapEntry{
			{Addr: 0x0a000101, RouterID: 0x01010101, UDPPort: 40001},
			{Addr: 0x0a000102, RouterID: 0x02020202, UDPPort: 40002},
		},
		Nets: []NetMembers{
			{Network: 0x0a000100, Routers: []uint32{0x01010101, 0x02020202}},
		},
	}
	out, err := DecodeAddrMap(in.Encode())
	if err != nil {
		t.Fatalf("DecodeAddrMap: %v", err)
	}
	if !out.Full || len(out.Entries) != 2 || len(out.Nets) != 1 {
		t.Fatalf("shape mismatch: %+v", out)
	}
	if out.Entries[1] != in.Entries[1] {
		t.Errorf("entry mismatch: %+v", out.Entries[1])
	}
	if len(out.Nets[0].Routers) != 2 || out.Nets[0].Routers[0] != 0x01010101 {
		t.Errorf("members mismatch: %+v", out.Nets[0])
	}
}

func TestDatagramRoundTrip(t *testing.T) {
	in := &Datagram{
		Sim: SimHeader{TimestampSec: 12, TimestampMsec: 350, PhyInt: 2},
		IP:  IPHeader{Src: 0x0a000001, Dst: 0x0a000002, Proto: ProtoOSPF, TTL: 1},
		Payload: []byte{0xde, 0xad, 0xbe, 0xef},
	}
	out, err := DecodeDatagram(in.Encode())
	if err != nil {
		t.Fatalf("DecodeDatagram: %v", err)
	}
	if out.Sim != in.Sim {
		t.Errorf("sim header mismatch: %+v", out.Sim)
	}
	if out.IP.Src != in.IP.Src || out.IP.Dst != in.IP.Dst || out.IP.Proto != in.IP.Proto || out.IP.TTL != in.IP.TTL {
		t.Errorf("ip header mismatch: %+v", out.IP)
	}
	if !bytes.Equal(out.Payload, in.Payload) {
		t.Errorf("payload mismatch: %x", out.Payload)
	}
}

func TestDatagramTruncated(t *testing.T) {
	in := &Datagram{
		Sim:     SimHeader{},
		IP:      IPHeader{Proto: ProtoICMP, TTL: 64},
		Payload: []byte("payload"),
	}
	wire := in.Encode()
	if _, err := DecodeDatagram(wire[:len(wire)-3]); err == nil {
		t.Error("expected error for truncated datagram")
	}
}

func TestICMPRoundTrip(t *testing.T) {
	in := &ICMPMessage{Type: IcmpEcho, Code: 0, Ident: 7, Sequence: 3, Original: 0x08010203}
	out, err := DecodeICMP(in.Encode())
	if err != nil {
		t.Fatalf("DecodeICMP: %v", err)
	}
	if *out != *in {
		t.Errorf("round trip mismatch: %+v", out)
	}
}

func TestIsMulticast(t *testing.T) {
	if !IsMulticast(0xe0000005) { // 224.0.0.5
		t.Error("224.0.0.5 should be multicast")
	}
	if IsMulticast(0x0a000001) {
		t.Error("10.0.0.1 should not be multicast")
	}
}
