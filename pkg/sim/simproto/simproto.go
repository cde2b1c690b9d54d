// Package simproto defines the simulator's two wire surfaces:
// the framed TCP control channel between the controller and each simulated
// router, and the 12-byte header prepended to inter-router datagrams
// carried over UDP. Framing reuses internal/protocol/frame; this package
// adds the message type numbers and body encodings.
package simproto

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Version is the control-channel protocol version.
const Version = 1

// TicksPerSecond is the simulator's default virtual clock rate.
const TicksPerSecond = 20

// Controller-to-router message types.
const (
	MsgFirstTick      uint16 = 1
	MsgTick           uint16 = 2
	MsgConfig         uint16 = 3
	MsgConfigDel      uint16 = 4
	MsgAddrMap        uint16 = 5
	MsgShutdown       uint16 = 6
	MsgStartPing      uint16 = 7
	MsgStopPing       uint16 = 8
	MsgStartTR        uint16 = 9
	MsgAddMember      uint16 = 10
	MsgDelMember      uint16 = 11
	MsgStartMtrace    uint16 = 12
	MsgRestart        uint16 = 13
	MsgRestartHitless uint16 = 14
)

// Router-to-controller message types.
const (
	MsgHello          uint16 = 64
	MsgTickResponse   uint16 = 65
	MsgLogMsg         uint16 = 66
	MsgEchoReply      uint16 = 67
	MsgIcmpError      uint16 = 68
	MsgTracerouteTTL  uint16 = 69
	MsgTracerouteTmo  uint16 = 70
	MsgTracerouteDone uint16 = 71
	MsgPrintSession   uint16 = 72
)

// Hello identifies a router to the controller: its OSPF router ID and the
// UDP port on which it wants simulated datagrams delivered.
type Hello struct {
	RouterID uint32
	UDPPort  uint16
}

func (h *Hello) Encode() []byte {
	b := make([]byte, 6)
	binary.BigEndian.PutUint32(b[0:4], h.RouterID)
	binary.BigEndian.PutUint16(b[4:6], h.UDPPort)
	return b
}

func DecodeHello(b []byte) (*Hello, error) {
	if len(b) < 6 {
		return nil, fmt.Errorf("simproto: hello too short: %d", len(b))
	}
	return &Hello{
		RouterID: binary.BigEndian.Uint32(b[0:4]),
		UDPPort:  binary.BigEndian.Uint16(b[4:6]),
	}, nil
}

// Tick carries the controller's virtual clock value.
type Tick struct {
	Tick uint32
}

func (t *Tick) Encode() []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, t.Tick)
	return b
}

func DecodeTick(b []byte) (*Tick, error) {
	if len(b) < 4 {
		return nil, fmt.Errorf("simproto: tick too short: %d", len(b))
	}
	return &Tick{Tick: binary.BigEndian.Uint32(b)}, nil
}

// DBStats is the LSDB fingerprint a router reports with each tick
// acknowledgment: two routers carry identical fingerprints
// iff their databases are byte-identical.
type DBStats struct {
	LowArea       uint32
	AreaLSAs      uint32
	AreaChecksum  uint32
	ASExternals   uint32
	ASExternalSum uint32
}

// TickResponse acknowledges one tick, carrying the responder's fingerprint.
type TickResponse struct {
	Tick  uint32
	Stats DBStats
}

func (t *TickResponse) Encode() []byte {
	b := make([]byte, 24)
	binary.BigEndian.PutUint32(b[0:4], t.Tick)
	binary.BigEndian.PutUint32(b[4:8], t.Stats.LowArea)
	binary.BigEndian.PutUint32(b[8:12], t.Stats.AreaLSAs)
	binary.BigEndian.PutUint32(b[12:16], t.Stats.AreaChecksum)
	binary.BigEndian.PutUint32(b[16:20], t.Stats.ASExternals)
	binary.BigEndian.PutUint32(b[20:24], t.Stats.ASExternalSum)
	return b
}

func DecodeTickResponse(b []byte) (*TickResponse, error) {
	if len(b) < 24 {
		return nil, fmt.Errorf("simproto: tick response too short: %d", len(b))
	}
	return &TickResponse{
		Tick: binary.BigEndian.Uint32(b[0:4]),
		Stats: DBStats{
			LowArea:       binary.BigEndian.Uint32(b[4:8]),
			AreaLSAs:      binary.BigEndian.Uint32(b[8:12]),
			AreaChecksum:  binary.BigEndian.Uint32(b[12:16]),
			ASExternals:   binary.BigEndian.Uint32(b[16:20]),
			ASExternalSum: binary.BigEndian.Uint32(b[20:24]),
		},
	}, nil
}

// AddrMapEntry binds one IPv4 address to its owning router and delivery
// port.
type AddrMapEntry struct {
	Addr     uint32
	RouterID uint32
	UDPPort  uint16
}

// NetMembers lists the routers attached to one network, used to fan
// multicasts and broadcasts out to every attached router.
type NetMembers struct {
	Network uint32 // network address, the map's port key
	Routers []uint32
}

// AddrMap is the controller's full or incremental address-map push. A full
// push (Full=true) replaces the receiver's map wholesale; an incremental
// push merges.
type AddrMap struct {
	Full    bool
	Entries []AddrMapEntry
	Nets    []NetMembers
}

func (m *AddrMap) Encode() []byte {
	buf := &bytes.Buffer{}
	if m.Full {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}
	buf.Write([]byte{0, 0, 0})
	_ = binary.Write(buf, binary.BigEndian, uint32(len(m.Entries)))
	for _, e := range m.Entries {
		_ = binary.Write(buf, binary.BigEndian, e.Addr)
		_ = binary.Write(buf, binary.BigEndian, e.RouterID)
		_ = binary.Write(buf, binary.BigEndian, uint32(e.UDPPort))
	}
	_ = binary.Write(buf, binary.BigEndian, uint32(len(m.Nets)))
	for _, n := range m.Nets {
		_ = binary.Write(buf, binary.BigEndian, n.Network)
		_ = binary.Write(buf, binary.BigEndian, uint32(len(n.Routers)))
		for _, r := range n.Routers {
			_ = binary.Write(buf, binary.BigEndian, r)
		}
	}
	return buf.Bytes()
}

func DecodeAddrMap(b []byte) (*AddrMap, error) {
	if len(b) < 8 {
		return nil, fmt.Errorf("simproto: addrmap too short: %d", len(b))
	}
	m := &AddrMap{Full: b[0] == 1}
	count := binary.BigEndian.Uint32(b[4:8])
	off := 8
	for i := uint32(0); i < count; i++ {
		if off+12 > len(b) {
			return nil, fmt.Errorf("simproto: addrmap truncated at entry %d", i)
		}
		m.Entries = append(m.Entries, AddrMapEntry{
			Addr:     binary.BigEndian.Uint32(b[off: off+4]),
			RouterID: binary.BigEndian.Uint32(b[off+4: off+8]),
			UDPPort:  uint16(binary.BigEndian.Uint32(b[off+8: off+12])),
		})
		off += 12
	}
	if off+4 > len(b) {
		return nil, fmt.Errorf("simproto: addrmap missing network section")
	}
	netCount := binary.BigEndian.Uint32(b[off: off+4])
	off += 4
	for i := uint32(0); i < netCount; i++ {
		if off+8 > len(b) {
			return nil, fmt.Errorf("simproto: addrmap truncated at network %d", i)
		}
		n := NetMembers{Network: binary.BigEndian.Uint32(b[off: off+4])}
		members := binary.BigEndian.Uint32(b[off+4: off+8])
		off += 8
		for j := uint32(0); j < members; j++ {
			if off+4 > len(b) {
				return nil, fmt.Errorf("simproto: addrmap truncated at member %d of network %d", j, i)
			}
			n.Routers = append(n.Routers, binary.BigEndian.Uint32(b[off:off+4]))
			off += 4
		}
		m.Nets = append(m.Nets, n)
	}
	return m, nil
}

// RestartHitless asks a router to perform a graceful restart with the given
// grace period.
type RestartHitless struct {
	GraceSeconds uint32
}

func (r *RestartHitless) Encode() []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, r.GraceSeconds)
	return b
}

func DecodeRestartHitless(b []byte) (*RestartHitless, error) {
	if len(b) < 4 {
		return nil, fmt.Errorf("simproto: restart-hitless too short: %d", len(b))
	}
	return &RestartHitless{GraceSeconds: binary.BigEndian.Uint32(b)}, nil
}

// TraceRequest drives ping, traceroute, and multicast-traceroute sessions
// (MsgStartPing/MsgStartTR/MsgStartMtrace). Dest is the ping/traceroute
// destination or the mtrace group.
type TraceRequest struct {
	Dest      uint32
	Source    uint32 // mtrace source, zero otherwise
	TickDelay uint16 // ticks between probes
}

func (t *TraceRequest) Encode() []byte {
	b := make([]byte, 10)
	binary.BigEndian.PutUint32(b[0:4], t.Dest)
	binary.BigEndian.PutUint32(b[4:8], t.Source)
	binary.BigEndian.PutUint16(b[8:10], t.TickDelay)
	return b
}

func DecodeTraceRequest(b []byte) (*TraceRequest, error) {
	if len(b) < 10 {
		return nil, fmt.Errorf("simproto: trace request too short: %d", len(b))
	}
	return &TraceRequest{
		Dest:      binary.BigEndian.Uint32(b[0:4]),
		Source:    binary.BigEndian.Uint32(b[4:8]),
		TickDelay: binary.BigEndian.Uint16(b[8:10]),
	}, nil
}

// Member adds or removes a local multicast group member on a router's
// interface (MsgAddMember/MsgDelMember).
type Member struct {
	Group  uint32
	PhyInt int32
}

func (m *Member) Encode() []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint32(b[0:4], m.Group)
	binary.BigEndian.PutUint32(b[4:8], uint32(m.PhyInt))
	return b
}

func DecodeMember(b []byte) (*Member, error) {
	if len(b) < 8 {
		return nil, fmt.Errorf("simproto: member too short: %d", len(b))
	}
	return &Member{
		Group:  binary.BigEndian.Uint32(b[0:4]),
		PhyInt: int32(binary.BigEndian.Uint32(b[4:8])),
	}, nil
}

// TraceReport is the shared body for MsgEchoReply, MsgIcmpError,
// MsgTracerouteTTL, MsgTracerouteTmo, and MsgTracerouteDone: which hop
// answered (or didn't), at which TTL, after how many milliseconds of
// virtual time.
type TraceReport struct {
	Responder uint32
	TTL       uint8
	Code      uint8 // ICMP code for MsgIcmpError, zero otherwise
	VirtualMs uint32
}

func (t *TraceReport) Encode() []byte {
	b := make([]byte, 10)
	binary.BigEndian.PutUint32(b[0:4], t.Responder)
	b[4] = t.TTL
	b[5] = t.Code
	binary.BigEndian.PutUint32(b[6:10], t.VirtualMs)
	return b
}

func DecodeTraceReport(b []byte) (*TraceReport, error) {
	if len(b) < 10 {
		return nil, fmt.Errorf("simproto: trace report too short: %d", len(b))
	}
	return &TraceReport{
		Responder: binary.BigEndian.Uint32(b[0:4]),
		TTL:       b[4],
		Code:      b[5],
		VirtualMs: binary.BigEndian.Uint32(b[6:10]),
	}, nil
}
