// Package monitor implements the read-only introspection protocol:
// length-prefixed frames over TCP, one request/response pair
// per frame, each carrying a client-supplied tag so multiple requests may be
// outstanding. Iteration is stateless at the server - every "next" request
// carries the previous composite key, so there is no server-side iterator
// token to expire.
package monitor

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"net"

	"github.com/ospfd/ospfd/internal/protocol/ospf"
	"github.com/ospfd/ospfd/pkg/engine"
)

// Version is the protocol version carried in every frame header.
const Version = 1

// Request/response frame types. A response reuses its request's type; the
// server-initiated opaque notification has its own.
const (
	MsgStatistics   uint16 = 1
	MsgArea         uint16 = 2
	MsgInterface    uint16 = 3
	MsgNeighbor     uint16 = 4
	MsgRoute        uint16 = 5
	MsgLSA          uint16 = 6
	MsgBestMatch    uint16 = 7
	MsgOpaqueReg    uint16 = 8
	MsgOpaqueNotify uint16 = 9
	// MsgResetStats zeroes the statistics-query packet counters and
	// MsgSetLogLevel adjusts the daemon's log verbosity; the two write-ish
	// requests the protocol carries beyond its read-only set.
	MsgResetStats  uint16 = 10
	MsgSetLogLevel uint16 = 11
)

// Log level codes carried in a MsgSetLogLevel request body.
const (
	LogLevelDebug uint8 = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError
)

// LogLevelName maps a wire level code to the logger's level string.
func LogLevelName(code uint8) (string, bool) {
	switch code {
	case LogLevelDebug:
		return "DEBUG", true
	case LogLevelInfo:
		return "INFO", true
	case LogLevelWarn:
		return "WARN", true
	case LogLevelError:
		return "ERROR", true
	default:
		return "", false
	}
}

// Subtype flag bits.
const (
	// FlagExact requests an exact-key lookup; absent, the server returns
	// the next item strictly after the supplied key.
	FlagExact uint16 = 1 << 0
	// FlagFirst begins an iteration: the supplied key is ignored and the
	// lowest-keyed item is returned. Needed because key 0 is itself valid
	// (the backbone area, the default route) and strict-next could never
	// reach it.
	FlagFirst uint16 = 1 << 1
)

// Return codes.
const (
	RetOK       uint8 = 0
	RetNotFound uint8 = 1 // no such item / end of iteration
	RetBadReq   uint8 = 2
)

// reqHeader prefixes every request and response body: the client-supplied
// tag and, on responses, the return code.
type reqHeader struct {
	ID      uint32
	Retcode uint8
}

func putHeader(buf *bytes.Buffer, h reqHeader) {
	_ = binary.Write(buf, binary.BigEndian, h.ID)
	buf.WriteByte(h.Retcode)
	buf.Write([]byte{0, 0, 0}) // pad to a word boundary
}

func readHeader(b []byte) (reqHeader, []byte, error) {
	if len(b) < 8 {
		return reqHeader{}, nil, fmt.Errorf("monitor: body too short for header: %d", len(b))
	}
	return reqHeader{
		ID:      binary.BigEndian.Uint32(b[0:4]),
		Retcode: b[4],
	}, b[8:], nil
}

// ---------------------------------------------------------------------------
// Request bodies
// ---------------------------------------------------------------------------

// AreaRequest keys an area query by ID.
type AreaRequest struct {
	Area uint32
}

// InterfaceRequest keys an interface query by phyint.
type InterfaceRequest struct {
	PhyInt int32
}

// NeighborRequest keys a neighbor query by (phyint, router ID).
type NeighborRequest struct {
	PhyInt   int32
	RouterID uint32
}

// RouteRequest keys a routing-table query by (network, mask). For
// MsgBestMatch only Net is meaningful.
type RouteRequest struct {
	Net  uint32
	Mask uint32
}

// LSARequest keys an LSA fetch by its scope and full composite key.
type LSARequest struct {
	Area      uint32
	Type      uint8
	LSID      uint32
	AdvRouter uint32
}

func (q *LSARequest) encode(buf *bytes.Buffer) {
	_ = binary.Write(buf, binary.BigEndian, q.Area)
	buf.WriteByte(q.Type)
	buf.Write([]byte{0, 0, 0})
	_ = binary.Write(buf, binary.BigEndian, q.LSID)
	_ = binary.Write(buf, binary.BigEndian, q.AdvRouter)
}

func decodeLSARequest(b []byte) (*LSARequest, error) {
	if len(b) < 16 {
		return nil, fmt.Errorf("monitor: LSA request too short: %d", len(b))
	}
	return &LSARequest{
		Area:      binary.BigEndian.Uint32(b[0:4]),
		Type:      b[4],
		LSID:      binary.BigEndian.Uint32(b[8:12]),
		AdvRouter: binary.BigEndian.Uint32(b[12:16]),
	}, nil
}

// ---------------------------------------------------------------------------
// Response bodies
// ---------------------------------------------------------------------------

// StatisticsResponse mirrors engine.Statistics on the wire.
type StatisticsResponse struct {
	RouterID    uint32
	Areas       uint32
	Interfaces  uint32
	Neighbors   uint32
	FullNbrs    uint32
	ASExternals uint32
	Routes      uint32
	RxPackets   uint64
	RxDropped   uint64
	Flags       uint8 // bit0 overflow, bit1 restarting
}

func statisticsResponse(s engine.Statistics) StatisticsResponse {
	resp := StatisticsResponse{
		RouterID:    uint32(s.RouterID),
		Areas:       uint32(s.AreaCount),
		Interfaces:  uint32(s.InterfaceCount),
		Neighbors:   uint32(s.NeighborCount),
		FullNbrs:    uint32(s.FullNeighbors),
		ASExternals: uint32(s.ASExternals),
		Routes:      uint32(s.Routes),
		RxPackets:   s.RxPackets,
		RxDropped:   s.RxDropped,
	}
	if s.InOverflow {
		resp.Flags |= 1
	}
	if s.Restarting {
		resp.Flags |= 2
	}
	return resp
}

// AreaResponse mirrors engine.AreaInfo.
type AreaResponse struct {
	Area       uint32
	Flags      uint8 // bit0 stub, bit1 transit
	Interfaces uint32
	LSAs       uint32
	Checksum   uint32
}

// InterfaceResponse mirrors engine.InterfaceInfo.
type InterfaceResponse struct {
	PhyInt    int32
	Addr      uint32
	Mask      uint32
	Area      uint32
	Type      uint8
	State     uint8
	Priority  uint8
	Cost      uint16
	DR        uint32
	BDR       uint32
	Neighbors uint32
}

// NeighborResponse mirrors engine.NeighborInfo.
type NeighborResponse struct {
	PhyInt   int32
	RouterID uint32
	Addr     uint32
	State    uint8
	Priority uint8
	Flags    uint8 // bit0 helper
	DR       uint32
	BDR      uint32
}

// RouteNextHop is one equal-cost path in a RouteResponse.
type RouteNextHop struct {
	PhyInt  int32
	Gateway uint32
}

// RouteResponse mirrors engine.RouteEntry.
type RouteResponse struct {
	Net       uint32
	Mask      uint32
	PathType  uint8
	Cost      uint32
	Type2Cost uint32
	Area      uint32
	NextHops  []RouteNextHop
}

func (resp *RouteResponse) encode(buf *bytes.Buffer) {
	_ = binary.Write(buf, binary.BigEndian, resp.Net)
	_ = binary.Write(buf, binary.BigEndian, resp.Mask)
	buf.WriteByte(resp.PathType)
	buf.WriteByte(uint8(len(resp.NextHops)))
	buf.Write([]byte{0, 0})
	_ = binary.Write(buf, binary.BigEndian, resp.Cost)
	_ = binary.Write(buf, binary.BigEndian, resp.Type2Cost)
	_ = binary.Write(buf, binary.BigEndian, resp.Area)
	for _, nh := range resp.NextHops {
		_ = binary.Write(buf, binary.BigEndian, nh.PhyInt)
		_ = binary.Write(buf, binary.BigEndian, nh.Gateway)
	}
}

func decodeRouteResponse(b []byte) (*RouteResponse, error) {
	if len(b) < 24 {
		return nil, fmt.Errorf("monitor: route response too short: %d", len(b))
	}
	resp := &RouteResponse{
		Net:       binary.BigEndian.Uint32(b[0:4]),
		Mask:      binary.BigEndian.Uint32(b[4:8]),
		PathType:  b[8],
		Cost:      binary.BigEndian.Uint32(b[12:16]),
		Type2Cost: binary.BigEndian.Uint32(b[16:20]),
		Area:      binary.BigEndian.Uint32(b[20:24]),
	}
	count := int(b[9])
	off := 24
	for i := 0; i < count; i++ {
		if off+8 > len(b) {
			return nil, fmt.Errorf("monitor: route response truncated at next-hop %d", i)
		}
		resp.NextHops = append(resp.NextHops, RouteNextHop{
			PhyInt:  int32(binary.BigEndian.Uint32(b[off: off+4])),
			Gateway: binary.BigEndian.Uint32(b[off+4: off+8]),
		})
		off += 8
	}
	return resp, nil
}

// LSAResponse carries a complete LSA (header + body) in wire encoding,
// prefixed by the area scope it was found in.
type LSAResponse struct {
	Area uint32
	LSA  *ospf.LSA
}

func (resp *LSAResponse) encode(buf *bytes.Buffer) error {
	_ = binary.Write(buf, binary.BigEndian, resp.Area)
	return resp.LSA.Encode(buf)
}

func decodeLSAResponse(b []byte) (*LSAResponse, error) {
	if len(b) < 24 {
		return nil, fmt.Errorf("monitor: LSA response too short: %d", len(b))
	}
	lsa, err := ospf.DecodeLSA(b[4:])
	if err != nil {
		return nil, err
	}
	return &LSAResponse{Area: binary.BigEndian.Uint32(b[0:4]), LSA: lsa}, nil
}

func ipUint32(ip net.IP) uint32 {
	v4 := ip.To4()
	if v4 == nil {
		return 0
	}
	return binary.BigEndian.Uint32(v4)
}
