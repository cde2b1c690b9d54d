package monitor

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"

	"github.com/ospfd/ospfd/internal/logger"
	"github.com/ospfd/ospfd/internal/protocol/frame"
	"github.com/ospfd/ospfd/internal/protocol/ospf"
	"github.com/ospfd/ospfd/pkg/engine"
)

// Server accepts monitor connections and answers their queries against one
// engine instance. Because the engine is single-threaded, every
// query is funneled through the serialize callback the owner of the engine's
// goroutine supplies; the default runs queries inline, which is only safe
// when nothing else drives the engine concurrently.
type Server struct {
	router    *engine.Router
	serialize func(func())
	log       *slog.Logger

	ln net.Listener
	wg sync.WaitGroup

	mu         sync.Mutex
	conns      map[net.Conn]bool
	opaqueConn net.Conn
	closed     bool
}

// NewServer returns a Server for router. serialize may be nil for inline
// execution.
func NewServer(router *engine.Router, serialize func(func()), log *slog.Logger) *Server {
	if serialize == nil {
		serialize = func(fn func()) { fn() }
	}
	return &Server{router: router, serialize: serialize, log: log, conns: map[net.Conn]bool{}}
}

// Start binds addr and begins accepting monitor connections. It returns
// once the listener is bound; accepted connections are served on their own
// goroutines.
func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("monitor: listen %s: %w", addr, err)
	}
	s.ln = ln
	s.wg.Add(1)
	go s.acceptLoop()
	return nil
}

// Addr returns the bound listener address.
func (s *Server) Addr() net.Addr {
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Shutdown stops accepting: it closes every open connection and the
// listener, then waits for the server's goroutines to exit.
func (s *Server) Shutdown() {
	s.mu.Lock()
	s.closed = true
	for conn := range s.conns {
		_ = conn.Close()
	}
	s.mu.Unlock()
	if s.ln != nil {
		_ = s.ln.Close()
	}
	s.wg.Wait()
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if closed || errors.Is(err, net.ErrClosed) {
				return
			}
			s.log.Error("monitor accept failed", "error", err)
			return
		}
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			_ = conn.Close()
			return
		}
		s.conns[conn] = true
		s.mu.Unlock()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.serveConn(conn)
		}()
	}
}

func (s *Server) serveConn(conn net.Conn) {
	defer func() {
		s.mu.Lock()
		if s.opaqueConn == conn {
			s.opaqueConn = nil
		}
		delete(s.conns, conn)
		s.mu.Unlock()
		_ = conn.Close()
	}()

	r := frame.NewReader(conn)
	for {
		req, err := frame.Read(r)
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				s.log.Debug("monitor connection read failed", "error", err)
			}
			return
		}
		if req.Version != Version {
			s.log.Debug("monitor request with bad version", "version", req.Version)
			return
		}
		resp := s.handle(conn, req)
		if err := s.writeFrame(conn, resp); err != nil {
			s.log.Debug("monitor connection write failed", "error", err)
			return
		}
	}
}

// writeFrame serializes writes on conn; the opaque notification path may
// write concurrently with a response.
func (s *Server) writeFrame(conn net.Conn, f frame.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := f.WriteTo(conn)
	return err
}

func (s *Server) handle(conn net.Conn, req frame.Frame) frame.Frame {
	hdr, payload, err := readHeader(req.Body)
	if err != nil {
		return s.response(req.Type, reqHeader{Retcode: RetBadReq}, nil)
	}
	exact := req.Subtype&FlagExact != 0
	first := req.Subtype&FlagFirst != 0

	var out []byte
	ret := RetOK
	s.serialize(func() {
		out, ret = s.query(conn, req.Type, exact, first, payload)
	})
	hdr.Retcode = ret
	return s.response(req.Type, hdr, out)
}

func (s *Server) response(typ uint16, hdr reqHeader, payload []byte) frame.Frame {
	buf := &bytes.Buffer{}
	putHeader(buf, hdr)
	buf.Write(payload)
	return frame.Frame{Version: Version, Type: typ, Body: buf.Bytes()}
}

// query runs one request against the engine. Runs on the engine's goroutine
// via serialize.
func (s *Server) query(conn net.Conn, typ uint16, exact, first bool, payload []byte) ([]byte, uint8) {
	buf := &bytes.Buffer{}
	switch typ {
	case MsgStatistics:
		_ = binary.Write(buf, binary.BigEndian, statisticsResponse(s.router.Stats()))
		return buf.Bytes(), RetOK

	case MsgArea:
		if len(payload) < 4 {
			return nil, RetBadReq
		}
		after := ospf.AreaID(binary.BigEndian.Uint32(payload))
		var info engine.AreaInfo
		var ok bool
		if first {
			info, ok = s.router.FirstArea()
		} else {
			info, ok = s.router.NextArea(after, exact)
		}
		if !ok {
			return nil, RetNotFound
		}
		resp := AreaResponse{
			Area:       uint32(info.ID),
			Interfaces: uint32(info.Interfaces),
			LSAs:       uint32(info.LSAs),
			Checksum:   info.Checksum,
		}
		if info.Stub {
			resp.Flags |= 1
		}
		if info.Transit {
			resp.Flags |= 2
		}
		_ = binary.Write(buf, binary.BigEndian, resp)
		return buf.Bytes(), RetOK

	case MsgInterface:
		if len(payload) < 4 {
			return nil, RetBadReq
		}
		after := int(int32(binary.BigEndian.Uint32(payload)))
		var info engine.InterfaceInfo
		var ok bool
		if first {
			info, ok = s.router.FirstInterface()
		} else {
			info, ok = s.router.NextInterface(after, exact)
		}
		if !ok {
			return nil, RetNotFound
		}
		resp := InterfaceResponse{
			PhyInt:    int32(info.PhyInt),
			Addr:      ipUint32(info.Addr),
			Mask:      ipUint32(info.Mask),
			Area:      uint32(info.Area),
			Type:      uint8(info.Type),
			State:     uint8(info.State),
			Priority:  info.Priority,
			Cost:      info.Cost,
			DR:        uint32(info.DR),
			BDR:       uint32(info.BDR),
			Neighbors: uint32(info.Neighbors),
		}
		_ = binary.Write(buf, binary.BigEndian, resp)
		return buf.Bytes(), RetOK

	case MsgNeighbor:
		if len(payload) < 8 {
			return nil, RetBadReq
		}
		phyint := int(int32(binary.BigEndian.Uint32(payload[0:4])))
		id := ospf.RouterID(binary.BigEndian.Uint32(payload[4:8]))
		var info engine.NeighborInfo
		var ok bool
		if first {
			info, ok = s.router.FirstNeighbor()
		} else {
			info, ok = s.router.NextNeighbor(phyint, id, exact)
		}
		if !ok {
			return nil, RetNotFound
		}
		resp := NeighborResponse{
			PhyInt:   int32(info.PhyInt),
			RouterID: uint32(info.RouterID),
			Addr:     ipUint32(info.Address),
			State:    uint8(info.State),
			Priority: info.Priority,
			DR:       uint32(info.DR),
			BDR:      uint32(info.BDR),
		}
		if info.Helper {
			resp.Flags |= 1
		}
		_ = binary.Write(buf, binary.BigEndian, resp)
		return buf.Bytes(), RetOK

	case MsgRoute, MsgBestMatch:
		if len(payload) < 8 {
			return nil, RetBadReq
		}
		netw := ospf.RouterID(binary.BigEndian.Uint32(payload[0:4])).IP()
		mask := ospf.RouterID(binary.BigEndian.Uint32(payload[4:8])).IP()
		var route *engine.RouteEntry
		var ok bool
		switch {
		case typ == MsgBestMatch:
			route, ok = s.router.BestMatch(netw)
		case first:
			route, ok = s.router.FirstRoute()
		default:
			route, ok = s.router.NextRoute(netw, mask, exact)
		}
		if !ok {
			return nil, RetNotFound
		}
		resp := routeResponse(route)
		resp.encode(buf)
		return buf.Bytes(), RetOK

	case MsgLSA:
		q, err := decodeLSARequest(payload)
		if err != nil {
			return nil, RetBadReq
		}
		key := ospf.LSAKey{
			Type:      ospf.LSAType(q.Type),
			LSID:      q.LSID,
			AdvRouter: ospf.RouterID(q.AdvRouter),
		}
		var lsa *ospf.LSA
		var ok bool
		if exact {
			lsa, ok = s.router.LookupLSA(ospf.AreaID(q.Area), key)
		} else {
			lsa, ok = s.router.NextLSA(ospf.AreaID(q.Area), key)
		}
		if !ok {
			return nil, RetNotFound
		}
		resp := LSAResponse{Area: q.Area, LSA: lsa}
		if err := resp.encode(buf); err != nil {
			return nil, RetBadReq
		}
		return buf.Bytes(), RetOK

	case MsgOpaqueReg:
		s.registerOpaque(conn)
		return nil, RetOK

	case MsgResetStats:
		s.router.ResetStats()
		s.log.Info("statistics reset by monitor client")
		return nil, RetOK

	case MsgSetLogLevel:
		if len(payload) < 1 {
			return nil, RetBadReq
		}
		name, ok := LogLevelName(payload[0])
		if !ok {
			return nil, RetBadReq
		}
		logger.SetLevel(name)
		s.log.Info("log level set by monitor client", "level", name)
		return nil, RetOK

	default:
		return nil, RetBadReq
	}
}

// registerOpaque makes conn the single opaque-LSA subscriber. A new registration displaces the old one.
func (s *Server) registerOpaque(conn net.Conn) {
	s.mu.Lock()
	s.opaqueConn = conn
	s.mu.Unlock()

	s.router.SetOpaqueNotify(func(area ospf.AreaID, lsa *ospf.LSA) {
		s.mu.Lock()
		target := s.opaqueConn
		s.mu.Unlock()
		if target == nil {
			return
		}
		buf := &bytes.Buffer{}
		putHeader(buf, reqHeader{})
		resp := LSAResponse{Area: uint32(area), LSA: lsa}
		if err := resp.encode(buf); err != nil {
			return
		}
		f := frame.Frame{Version: Version, Type: MsgOpaqueNotify, Body: buf.Bytes()}
		if err := s.writeFrame(target, f); err != nil {
			s.log.Debug("dropping opaque notification", "error", err)
		}
	})
}

func routeResponse(route *engine.RouteEntry) *RouteResponse {
	resp := &RouteResponse{
		Net:       ipUint32(route.Dest.Net),
		Mask:      ipUint32(route.Dest.Mask),
		PathType:  uint8(route.PathType),
		Cost:      route.Cost,
		Type2Cost: route.Type2Cost,
		Area:      uint32(route.Area),
	}
	for _, nh := range route.NextHops {
		resp.NextHops = append(resp.NextHops, RouteNextHop{
			PhyInt:  int32(nh.PhyInt),
			Gateway: ipUint32(nh.Gateway),
		})
	}
	return resp
}
