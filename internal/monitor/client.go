package monitor

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"net"
	"time"

	"github.com/ospfd/ospfd/internal/protocol/frame"
	"github.com/ospfd/ospfd/internal/protocol/ospf"
)

// ErrNotFound is reported by client calls when the server answers with
// RetNotFound: no such item, or end of iteration.
var ErrNotFound = fmt.Errorf("monitor: no such item")

// Client is a synchronous monitor-protocol client: one request outstanding
// at a time, tags assigned internally. ospfctl and the simulator UI both
// drive engines through it.
type Client struct {
	conn net.Conn
	r    *bufio.Reader
	next uint32
}

// Dial connects to a monitor server at addr.
func Dial(addr string, timeout time.Duration) (*Client, error) {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, fmt.Errorf("monitor: dial %s: %w", addr, err)
	}
	return &Client{conn: conn, r: frame.NewReader(conn)}, nil
}

// Close tears down the connection.
func (c *Client) Close() error { return c.conn.Close() }

// flagsFor converts an exact-flag bool into wire flags.
func flagsFor(exact bool) uint16 {
	if exact {
		return FlagExact
	}
	return 0
}

// roundTrip sends one request and waits for its response, skipping any
// asynchronous opaque notifications that arrive in between.
func (c *Client) roundTrip(typ uint16, flags uint16, payload []byte) ([]byte, error) {
	c.next++
	id := c.next

	buf := &bytes.Buffer{}
	putHeader(buf, reqHeader{ID: id})
	buf.Write(payload)

	req := frame.Frame{Version: Version, Type: typ, Subtype: flags, Body: buf.Bytes()}
	if _, err := req.WriteTo(c.conn); err != nil {
		return nil, fmt.Errorf("monitor: send: %w", err)
	}

	for {
		resp, err := frame.Read(c.r)
		if err != nil {
			return nil, fmt.Errorf("monitor: receive: %w", err)
		}
		if resp.Type == MsgOpaqueNotify {
			continue
		}
		hdr, body, err := readHeader(resp.Body)
		if err != nil {
			return nil, err
		}
		if hdr.ID != id {
			continue // stale response from an abandoned request
		}
		switch hdr.Retcode {
		case RetOK:
			return body, nil
		case RetNotFound:
			return nil, ErrNotFound
		default:
			return nil, fmt.Errorf("monitor: request failed with code %d", hdr.Retcode)
		}
	}
}

// Statistics fetches the process-wide snapshot.
func (c *Client) Statistics() (*StatisticsResponse, error) {
	body, err := c.roundTrip(MsgStatistics, FlagExact, nil)
	if err != nil {
		return nil, err
	}
	resp := &StatisticsResponse{}
	if err := binary.Read(bytes.NewReader(body), binary.BigEndian, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Area fetches one area (exact) or the next area after the given ID.
func (c *Client) Area(id uint32, exact bool) (*AreaResponse, error) {
	payload := make([]byte, 4)
	binary.BigEndian.PutUint32(payload, id)
	body, err := c.roundTrip(MsgArea, flagsFor(exact), payload)
	if err != nil {
		return nil, err
	}
	resp := &AreaResponse{}
	if err := binary.Read(bytes.NewReader(body), binary.BigEndian, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Interface fetches one interface (exact) or the next after phyint.
func (c *Client) Interface(phyint int32, exact bool) (*InterfaceResponse, error) {
	payload := make([]byte, 4)
	binary.BigEndian.PutUint32(payload, uint32(phyint))
	body, err := c.roundTrip(MsgInterface, flagsFor(exact), payload)
	if err != nil {
		return nil, err
	}
	resp := &InterfaceResponse{}
	if err := binary.Read(bytes.NewReader(body), binary.BigEndian, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Neighbor fetches one neighbor (exact) or the next after (phyint, id).
func (c *Client) Neighbor(phyint int32, id uint32, exact bool) (*NeighborResponse, error) {
	payload := make([]byte, 8)
	binary.BigEndian.PutUint32(payload[0:4], uint32(phyint))
	binary.BigEndian.PutUint32(payload[4:8], id)
	body, err := c.roundTrip(MsgNeighbor, flagsFor(exact), payload)
	if err != nil {
		return nil, err
	}
	resp := &NeighborResponse{}
	if err := binary.Read(bytes.NewReader(body), binary.BigEndian, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Route fetches one routing-table entry (exact) or the next after
// (net, mask).
func (c *Client) Route(netAddr, mask uint32, exact bool) (*RouteResponse, error) {
	payload := make([]byte, 8)
	binary.BigEndian.PutUint32(payload[0:4], netAddr)
	binary.BigEndian.PutUint32(payload[4:8], mask)
	body, err := c.roundTrip(MsgRoute, flagsFor(exact), payload)
	if err != nil {
		return nil, err
	}
	return decodeRouteResponse(body)
}

// BestMatch asks the engine for the best-match routing entry for addr.
func (c *Client) BestMatch(addr uint32) (*RouteResponse, error) {
	payload := make([]byte, 8)
	binary.BigEndian.PutUint32(payload[0:4], addr)
	body, err := c.roundTrip(MsgBestMatch, FlagExact, payload)
	if err != nil {
		return nil, err
	}
	return decodeRouteResponse(body)
}

// LSA fetches one LSA by full key (exact) or the next in key order.
func (c *Client) LSA(area uint32, typ uint8, lsid, advRouter uint32, exact bool) (*LSAResponse, error) {
	q := LSARequest{Area: area, Type: typ, LSID: lsid, AdvRouter: advRouter}
	buf := &bytes.Buffer{}
	q.encode(buf)
	body, err := c.roundTrip(MsgLSA, flagsFor(exact), buf.Bytes())
	if err != nil {
		return nil, err
	}
	return decodeLSAResponse(body)
}

// FirstArea begins an area iteration at the lowest-numbered area.
func (c *Client) FirstArea() (*AreaResponse, error) {
	body, err := c.roundTrip(MsgArea, FlagFirst, make([]byte, 4))
	if err != nil {
		return nil, err
	}
	resp := &AreaResponse{}
	if err := binary.Read(bytes.NewReader(body), binary.BigEndian, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// FirstInterface begins an interface iteration.
func (c *Client) FirstInterface() (*InterfaceResponse, error) {
	body, err := c.roundTrip(MsgInterface, FlagFirst, make([]byte, 4))
	if err != nil {
		return nil, err
	}
	resp := &InterfaceResponse{}
	if err := binary.Read(bytes.NewReader(body), binary.BigEndian, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// FirstNeighbor begins a neighbor iteration.
func (c *Client) FirstNeighbor() (*NeighborResponse, error) {
	body, err := c.roundTrip(MsgNeighbor, FlagFirst, make([]byte, 8))
	if err != nil {
		return nil, err
	}
	resp := &NeighborResponse{}
	if err := binary.Read(bytes.NewReader(body), binary.BigEndian, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// FirstRoute begins a routing-table iteration.
func (c *Client) FirstRoute() (*RouteResponse, error) {
	body, err := c.roundTrip(MsgRoute, FlagFirst, make([]byte, 8))
	if err != nil {
		return nil, err
	}
	return decodeRouteResponse(body)
}

// ResetStats zeroes the daemon's statistics-query packet counters.
func (c *Client) ResetStats() error {
	_, err := c.roundTrip(MsgResetStats, FlagExact, nil)
	return err
}

// SetLogLevel adjusts the daemon's log verbosity. level is one of the
// LogLevel* codes.
func (c *Client) SetLogLevel(level uint8) error {
	_, err := c.roundTrip(MsgSetLogLevel, FlagExact, []byte{level})
	return err
}

// RegisterOpaque subscribes this connection to asynchronous opaque-LSA
// notifications. ReadOpaque blocks for the next one.
func (c *Client) RegisterOpaque() error {
	_, err := c.roundTrip(MsgOpaqueReg, FlagExact, nil)
	return err
}

// ReadOpaque blocks until the next opaque-LSA notification arrives.
func (c *Client) ReadOpaque() (*LSAResponse, error) {
	for {
		resp, err := frame.Read(c.r)
		if err != nil {
			return nil, err
		}
		if resp.Type != MsgOpaqueNotify {
			continue
		}
		_, body, err := readHeader(resp.Body)
		if err != nil {
			return nil, err
		}
		return decodeLSAResponse(body)
	}
}

// AreaIDString renders a 32-bit identifier the way OSPF prints them.
func AreaIDString(v uint32) string { return ospf.RouterID(v).String() }
