package ospf

import (
	"bytes"
	"fmt"
)

// RouterLinkType identifies the type of one router-LSA link (RFC 2328 §A.4.2).
type RouterLinkType uint8

const (
	LinkPointToPoint RouterLinkType = 1
	LinkTransit      RouterLinkType = 2
	LinkStub         RouterLinkType = 3
	LinkVirtual      RouterLinkType = 4
)

// RouterLink is one entry in a router-LSA's link list.
type RouterLink struct {
	ID       uint32 // meaning depends on Type: neighbor router ID, DR address, network number, or neighbor router ID (virtual)
	Data     uint32 // router interface address, or subnet mask for stub links
	Type     RouterLinkType
	numTOS   uint8
	Metric   uint16
}

// RouterLSA is the body of a type-1 (router) LSA (RFC 2328 §A.4.2).
type RouterLSA struct {
	VirtualLinkEndpoint bool
	ASBoundary          bool
	AreaBorder          bool
	Links               []RouterLink
}

func (*RouterLSA) lsaBody() {}

func (r *RouterLSA) flagsByte() uint8 {
	var f uint8
	if r.VirtualLinkEndpoint {
		f |= 1 << 2
	}
	if r.ASBoundary {
		f |= 1 << 1
	}
	if r.AreaBorder {
		f |= 1 << 0
	}
	return f
}

func (r *RouterLSA) Encode(buf *bytes.Buffer) error {
	if err := buf.WriteByte(r.flagsByte()); err != nil {
		return err
	}
	if err := buf.WriteByte(0); err != nil { // reserved
		return err
	}
	if err := WriteUint16(buf, uint16(len(r.Links))); err != nil {
		return err
	}
	for _, l := range r.Links {
		if err := WriteUint32(buf, l.ID); err != nil {
			return err
		}
		if err := WriteUint32(buf, l.Data); err != nil {
			return err
		}
		if err := buf.WriteByte(byte(l.Type)); err != nil {
			return err
		}
		if err := buf.WriteByte(0); err != nil { // # TOS metrics, always 0 here
			return err
		}
		if err := WriteUint16(buf, l.Metric); err != nil {
			return err
		}
	}
	return nil
}

// DecodeRouterLSA parses a router-LSA body.
func DecodeRouterLSA(b []byte) (*RouterLSA, error) {
	if len(b) < 4 {
		return nil, fmt.Errorf("ospf: router-lsa body too short")
	}
	flags := b[0]
	r := &RouterLSA{
		AreaBorder:          flags&(1<<0) != 0,
		ASBoundary:          flags&(1<<1) != 0,
		VirtualLinkEndpoint: flags&(1<<2) != 0,
	}
	n, err := ReadUint16(b, 2)
	if err != nil {
		return nil, err
	}
	off := 4
	for i := uint16(0); i < n; i++ {
		if off+12 > len(b) {
			return nil, fmt.Errorf("ospf: router-lsa truncated at link %d", i)
		}
		id, _ := ReadUint32(b, off)
		data, _ := ReadUint32(b, off+4)
		typ := RouterLinkType(b[off+8])
		metric, _ := ReadUint16(b, off+10)
		r.Links = append(r.Links, RouterLink{ID: id, Data: data, Type: typ, Metric: metric})
		off += 12
	}
	return r, nil
}
