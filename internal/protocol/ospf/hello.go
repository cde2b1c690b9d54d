package ospf

import (
	"bytes"
	"fmt"
	"net"
)

// Hello is the body of an OSPF Hello packet (RFC 2328 §A.3.2).
type Hello struct {
	NetworkMask     net.IP
	HelloInterval   uint16
	Options         uint8
	RouterPriority  uint8
	RouterDeadInterval uint32
	DesignatedRouter   net.IP
	BackupDesignatedRouter net.IP
	Neighbors       []RouterID
}

// Encode appends the Hello body to buf.
func (h *Hello) Encode(buf *bytes.Buffer) error {
	if err := WriteIPv4(buf, h.NetworkMask); err != nil {
		return err
	}
	if err := WriteUint16(buf, h.HelloInterval); err != nil {
		return err
	}
	if err := buf.WriteByte(h.Options); err != nil {
		return err
	}
	if err := buf.WriteByte(h.RouterPriority); err != nil {
		return err
	}
	if err := WriteUint32(buf, h.RouterDeadInterval); err != nil {
		return err
	}
	if err := WriteIPv4(buf, h.DesignatedRouter); err != nil {
		return err
	}
	if err := WriteIPv4(buf, h.BackupDesignatedRouter); err != nil {
		return err
	}
	for _, n := range h.Neighbors {
		if err := WriteUint32(buf, uint32(n)); err != nil {
			return err
		}
	}
	return nil
}

// DecodeHello parses a Hello body from b.
func DecodeHello(b []byte) (*Hello, error) {
	if len(b) < 20 {
		return nil, fmt.Errorf("ospf: hello body too short: %d bytes", len(b))
	}
	h := &Hello{}
	var err error

	if h.NetworkMask, err = ReadIPv4(b, 0); err != nil {
		return nil, err
	}
	if h.HelloInterval, err = ReadUint16(b, 4); err != nil {
		return nil, err
	}
	h.Options = b[6]
	h.RouterPriority = b[7]
	if h.RouterDeadInterval, err = ReadUint32(b, 8); err != nil {
		return nil, err
	}
	if h.DesignatedRouter, err = ReadIPv4(b, 12); err != nil {
		return nil, err
	}
	if h.BackupDesignatedRouter, err = ReadIPv4(b, 16); err != nil {
		return nil, err
	}

	for off := 20; off+4 <= len(b); off += 4 {
		v, err := ReadUint32(b, off)
		if err != nil {
			return nil, err
		}
		h.Neighbors = append(h.Neighbors, RouterID(v))
	}
	return h, nil
}
