package ospf

import (
	"bytes"
	"fmt"
)

// NetworkLSA is the body of a type-2 (network) LSA, originated by the DR on
// a transit broadcast or NBMA segment (RFC 2328 §A.4.3). Its LS-ID is the
// DR's interface address.
type NetworkLSA struct {
	NetworkMask     uint32
	AttachedRouters []RouterID
}

func (*NetworkLSA) lsaBody() {}

func (n *NetworkLSA) Encode(buf *bytes.Buffer) error {
	if err := WriteUint32(buf, n.NetworkMask); err != nil {
		return err
	}
	for _, r := range n.AttachedRouters {
		if err := WriteUint32(buf, uint32(r)); err != nil {
			return err
		}
	}
	return nil
}

// DecodeNetworkLSA parses a network-LSA body.
func DecodeNetworkLSA(b []byte) (*NetworkLSA, error) {
	if len(b) < 4 {
		return nil, fmt.Errorf("ospf: network-lsa body too short")
	}
	n := &NetworkLSA{}
	mask, err := ReadUint32(b, 0)
	if err != nil {
		return nil, err
	}
	n.NetworkMask = mask
	for off := 4; off+4 <= len(b); off += 4 {
		v, err := ReadUint32(b, off)
		if err != nil {
			return nil, err
		}
		n.AttachedRouters = append(n.AttachedRouters, RouterID(v))
	}
	return n, nil
}
