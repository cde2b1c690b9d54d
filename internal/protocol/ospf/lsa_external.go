package ospf

import (
	"bytes"
	"fmt"
)

// ASExternalLSA is the body of a type-5 (AS-external) LSA, or a type-7
// NSSA-external LSA sharing the same layout (RFC 2328 §A.4.5).
type ASExternalLSA struct {
	NetworkMask      uint32
	ExternalType2    bool // metric type: false = type 1, true = type 2
	Metric           uint32
	ForwardingAddress uint32 // 0.0.0.0 if packets should be forwarded to the originator
	ExternalRouteTag uint32
}

func (*ASExternalLSA) lsaBody() {}

func (e *ASExternalLSA) Encode(buf *bytes.Buffer) error {
	if err := WriteUint32(buf, e.NetworkMask); err != nil {
		return err
	}
	metricWord := e.Metric & 0x00ffffff
	if e.ExternalType2 {
		metricWord |= 1 << 31
	}
	if err := WriteUint32(buf, metricWord); err != nil {
		return err
	}
	if err := WriteUint32(buf, e.ForwardingAddress); err != nil {
		return err
	}
	return WriteUint32(buf, e.ExternalRouteTag)
}

// DecodeASExternalLSA parses an AS-external (or NSSA-external) LSA body.
func DecodeASExternalLSA(b []byte) (*ASExternalLSA, error) {
	if len(b) < 16 {
		return nil, fmt.Errorf("ospf: as-external-lsa body too short")
	}
	mask, err := ReadUint32(b, 0)
	if err != nil {
		return nil, err
	}
	metricWord, err := ReadUint32(b, 4)
	if err != nil {
		return nil, err
	}
	fwd, err := ReadUint32(b, 8)
	if err != nil {
		return nil, err
	}
	tag, err := ReadUint32(b, 12)
	if err != nil {
		return nil, err
	}
	return &ASExternalLSA{
		NetworkMask:       mask,
		ExternalType2:     metricWord&(1<<31) != 0,
		Metric:            metricWord & 0x00ffffff,
		ForwardingAddress: fwd,
		ExternalRouteTag:  tag,
	}, nil
}
