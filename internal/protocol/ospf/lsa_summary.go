package ospf

import (
	"bytes"
	"fmt"
)

// SummaryLSA is the shared body shape for type-3 (network summary) and
// type-4 (ASBR summary) LSAs (RFC 2328 §A.4.4/A.4.5): the two types differ
// only in how LS-ID is interpreted (network number vs ASBR router ID), not
// in wire format, so one Go type serves both.
type SummaryLSA struct {
	NetworkMask uint32 // 0xffffffff (host mask) for an ASBR-summary-LSA
	Metric      uint32 // low 24 bits; top byte reserved/zero
}

func (*SummaryLSA) lsaBody() {}

func (s *SummaryLSA) Encode(buf *bytes.Buffer) error {
	if err := WriteUint32(buf, s.NetworkMask); err != nil {
		return err
	}
	return WriteUint32(buf, s.Metric&0x00ffffff)
}

// DecodeSummaryLSA parses a summary-LSA (type 3 or 4) body.
func DecodeSummaryLSA(b []byte) (*SummaryLSA, error) {
	if len(b) < 8 {
		return nil, fmt.Errorf("ospf: summary-lsa body too short")
	}
	mask, err := ReadUint32(b, 0)
	if err != nil {
		return nil, err
	}
	metric, err := ReadUint32(b, 4)
	if err != nil {
		return nil, err
	}
	return &SummaryLSA{NetworkMask: mask, Metric: metric & 0x00ffffff}, nil
}
