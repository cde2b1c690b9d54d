package ospf

import (
	"bytes"
	"fmt"
)

// Body is implemented by every LSA body type (router, network, summary,
// ASBR-summary, AS-external, group-membership, opaque). The multi-dispatch
// over LSA type is this small, closed interface
// plus a switch in DecodeLSA/ParseBody - not a class hierarchy.
type Body interface {
	Encode(buf *bytes.Buffer) error
	lsaBody()
}

// LSA bundles a header with its decoded, type-specific body.
type LSA struct {
	Header LSAHeader
	Body   Body
}

// Encode serializes the full LSA (header + body) and fixes up Length and
// Checksum before writing the header.
func (l *LSA) Encode(buf *bytes.Buffer) error {
	bodyBuf := &bytes.Buffer{}
	if l.Body != nil {
		if err := l.Body.Encode(bodyBuf); err != nil {
			return err
		}
	}
	l.Header.Length = uint16(20 + bodyBuf.Len())
	l.Header.Checksum = ComputeChecksum(&l.Header, bodyBuf.Bytes())

	if err := l.Header.Encode(buf); err != nil {
		return err
	}
	_, err := buf.Write(bodyBuf.Bytes())
	return err
}

// DecodeLSA parses a full LSA (20-byte header + type-specific body) from b.
func DecodeLSA(b []byte) (*LSA, error) {
	hdr, err := DecodeLSAHeader(b)
	if err != nil {
		return nil, err
	}
	if int(hdr.Length) > len(b) {
		return nil, fmt.Errorf("ospf: lsa length %d exceeds buffer %d", hdr.Length, len(b))
	}
	body := b[20:hdr.Length]

	parsed, err := ParseBody(hdr.Type, body)
	if err != nil {
		return nil, err
	}
	return &LSA{Header: *hdr, Body: parsed}, nil
}

// ParseBody decodes body according to the LSA type in the header.
func ParseBody(t LSAType, body []byte) (Body, error) {
	switch t {
	case LSARouter:
		return DecodeRouterLSA(body)
	case LSANetwork:
		return DecodeNetworkLSA(body)
	case LSASummary, LSAASBRSummary:
		return DecodeSummaryLSA(body)
	case LSAASExternal, LSAASExternalNSSA:
		return DecodeASExternalLSA(body)
	case LSAGroupMember:
		return DecodeGroupMembershipLSA(body)
	case LSAOpaqueLink, LSAOpaqueArea, LSAOpaqueAS:
		return DecodeOpaqueLSA(body)
	default:
		return nil, fmt.Errorf("ospf: unknown LSA type %d", t)
	}
}

// LinkStateUpdate is the body of an OSPF Link State Update packet: a list
// of complete LSAs (RFC 2328 §A.3.5).
type LinkStateUpdate struct {
	LSAs []*LSA
}

func (u *LinkStateUpdate) Encode(buf *bytes.Buffer) error {
	if err := WriteUint32(buf, uint32(len(u.LSAs))); err != nil {
		return err
	}
	for _, l := range u.LSAs {
		if err := l.Encode(buf); err != nil {
			return err
		}
	}
	return nil
}

func DecodeLinkStateUpdate(b []byte) (*LinkStateUpdate, error) {
	if len(b) < 4 {
		return nil, fmt.Errorf("ospf: lsu body too short")
	}
	count, err := ReadUint32(b, 0)
	if err != nil {
		return nil, err
	}
	u := &LinkStateUpdate{}
	off := 4
	for i := uint32(0); i < count; i++ {
		if off+20 > len(b) {
			return nil, fmt.Errorf("ospf: lsu truncated at lsa %d", i)
		}
		lsaLen, err := ReadUint16(b, off+18)
		if err != nil {
			return nil, err
		}
		if off+int(lsaLen) > len(b) {
			return nil, fmt.Errorf("ospf: lsu lsa %d length %d exceeds buffer", i, lsaLen)
		}
		lsa, err := DecodeLSA(b[off: off+int(lsaLen)])
		if err != nil {
			return nil, err
		}
		u.LSAs = append(u.LSAs, lsa)
		off += int(lsaLen)
	}
	return u, nil
}
