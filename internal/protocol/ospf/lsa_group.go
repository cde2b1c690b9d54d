package ospf

import "bytes"

// GroupMembershipLSA is the body of a type-6 group-membership LSA (RFC 1584
// §3.2.1), used by MOSPF to advertise which multicast groups have members
// reachable via the advertising router. LS-ID carries the group address.
type GroupMembershipLSA struct {
	// Links reuses the router-LSA link encoding (RFC 1584 mandates the same
	// {ID, Data, Type, #TOS, Metric} tuple shape for vertex links).
	Links []RouterLink
}

func (*GroupMembershipLSA) lsaBody() {}

func (g *GroupMembershipLSA) Encode(buf *bytes.Buffer) error {
	for _, l := range g.Links {
		if err := WriteUint32(buf, l.ID); err != nil {
			return err
		}
		if err := WriteUint32(buf, l.Data); err != nil {
			return err
		}
		if err := buf.WriteByte(byte(l.Type)); err != nil {
			return err
		}
		if err := buf.WriteByte(0); err != nil {
			return err
		}
		if err := WriteUint16(buf, l.Metric); err != nil {
			return err
		}
	}
	return nil
}

// DecodeGroupMembershipLSA parses a group-membership LSA body.
func DecodeGroupMembershipLSA(b []byte) (*GroupMembershipLSA, error) {
	g := &GroupMembershipLSA{}
	for off := 0; off+12 <= len(b); off += 12 {
		id, err := ReadUint32(b, off)
		if err != nil {
			return nil, err
		}
		data, err := ReadUint32(b, off+4)
		if err != nil {
			return nil, err
		}
		typ := RouterLinkType(b[off+8])
		metric, err := ReadUint16(b, off+10)
		if err != nil {
			return nil, err
		}
		g.Links = append(g.Links, RouterLink{ID: id, Data: data, Type: typ, Metric: metric})
	}
	return g, nil
}
