package ospf

import (
	"bytes"
	"fmt"
)

// DD bit masks within the DatabaseDescription.Flags byte (RFC 2328 §A.3.3).
const (
	DDBitMS = 1 << 0 // Master/Slave
	DDBitM  = 1 << 1 // More
	DDBitI  = 1 << 2 // Init
)

// DatabaseDescription is the body of an OSPF Database Description packet.
type DatabaseDescription struct {
	InterfaceMTU uint16
	Options      uint8
	Flags        uint8 // I/M/MS bits
	SequenceNumber uint32
	LSAHeaders   []LSAHeader // the summary list for this packet
}

// Encode appends the DD body to buf.
func (d *DatabaseDescription) Encode(buf *bytes.Buffer) error {
	if err := WriteUint16(buf, d.InterfaceMTU); err != nil {
		return err
	}
	if err := buf.WriteByte(d.Options); err != nil {
		return err
	}
	if err := buf.WriteByte(d.Flags); err != nil {
		return err
	}
	if err := WriteUint32(buf, d.SequenceNumber); err != nil {
		return err
	}
	for i := range d.LSAHeaders {
		if err := d.LSAHeaders[i].Encode(buf); err != nil {
			return err
		}
	}
	return nil
}

// DecodeDatabaseDescription parses a DD body from b.
func DecodeDatabaseDescription(b []byte) (*DatabaseDescription, error) {
	if len(b) < 8 {
		return nil, fmt.Errorf("ospf: dbd body too short: %d bytes", len(b))
	}
	d := &DatabaseDescription{}
	var err error

	if d.InterfaceMTU, err = ReadUint16(b, 0); err != nil {
		return nil, err
	}
	d.Options = b[2]
	d.Flags = b[3]
	if d.SequenceNumber, err = ReadUint32(b, 4); err != nil {
		return nil, err
	}

	for off := 8; off+20 <= len(b); off += 20 {
		hdr, err := DecodeLSAHeader(b[off : off+20])
		if err != nil {
			return nil, err
		}
		d.LSAHeaders = append(d.LSAHeaders, *hdr)
	}
	return d, nil
}

// LSRequestEntry is one 12-byte entry in a Link State Request packet.
type LSRequestEntry struct {
	Type      LSAType
	LSID      uint32
	AdvRouter RouterID
}

// LinkStateRequest is the body of an OSPF Link State Request packet.
type LinkStateRequest struct {
	Entries []LSRequestEntry
}

func (r *LinkStateRequest) Encode(buf *bytes.Buffer) error {
	for _, e := range r.Entries {
		if err := WriteUint32(buf, uint32(e.Type)); err != nil {
			return err
		}
		if err := WriteUint32(buf, e.LSID); err != nil {
			return err
		}
		if err := WriteUint32(buf, uint32(e.AdvRouter)); err != nil {
			return err
		}
	}
	return nil
}

func DecodeLinkStateRequest(b []byte) (*LinkStateRequest, error) {
	r := &LinkStateRequest{}
	for off := 0; off+12 <= len(b); off += 12 {
		typ, err := ReadUint32(b, off)
		if err != nil {
			return nil, err
		}
		lsid, err := ReadUint32(b, off+4)
		if err != nil {
			return nil, err
		}
		adv, err := ReadUint32(b, off+8)
		if err != nil {
			return nil, err
		}
		r.Entries = append(r.Entries, LSRequestEntry{
			Type:      LSAType(typ),
			LSID:      lsid,
			AdvRouter: RouterID(adv),
		})
	}
	return r, nil
}

// LinkStateAcknowledgment is the body of an OSPF Link State Acknowledgment
// packet: a list of LSA headers being acknowledged.
type LinkStateAcknowledgment struct {
	LSAHeaders []LSAHeader
}

func (a *LinkStateAcknowledgment) Encode(buf *bytes.Buffer) error {
	for i := range a.LSAHeaders {
		if err := a.LSAHeaders[i].Encode(buf); err != nil {
			return err
		}
	}
	return nil
}

func DecodeLinkStateAcknowledgment(b []byte) (*LinkStateAcknowledgment, error) {
	a := &LinkStateAcknowledgment{}
	for off := 0; off+20 <= len(b); off += 20 {
		hdr, err := DecodeLSAHeader(b[off : off+20])
		if err != nil {
			return nil, err
		}
		a.LSAHeaders = append(a.LSAHeaders, *hdr)
	}
	return a, nil
}
