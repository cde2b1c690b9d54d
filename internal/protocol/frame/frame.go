// Package frame implements the length-prefixed framing shared by the
// simulation controller's control channel and the monitoring protocol: a
// fixed {version, type, subtype, length} header followed by
// length bytes of body. The reader pulls a fixed header, then reads
// exactly the declared number of body bytes before handing the frame up.
package frame

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
)

// HeaderLength is the fixed size of the frame header.
const HeaderLength = 8

// MaxBodyLength bounds how large a single frame's body may be, protecting
// a reader from a corrupt or hostile length field.
const MaxBodyLength = 1 << 20 // 1 MiB

// Frame is one {version, type, subtype, length, body} record.
type Frame struct {
	Version uint16
	Type    uint16
	Subtype uint16
	Body    []byte
}

// WriteTo serializes f to w as {version, type, subtype, length}+body.
func (f Frame) WriteTo(w io.Writer) (int64, error) {
	var hdr [HeaderLength]byte
	binary.BigEndian.PutUint16(hdr[0:2], f.Version)
	binary.BigEndian.PutUint16(hdr[2:4], f.Type)
	binary.BigEndian.PutUint16(hdr[4:6], f.Subtype)
	binary.BigEndian.PutUint16(hdr[6:8], uint16(len(f.Body)))

	n, err := w.Write(hdr[:])
	if err != nil {
		return int64(n), err
	}
	m, err := w.Write(f.Body)
	return int64(n + m), err
}

// Read reads exactly one frame from r. r is typically wrapped in a
// *bufio.Reader by the caller so that repeated small reads don't each incur
// a syscall.
func Read(r io.Reader) (Frame, error) {
	var hdr [HeaderLength]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return Frame{}, err
	}
	f := Frame{
		Version: binary.BigEndian.Uint16(hdr[0:2]),
		Type:    binary.BigEndian.Uint16(hdr[2:4]),
		Subtype: binary.BigEndian.Uint16(hdr[4:6]),
	}
	length := binary.BigEndian.Uint16(hdr[6:8])
	if int(length) > MaxBodyLength {
		return Frame{}, fmt.Errorf("frame: body length %d exceeds maximum %d", length, MaxBodyLength)
	}
	f.Body = make([]byte, length)
	if _, err := io.ReadFull(r, f.Body); err != nil {
		return Frame{}, fmt.Errorf("frame: short body: %w", err)
	}
	return f, nil
}

// NewReader wraps r in a buffered reader sized for typical frame traffic.
func NewReader(r io.Reader) *bufio.Reader {
	return bufio.NewReaderSize(r, 4096)
}
