// Package hitless persists the graceful-restart parameter block the engine
// hands to Platform.StoreHitlessParms: the
// grace period, the router ID, the elapsed-time reading at persist time, and
// each interface's MD5 authentication sequence number. A restarting process
// loads the block before its first tick so adjacencies can be rebuilt with
// non-decreasing crypto sequence numbers.
package hitless

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

var (
	// ErrCorrupted is returned when the parameter file fails validation.
	ErrCorrupted = errors.New("hitless parameter file corrupted")

	// ErrVersionMismatch is returned when the file was written by an
	// incompatible version of this package.
	ErrVersionMismatch = errors.New("hitless parameter file version mismatch")
)

const (
	magic   = uint32(0x4f535052) // "OSPR"
	version = uint32(1)
)

// MD5Seq is one interface's persisted cryptographic sequence number.
type MD5Seq struct {
	PhyInt      int32
	KeyID       uint8
	SequenceNum uint32
}

// Parms is the persisted parameter block.
type Parms struct {
	GracePeriod uint32 // seconds
	RouterID    uint32
	ElapsedSecs int64 // engine clock reading at persist time
	MD5Seqs     []MD5Seq
}

// Persister writes and reads the parameter block at a fixed path. The write
// path is write-temp-then-rename so a crash mid-persist leaves the previous
// block intact.
type Persister struct {
	path string
}

// NewPersister returns a Persister rooted at path. The containing directory
// must already exist.
func NewPersister(path string) *Persister {
	return &Persister{path: path}
}

// Store atomically persists p.
func (ps *Persister) Store(p *Parms) error {
	buf := &bytes.Buffer{}
	write := func(v any) {
		_ = binary.Write(buf, binary.BigEndian, v)
	}
	write(magic)
	write(version)
	write(p.GracePeriod)
	write(p.RouterID)
	write(p.ElapsedSecs)
	write(uint32(len(p.MD5Seqs)))
	for _, s := range p.MD5Seqs {
		write(s.PhyInt)
		write(s.KeyID)
		write(s.SequenceNum)
	}
	write(checksum(buf.Bytes()))

	tmp := ps.path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("writing hitless parameters: %w", err)
	}
	if err := os.Rename(tmp, ps.path); err != nil {
		return fmt.Errorf("committing hitless parameters: %w", err)
	}
	return nil
}

// Load reads back the persisted block. A missing file is not an error; it
// returns (nil, nil) meaning "no restart in progress".
func (ps *Persister) Load() (*Parms, error) {
	data, err := os.ReadFile(ps.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading hitless parameters: %w", err)
	}
	if len(data) < 28 {
		return nil, ErrCorrupted
	}

	body, sumBytes := data[:len(data)-4], data[len(data)-4:]
	if binary.BigEndian.Uint32(sumBytes) != checksum(body) {
		return nil, ErrCorrupted
	}

	r := bytes.NewReader(body)
	read := func(v any) error {
		return binary.Read(r, binary.BigEndian, v)
	}
	var m, ver uint32
	if err := read(&m); err != nil || m != magic {
		return nil, ErrCorrupted
	}
	if err := read(&ver); err != nil {
		return nil, ErrCorrupted
	}
	if ver != version {
		return nil, ErrVersionMismatch
	}

	p := &Parms{}
	if err := read(&p.GracePeriod); err != nil {
		return nil, ErrCorrupted
	}
	if err := read(&p.RouterID); err != nil {
		return nil, ErrCorrupted
	}
	if err := read(&p.ElapsedSecs); err != nil {
		return nil, ErrCorrupted
	}
	var count uint32
	if err := read(&count); err != nil {
		return nil, ErrCorrupted
	}
	for i := uint32(0); i < count; i++ {
		var s MD5Seq
		if err := read(&s.PhyInt); err != nil {
			return nil, ErrCorrupted
		}
		if err := read(&s.KeyID); err != nil {
			return nil, ErrCorrupted
		}
		if err := read(&s.SequenceNum); err != nil {
			return nil, ErrCorrupted
		}
		p.MD5Seqs = append(p.MD5Seqs, s)
	}
	return p, nil
}

// Clear removes the persisted block, invoked once a restart completes.
func (ps *Persister) Clear() error {
	err := os.Remove(ps.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// DefaultPath places the parameter file under dir with the conventional name.
func DefaultPath(dir string) string {
	return filepath.Join(dir, "hitless-parms.bin")
}

// checksum is a simple base-31 rolling checksum; corruption detection only, not
// authentication.
func checksum(b []byte) uint32 {
	var sum uint32
	for _, c := range b {
		sum = sum*31 + uint32(c)
	}
	return sum
}
