package hitless

import (
	"os"
	"path/filepath"
	"testing"
)

func TestStoreLoadRoundTrip(t *testing.T) {
	ps := NewPersister(DefaultPath(t.TempDir()))

	in := &Parms{
		GracePeriod: 100,
		RouterID:    0x01010101,
		ElapsedSecs: 1234,
		MD5Seqs: []MD5Seq{
			{PhyInt: 1, KeyID: 5, SequenceNum: 42},
			{PhyInt: 2, KeyID: 5, SequenceNum: 99},
		},
	}
	if err := ps.Store(in); err != nil {
		t.Fatalf("Store: %v", err)
	}

	out, err := ps.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if out == nil {
		t.Fatal("Load returned nil for a stored block")
	}
	if out.GracePeriod != in.GracePeriod || out.RouterID != in.RouterID || out.ElapsedSecs != in.ElapsedSecs {
		t.Errorf("scalar fields mismatch: got %+v want %+v", out, in)
	}
	if len(out.MD5Seqs) != 2 || out.MD5Seqs[1].SequenceNum != 99 {
		t.Errorf("MD5Seqs mismatch: got %+v", out.MD5Seqs)
	}
}

func TestLoadMissingFile(t *testing.T) {
	ps := NewPersister(DefaultPath(t.TempDir()))
	p, err := ps.Load()
	if err != nil {
		t.Fatalf("Load of missing file: %v", err)
	}
	if p != nil {
		t.Errorf("expected nil Parms for missing file, got %+v", p)
	}
}

func TestLoadCorrupted(t *testing.T) {
	dir := t.TempDir()
	path := DefaultPath(dir)
	ps := NewPersister(path)
	if err := ps.Store(&Parms{GracePeriod: 10}); err != nil {
		t.Fatalf("Store: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	data[len(data)-1] ^= 0xff
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := ps.Load(); err != ErrCorrupted {
		t.Errorf("expected ErrCorrupted, got %v", err)
	}
}

func TestClear(t *testing.T) {
	dir := t.TempDir()
	ps := NewPersister(filepath.Join(dir, "parms.bin"))
	if err := ps.Store(&Parms{GracePeriod: 1}); err != nil {
		t.Fatal(err)
	}
	if err := ps.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if p, err := ps.Load(); err != nil || p != nil {
		t.Errorf("after Clear: parms=%v err=%v", p, err)
	}
	if err := ps.Clear(); err != nil {
		t.Errorf("second Clear should be a no-op, got %v", err)
	}
}
