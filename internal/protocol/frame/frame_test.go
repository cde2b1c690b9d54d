package frame

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	in := Frame{Version: 1, Type: 7, Subtype: 2, Body: []byte("hello frame")}
	buf := &bytes.Buffer{}
	if _, err := in.WriteTo(buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}
	out, err := Read(buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if out.Version != in.Version || out.Type != in.Type || out.Subtype != in.Subtype {
		t.Errorf("header mismatch: %+v", out)
	}
	if !bytes.Equal(out.Body, in.Body) {
		t.Errorf("body mismatch: %q", out.Body)
	}
}

func TestEmptyBody(t *testing.T) {
	buf := &bytes.Buffer{}
	if _, err := (Frame{Version: 1, Type: 3}).WriteTo(buf); err != nil {
		t.Fatal(err)
	}
	out, err := Read(buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(out.Body) != 0 {
		t.Errorf("expected empty body, got %d bytes", len(out.Body))
	}
}

func TestMultipleFramesSequential(t *testing.T) {
	buf := &bytes.Buffer{}
	for i := 0; i < 3; i++ {
		f := Frame{Version: 1, Type: uint16(i), Body: []byte{byte(i)}}
		if _, err := f.WriteTo(buf); err != nil {
			t.Fatal(err)
		}
	}
	r := NewReader(buf)
	for i := 0; i < 3; i++ {
		f, err := Read(r)
		if err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
		if f.Type != uint16(i) || f.Body[0] != byte(i) {
			t.Errorf("frame %d out of order: %+v", i, f)
		}
	}
	if _, err := Read(r); err != io.EOF {
		t.Errorf("expected EOF after last frame, got %v", err)
	}
}

func TestShortBody(t *testing.T) {
	var hdr [HeaderLength]byte
	binary.BigEndian.PutUint16(hdr[6:8], 100) // declares 100 bytes, supplies none
	if _, err := Read(bytes.NewReader(hdr[:])); err == nil {
		t.Error("expected error for truncated body")
	}
}
