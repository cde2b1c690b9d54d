package ospf

import (
	"bytes"
	"net"
	"testing"
)

func TestHeaderRoundTrip(t *testing.T) {
	in := &Header{
		Version:  2,
		Type:     PacketHello,
		Length:   44,
		RouterID: RouterID(0x01010101),
		AreaID:   Backbone,
		AuType:   AuSimple,
	}
	copy(in.AuthData[:], "secret")

	buf := &bytes.Buffer{}
	if err := in.Encode(buf); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if buf.Len() != HeaderLength {
		t.Fatalf("encoded header is %d bytes, want %d", buf.Len(), HeaderLength)
	}

	out, err := DecodeHeader(buf.Bytes())
	if err != nil {
		t.Fatalf("DecodeHeader: %v", err)
	}
	if *out != *in {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", out, in)
	}
}

func TestDecodeHeaderShortBuffer(t *testing.T) {
	if _, err := DecodeHeader(make([]byte, HeaderLength-1)); err == nil {
		t.Error("expected error for short buffer")
	}
}

func TestHelloRoundTrip(t *testing.T) {
	in := &Hello{
		NetworkMask:            net.IPv4(255, 255, 255, 0),
		HelloInterval:          10,
		Options:                OptionE,
		RouterPriority:         1,
		RouterDeadInterval:     40,
		DesignatedRouter:       net.IPv4(10, 1, 1, 3),
		BackupDesignatedRouter: net.IPv4(10, 1, 1, 2),
		Neighbors:              []RouterID{0x0a000001, 0x0a000002},
	}
	buf := &bytes.Buffer{}
	if err := in.Encode(buf); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	out, err := DecodeHello(buf.Bytes())
	if err != nil {
		t.Fatalf("DecodeHello: %v", err)
	}
	if !out.NetworkMask.Equal(in.NetworkMask) || out.HelloInterval != in.HelloInterval ||
		out.RouterDeadInterval != in.RouterDeadInterval {
		t.Errorf("scalar fields mismatch: %+v", out)
	}
	if !out.DesignatedRouter.Equal(in.DesignatedRouter) || !out.BackupDesignatedRouter.Equal(in.BackupDesignatedRouter) {
		t.Errorf("DR/BDR mismatch: %+v", out)
	}
	if len(out.Neighbors) != 2 || out.Neighbors[0] != in.Neighbors[0] || out.Neighbors[1] != in.Neighbors[1] {
		t.Errorf("neighbors mismatch: %v", out.Neighbors)
	}
}

func TestDatabaseDescriptionRoundTrip(t *testing.T) {
	in := &DatabaseDescription{
		InterfaceMTU:   1500,
		Options:        OptionE,
		Flags:          DDBitI | DDBitM | DDBitMS,
		SequenceNumber: 0x1234,
		LSAHeaders: []LSAHeader{
			{Age: 1, Type: LSARouter, LSID: 0x01010101, AdvRouter: 0x01010101, SequenceNumber: InitialSequenceNum, Length: 24},
		},
	}
	buf := &bytes.Buffer{}
	if err := in.Encode(buf); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	out, err := DecodeDatabaseDescription(buf.Bytes())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if out.Flags != in.Flags || out.SequenceNumber != in.SequenceNumber || out.InterfaceMTU != in.InterfaceMTU {
		t.Errorf("fields mismatch: %+v", out)
	}
	if len(out.LSAHeaders) != 1 || out.LSAHeaders[0].Key() != in.LSAHeaders[0].Key() {
		t.Errorf("headers mismatch: %+v", out.LSAHeaders)
	}
}

func TestLSARoundTripRouter(t *testing.T) {
	in := &LSA{
		Header: LSAHeader{
			Type:           LSARouter,
			LSID:           0x01010101,
			AdvRouter:      0x01010101,
			SequenceNumber: InitialSequenceNum,
		},
		Body: &RouterLSA{
			Links: []RouterLink{
				{Type: LinkPointToPoint, ID: 0x02020202, Data: 0x0a000001, Metric: 1},
				{Type: LinkStub, ID: 0x0a000000, Data: 0xffffff00, Metric: 1},
			},
		},
	}
	buf := &bytes.Buffer{}
	if err := in.Encode(buf); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if in.Header.Checksum == 0 {
		t.Error("Encode should have computed the checksum")
	}
	if int(in.Header.Length) != buf.Len() {
		t.Errorf("header length %d != encoded %d", in.Header.Length, buf.Len())
	}

	out, err := DecodeLSA(buf.Bytes())
	if err != nil {
		t.Fatalf("DecodeLSA: %v", err)
	}
	body, ok := out.Body.(*RouterLSA)
	if !ok {
		t.Fatalf("decoded body has type %T", out.Body)
	}
	if len(body.Links) != 2 || body.Links[0].ID != 0x02020202 || body.Links[1].Type != LinkStub {
		t.Errorf("links mismatch: %+v", body.Links)
	}

	// The checksum must verify: recomputing over the decoded content gives
	// the stored value.
	recomputed := ComputeChecksum(&out.Header, buf.Bytes()[20:])
	if recomputed != out.Header.Checksum {
		t.Errorf("checksum does not verify: stored 0x%04x recomputed 0x%04x", out.Header.Checksum, recomputed)
	}
}

func TestChecksumExcludesAge(t *testing.T) {
	lsa := &LSA{
		Header: LSAHeader{Type: LSANetwork, LSID: 0x0a010103, AdvRouter: 0x0a000003, SequenceNumber: InitialSequenceNum},
		Body:   &NetworkLSA{NetworkMask: 0xffffff00, AttachedRouters: []RouterID{0x0a000001, 0x0a000003}},
	}
	buf := &bytes.Buffer{}
	if err := lsa.Encode(buf); err != nil {
		t.Fatal(err)
	}
	sum := lsa.Header.Checksum

	aged := *lsa
	aged.Header.Age = 900
	sum2 := ComputeChecksum(&aged.Header, buf.Bytes()[20:])
	if sum != sum2 {
		t.Errorf("checksum changed with age: 0x%04x vs 0x%04x", sum, sum2)
	}
}

func TestLSATypeScopes(t *testing.T) {
	cases := map[LSAType]FloodingScope{
		LSARouter:      ScopeArea,
		LSANetwork:     ScopeArea,
		LSASummary:     ScopeArea,
		LSAGroupMember: ScopeArea,
		LSAOpaqueArea:  ScopeArea,
		LSAASExternal:  ScopeAS,
		LSAOpaqueAS:    ScopeAS,
		LSAOpaqueLink:  ScopeLink,
	}
	for typ, want := range cases {
		if got := typ.Scope(); got != want {
			t.Errorf("%s scope = %v, want %v", typ, got, want)
		}
	}
}

func TestRouterIDString(t *testing.T) {
	if got := RouterID(0x01020304).String(); got != "1.2.3.4" {
		t.Errorf("RouterID string = %q", got)
	}
	if got := RouterIDFromIP(net.IPv4(1, 2, 3, 4)); got != 0x01020304 {
		t.Errorf("RouterIDFromIP = %08x", uint32(got))
	}
}
