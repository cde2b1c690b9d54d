package auth

import "testing"

func TestKeyRingActiveGenerateKeyPicksLatestWindow(t *testing.T) {
	r := NewKeyRing()
	r.Set(Key{ID: 1, Type: TypeMD5, Secret: []byte("old"), StartAccept: 0, StartGenerate: 0, StopGenerate: 200, StopAccept: 300})
	r.Set(Key{ID: 2, Type: TypeMD5, Secret: []byte("new"), StartAccept: 150, StartGenerate: 200})

	k, ok := r.ActiveGenerateKey(100)
	if !ok || k.ID != 1 {
		t.Fatalf("expected key 1 active at t=100, got %+v (ok=%v)", k, ok)
	}

	k, ok = r.ActiveGenerateKey(250)
	if !ok || k.ID != 2 {
		t.Fatalf("expected key 2 active at t=250, got %+v (ok=%v)", k, ok)
	}
}

func TestKeyRingAcceptsOverlapWindow(t *testing.T) {
	r := NewKeyRing()
	r.Set(Key{ID: 1, Type: TypeMD5, Secret: []byte("old"), StartAccept: 0, StopAccept: 300})
	r.Set(Key{ID: 2, Type: TypeMD5, Secret: []byte("new"), StartAccept: 150})

	if _, ok := r.Accepts(1, 250); !ok {
		t.Fatal("expected key 1 still accepted during overlap")
	}
	if _, ok := r.Accepts(2, 250); !ok {
		t.Fatal("expected key 2 accepted")
	}
	if _, ok := r.Accepts(1, 350); ok {
		t.Fatal("expected key 1 no longer accepted after stop_accept")
	}
}

func TestKeyRingPrune(t *testing.T) {
	r := NewKeyRing()
	r.Set(Key{ID: 1})
	r.Set(Key{ID: 2})
	r.Prune(map[uint8]bool{2: true})
	if _, ok := r.Accepts(1, 0); ok {
		t.Fatal("expected key 1 pruned")
	}
	if len(r.keys) != 1 {
		t.Fatalf("expected 1 key remaining, got %d", len(r.keys))
	}
}

func TestDigestRoundTrip(t *testing.T) {
	data := []byte("hello ospf")
	secret := []byte("s3cr3t")
	d := Digest(data, secret)
	if !VerifyDigest(data, secret, d) {
		t.Fatal("digest failed to verify against itself")
	}
	if VerifyDigest(data, []byte("wrong"), d) {
		t.Fatal("digest verified against wrong secret")
	}
}

func TestSequenceNeverRegresses(t *testing.T) {
	r := NewKeyRing()
	r.NextSequence()
	r.NextSequence()
	r.RestoreSequence(1) // lower than current, should be ignored
	if r.CurrentSequence() != 2 {
		t.Fatalf("expected sequence to stay at 2, got %d", r.CurrentSequence())
	}
	r.RestoreSequence(10)
	if r.CurrentSequence() != 10 {
		t.Fatalf("expected sequence to advance to 10, got %d", r.CurrentSequence())
	}
}
