// Package auth implements OSPF's simple-password and cryptographic MD5
// authentication key lifecycle: each key carries
// start_accept/start_generate/stop_generate/stop_accept timestamps, and the
// active generate-key at any instant is selected by the engine's elapsed
// time, not wall time.
package auth

import (
	"crypto/hmac"
	"crypto/md5"
	"fmt"
)

// Type identifies an authentication key's cryptographic scheme.
type Type int

const (
	TypeNone Type = iota
	TypeSimple
	TypeMD5
)

// Key is one authentication credential scoped to a time window.
type Key struct {
	ID             uint8
	Type           Type
	Secret         []byte // 8-byte simple password, or MD5 secret of any length
	StartAccept    int64  // elapsed seconds; inbound packets digested with this key accepted from this time
	StartGenerate  int64  // this key becomes the one used to sign outbound packets from this time
	StopGenerate   int64  // 0 means "no scheduled stop"
	StopAccept     int64  // 0 means "no scheduled stop"
}

func (k Key) acceptsAt(now int64) bool {
	if now < k.StartAccept {
		return false
	}
	if k.StopAccept != 0 && now >= k.StopAccept {
		return false
	}
	return true
}

func (k Key) generatesAt(now int64) bool {
	if now < k.StartGenerate {
		return false
	}
	if k.StopGenerate != 0 && now >= k.StopGenerate {
		return false
	}
	return true
}

// KeyRing holds every configured key for one interface (or virtual link)
// and answers the two questions the engine needs at packet-send/receive
// time: which key to sign outbound packets with, and whether an inbound
// digest verifies against any currently-accepting key.
type KeyRing struct {
	keys map[uint8]Key
	// seq is the MD5 non-decreasing cryptographic sequence number (RFC 2328
	// §D.4.3); it is persisted across hitless restarts by
	// pkg/engine/hitless so that a restarted process never reuses one.
	seq uint32
}

// NewKeyRing returns an empty ring.
func NewKeyRing() *KeyRing {
	return &KeyRing{keys: map[uint8]Key{}}
}

// Set installs or replaces a key. cfgAuKey calls this inside
// a configuration transaction; keys not re-asserted between cfgStart/cfgDone
// are removed by Prune.
func (r *KeyRing) Set(k Key) { r.keys[k.ID] = k }

// Remove deletes a key by ID.
func (r *KeyRing) Remove(id uint8) { delete(r.keys, id) }

// Prune removes every key whose ID is not in keep - used by the cfgStart/
// cfgDone reconciliation so that keys not re-asserted in a transaction are
// deleted.
func (r *KeyRing) Prune(keep map[uint8]bool) {
	for id := range r.keys {
		if !keep[id] {
			delete(r.keys, id)
		}
	}
}

// ActiveGenerateKey returns the key that should sign outbound packets at
// elapsed time now, and false if no key is currently in its generate window.
func (r *KeyRing) ActiveGenerateKey(now int64) (Key, bool) {
	var best Key
	found := false
	for _, k := range r.keys {
		if !k.generatesAt(now) {
			continue
		}
		if !found || k.StartGenerate > best.StartGenerate {
			best = k
			found = true
		}
	}
	return best, found
}

// Accepts reports whether keyID is currently within its accept window.
func (r *KeyRing) Accepts(keyID uint8, now int64) (Key, bool) {
	k, ok := r.keys[keyID]
	if !ok || !k.acceptsAt(now) {
		return Key{}, false
	}
	return k, true
}

// NextSequence returns the next non-decreasing MD5 sequence number to stamp
// an outbound packet with, per RFC 2328 §D.4.3.
func (r *KeyRing) NextSequence() uint32 {
	r.seq++
	return r.seq
}

// RestoreSequence seeds the sequence counter from a persisted value so a
// restarted process never regresses it.
func (r *KeyRing) RestoreSequence(seq uint32) {
	if seq > r.seq {
		r.seq = seq
	}
}

// CurrentSequence returns the last sequence number handed out, for
// persistence by pkg/engine/hitless.
func (r *KeyRing) CurrentSequence() uint32 { return r.seq }

// Digest computes the MD5 authentication digest over data (the full OSPF
// packet with AuthData zeroed except for the MD5 header fields) followed by
// the key's secret, per RFC 2328 §D.4.3 / RFC 5709.
func Digest(data []byte, secret []byte) [16]byte {
	h := md5.New()
	h.Write(data)
	h.Write(secret)
	var out [16]byte
	copy(out[:], h.Sum(nil))
	return out
}

// VerifyDigest constant-time compares an inbound digest against the
// expected one for secret.
func VerifyDigest(data []byte, secret []byte, received [16]byte) bool {
	want := Digest(data, secret)
	return hmac.Equal(want[:], received[:])
}

// ValidateSimplePassword checks an 8-byte simple-password field against a
// configured key's secret, matching byte-for-byte (NUL padded).
func ValidateSimplePassword(field [8]byte, secret []byte) bool {
	var padded [8]byte
	copy(padded[:], secret)
	return padded == field
}

func (t Type) String() string {
	switch t {
	case TypeSimple:
		return "simple"
	case TypeMD5:
		return "md5"
	default:
		return "none"
	}
}

func (t Type) Validate() error {
	switch t {
	case TypeNone, TypeSimple, TypeMD5:
		return nil
	default:
		return fmt.Errorf("auth: unknown type %d", t)
	}
}
