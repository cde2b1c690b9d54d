package ospf

// MD5AuthData is the interpretation of Header.AuthData when AuType is AuMD5
// (RFC 2328 §D.3): the two bytes after the reserved field carry the key ID
// and the digest length, and the last four bytes carry the non-decreasing
// cryptographic sequence number. The digest itself is appended after the
// packet (outside the common header), not stored in AuthData.
type MD5AuthData struct {
	KeyID        uint8
	AuthDataLen  uint8
	SequenceNum  uint32
}

// DecodeMD5AuthData interprets Header.AuthData for AuType == AuMD5.
// Layout: [0:2] reserved, [2] key id, [3] auth data len, [4:8] sequence number.
func DecodeMD5AuthData(authData [8]byte) MD5AuthData {
	return MD5AuthData{
		KeyID:       authData[2],
		AuthDataLen: authData[3],
		SequenceNum: uint32(authData[4])<<24 | uint32(authData[5])<<16 | uint32(authData[6])<<8 | uint32(authData[7]),
	}
}

// Encode packs an MD5AuthData back into the 8-byte AuthData field.
func (m MD5AuthData) Encode() [8]byte {
	var out [8]byte
	out[2] = m.KeyID
	out[3] = m.AuthDataLen
	out[4] = byte(m.SequenceNum >> 24)
	out[5] = byte(m.SequenceNum >> 16)
	out[6] = byte(m.SequenceNum >> 8)
	out[7] = byte(m.SequenceNum)
	return out
}

// SimplePassword interprets Header.AuthData for AuType == AuSimple: the
// 8 bytes are the password itself, NUL-padded.
func SimplePassword(authData [8]byte) []byte {
	for i, b := range authData {
		if b == 0 {
			return authData[:i]
		}
	}
	return authData[:]
}
