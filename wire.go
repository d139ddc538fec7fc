package netlogon

import (
	"encoding/binary"
	"unicode/utf16"
)

// Netlogon, like the wider NRPC/SMB family, puts every multi-byte field on
// the wire little-endian.
var le = binary.LittleEndian

// encodeUTF16LE encodes a Go string to UTF-16LE bytes, the wire form the
// NTLM hash (and the account/hostname fields the transport marshals) use.
func encodeUTF16LE(s string) []byte {
	runes := utf16.Encode([]rune(s))
	buf := make([]byte, len(runes)*2)
	for i, r := range runes {
		le.PutUint16(buf[i*2:], r)
	}
	return buf
}

// loadLE32 reads a little-endian uint32 from the first 4 bytes of buf.
// The protocol's byte order is fixed and must not depend on host
// endianness, so every interpretation of an 8-byte nonce as a pair of
// 32-bit words goes through this and storeLE32 rather than raw pointer
// aliasing.
func loadLE32(buf []byte) uint32 {
	return le.Uint32(buf)
}

func storeLE32(buf []byte, v uint32) {
	le.PutUint32(buf, v)
}

// splitLE32Pair interprets an 8-byte buffer as two little-endian uint32
// words (c0, c1), the representation challenges, credentials, and stored
// chain seeds all share.
func splitLE32Pair(buf [8]byte) (c0, c1 uint32) {
	return loadLE32(buf[0:4]), loadLE32(buf[4:8])
}

func joinLE32Pair(c0, c1 uint32) [8]byte {
	var buf [8]byte
	storeLE32(buf[0:4], c0)
	storeLE32(buf[4:8], c1)
	return buf
}

// Authenticator is the {credential, timestamp} pair attached to every
// authenticated call. On the wire it is 12 bytes: the 8-byte credential
// followed by a little-endian uint32 timestamp.
type Authenticator struct {
	Credential [8]byte
	Timestamp  uint32
}

// MarshalBinary encodes the authenticator to its 12-byte wire form.
func (a Authenticator) MarshalBinary() []byte {
	buf := make([]byte, 12)
	copy(buf[0:8], a.Credential[:])
	storeLE32(buf[8:12], a.Timestamp)
	return buf
}

// UnmarshalAuthenticator decodes a 12-byte wire authenticator.
func UnmarshalAuthenticator(buf []byte) (Authenticator, bool) {
	if len(buf) != 12 {
		return Authenticator{}, false
	}
	var a Authenticator
	copy(a.Credential[:], buf[0:8])
	a.Timestamp = loadLE32(buf[8:12])
	return a, true
}
