package netlogon

import (
	"crypto/des"
	"crypto/hmac"
	"crypto/md5"
	"crypto/rand"

	"golang.org/x/crypto/md4"
)

// This file is the crypto primitives façade: every legacy operation the
// session-key and credential derivations need, and nothing else. Callers
// never reach for crypto/des, crypto/md5, or golang.org/x/crypto/md4
// directly; any internal failure here collapses to ErrCryptoFailure.

// desBlock expands a 7-byte key to an 8-byte DES key in the standard
// Netlogon manner, then encrypts one 8-byte block under ECB. This is
// always a single block, never chained: Netlogon's DES usage is
// "ECB-as-one-shot-block", not CBC.
func desBlock(key7 [7]byte, in [8]byte) ([8]byte, error) {
	key8 := desExpandKey(key7)
	block, err := des.NewCipher(key8[:])
	if err != nil {
		return [8]byte{}, ErrCryptoFailure
	}
	var out [8]byte
	block.Encrypt(out[:], in[:])
	return out, nil
}

// desExpandKey spreads the 56 bits of a 7-byte key across 8 bytes,
// producing the shape crypto/des.NewCipher expects. Each output byte takes
// 7 bits from the input stream; the low bit of every output byte is always
// cleared rather than set to a computed parity value, since DES's key
// schedule ignores that bit regardless of what it holds.
func desExpandKey(key7 [7]byte) [8]byte {
	var out [8]byte
	out[0] = key7[0] >> 1
	out[1] = ((key7[0] & 0x01) << 6) | (key7[1] >> 2)
	out[2] = ((key7[1] & 0x03) << 5) | (key7[2] >> 3)
	out[3] = ((key7[2] & 0x07) << 4) | (key7[3] >> 4)
	out[4] = ((key7[3] & 0x0F) << 3) | (key7[4] >> 5)
	out[5] = ((key7[4] & 0x1F) << 2) | (key7[5] >> 6)
	out[6] = ((key7[5] & 0x3F) << 1) | (key7[6] >> 7)
	out[7] = key7[6] & 0x7F

	for i := range out {
		out[i] = (out[i] << 1) & 0xFE
	}
	return out
}

// ntlmHash computes the NT hash: MD4 of password, which the caller passes
// already UTF-16LE encoded. It hashes the bytes as given and does no
// encoding of its own; ntlmHashString encodes a plaintext string first.
func ntlmHash(password []byte) [16]byte {
	h := md4.New()
	h.Write(password)
	var sum [16]byte
	copy(sum[:], h.Sum(nil))
	return sum
}

// ntlmHashString is a convenience wrapper for plaintext-password inputs.
func ntlmHashString(password string) [16]byte {
	return ntlmHash(encodeUTF16LE(password))
}

// md5Sum hashes the concatenation of chunks.
func md5Sum(chunks ...[]byte) [16]byte {
	h := md5.New()
	for _, c := range chunks {
		h.Write(c)
	}
	var sum [16]byte
	copy(sum[:], h.Sum(nil))
	return sum
}

// hmacMD5 computes HMAC-MD5(key, data).
func hmacMD5(key, data []byte) [16]byte {
	h := hmac.New(md5.New, key)
	h.Write(data)
	var sum [16]byte
	copy(sum[:], h.Sum(nil))
	return sum
}

// randomBytes returns n cryptographically strong random bytes.
func randomBytes(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return nil, ErrCryptoFailure
	}
	return buf, nil
}

// randomNonce8 draws a fresh 8-byte nonce, unfiltered by the mitigation
// predicate. Callers that need a filtered nonce use sampleMitigatedNonce.
func randomNonce8() ([8]byte, error) {
	b, err := randomBytes(8)
	if err != nil {
		return [8]byte{}, err
	}
	var out [8]byte
	copy(out[:], b)
	return out, nil
}

// credentialsEqual does a constant-time comparison of two 8-byte
// credentials, matching the idiom of comparing signatures with hmac.Equal
// rather than reflect.DeepEqual or a loop.
func credentialsEqual(a, b [8]byte) bool {
	return hmac.Equal(a[:], b[:])
}

// zeroBytes overwrites buf with zeros. Used to scrub password buffers,
// NTLM hashes, and intermediate DES inputs on every exit path, including
// error returns, so no secret value outlives the function that derived
// it. A plain range-loop store, not a library call, so the compiler cannot
// elide it as a dead store to a value about to go out of scope.
func zeroBytes(buf []byte) {
	for i := range buf {
		buf[i] = 0
	}
}

func zeroArray8(buf *[8]byte) {
	for i := range buf {
		buf[i] = 0
	}
}

func zeroArray16(buf *[16]byte) {
	for i := range buf {
		buf[i] = 0
	}
}
