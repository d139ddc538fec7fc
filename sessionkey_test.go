package netlogon

import (
	"crypto/des"
	"crypto/hmac"
	"crypto/md5"
	"testing"

	"golang.org/x/crypto/md4"
)

// fixtureChallenges returns the fixed client/server challenge pair reused
// across this file and credential_test.go: 00 01 02 03 04 05 06 07 and
// 10 11 12 13 14 15 16 17.
func fixtureChallenges() (client, server [8]byte) {
	client = [8]byte{0x00, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07}
	server = [8]byte{0x10, 0x11, 0x12, 0x13, 0x14, 0x15, 0x16, 0x17}
	return
}

func TestDeriveSessionKey128_MatchesOracle(t *testing.T) {
	client, server := fixtureChallenges()
	password := []byte("Pw!")
	passwordCopy := append([]byte(nil), password...)

	sk, err := deriveSessionKey128(passwordCopy, client, server)
	if err != nil {
		t.Fatalf("deriveSessionKey128() error = %v", err)
	}
	if !sk.strongKey {
		t.Error("deriveSessionKey128() produced a SessionKey with strongKey = false")
	}

	h := md4.New()
	h.Write(encodeUTF16LE("Pw!"))
	var ntHash [16]byte
	copy(ntHash[:], h.Sum(nil))

	md5h := md5.New()
	md5h.Write([]byte{0, 0, 0, 0})
	md5h.Write(client[:])
	md5h.Write(server[:])
	digest := md5h.Sum(nil)

	mac := hmac.New(md5.New, ntHash[:])
	mac.Write(digest)
	var want [16]byte
	copy(want[:], mac.Sum(nil))

	if sk.Bytes() == nil || len(sk.Bytes()) != 16 {
		t.Fatalf("SessionKey.Bytes() length = %d, want 16", len(sk.Bytes()))
	}
	var gotArr [16]byte
	copy(gotArr[:], sk.Bytes())
	if gotArr != want {
		t.Errorf("deriveSessionKey128() = %x, want %x", gotArr, want)
	}
}

func TestDeriveSessionKey64_MatchesOracle(t *testing.T) {
	client, server := fixtureChallenges()
	password := []byte("Pw!")
	passwordCopy := append([]byte(nil), password...)

	sk, err := deriveSessionKey64(passwordCopy, client, server)
	if err != nil {
		t.Fatalf("deriveSessionKey64() error = %v", err)
	}
	if sk.strongKey {
		t.Error("deriveSessionKey64() produced a SessionKey with strongKey = true")
	}
	if len(sk.Bytes()) != 8 {
		t.Fatalf("SessionKey.Bytes() length = %d, want 8", len(sk.Bytes()))
	}

	h := md4.New()
	h.Write(encodeUTF16LE("Pw!"))
	var ntHash [16]byte
	copy(ntHash[:], h.Sum(nil))

	c0, c1 := splitLE32Pair(client)
	s0, s1 := splitLE32Pair(server)
	sum := joinLE32Pair(c0+s0, c1+s1)

	tmp := desOracleBlock(t, ntHash[0:7], sum)
	// The anomaly under test: the second stage keys from H[9:16], not H[8:15].
	out := desOracleBlock(t, ntHash[9:16], tmp)

	var want [8]byte
	copy(want[:], out[:])
	var got [8]byte
	copy(got[:], sk.Bytes())

	if got != want {
		t.Errorf("deriveSessionKey64() = %x, want %x", got, want)
	}
}

func TestDeriveSessionKey64_H8Offset_WouldDiffer(t *testing.T) {
	// Regression guard for the legacy byte-offset anomaly: keying the
	// second stage from H[8:15] instead of H[9:16] must produce a
	// different session key, proving the implementation is not
	// accidentally using the "corrected" offset.
	client, server := fixtureChallenges()
	password := []byte("Pw!")

	h := md4.New()
	h.Write(encodeUTF16LE("Pw!"))
	var ntHash [16]byte
	copy(ntHash[:], h.Sum(nil))

	c0, c1 := splitLE32Pair(client)
	s0, s1 := splitLE32Pair(server)
	sum := joinLE32Pair(c0+s0, c1+s1)
	tmp := desOracleBlock(t, ntHash[0:7], sum)

	correctedOffset := desOracleBlock(t, ntHash[8:15], tmp)

	sk, err := deriveSessionKey64(append([]byte(nil), password...), client, server)
	if err != nil {
		t.Fatalf("deriveSessionKey64() error = %v", err)
	}
	var got [8]byte
	copy(got[:], sk.Bytes())

	if got == correctedOffset {
		t.Error("deriveSessionKey64() matches the H[8:15] offset; the H[9:16] anomaly was not reproduced")
	}
}

func TestDeriveSessionKey_Dispatch(t *testing.T) {
	client, server := fixtureChallenges()

	sk, err := deriveSessionKey(append([]byte(nil), "Pw!"...), true, client, server)
	if err != nil {
		t.Fatalf("deriveSessionKey(strongKey=true) error = %v", err)
	}
	if len(sk.Bytes()) != 16 {
		t.Errorf("deriveSessionKey(strongKey=true) key length = %d, want 16", len(sk.Bytes()))
	}

	sk, err = deriveSessionKey(append([]byte(nil), "Pw!"...), false, client, server)
	if err != nil {
		t.Fatalf("deriveSessionKey(strongKey=false) error = %v", err)
	}
	if len(sk.Bytes()) != 8 {
		t.Errorf("deriveSessionKey(strongKey=false) key length = %d, want 8", len(sk.Bytes()))
	}
}

func TestDeriveSessionKey_ZeroesPasswordOnExit(t *testing.T) {
	client, server := fixtureChallenges()
	password := append([]byte(nil), "Pw!"...)

	if _, err := deriveSessionKey(password, true, client, server); err != nil {
		t.Fatalf("deriveSessionKey() error = %v", err)
	}

	for i, b := range password {
		if b != 0 {
			t.Errorf("password[%d] = %d after deriveSessionKey(), want 0", i, b)
		}
	}
}

func TestSessionKey_Zero(t *testing.T) {
	sk := SessionKey{bytes: [16]byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}, strongKey: true}
	sk.Zero()
	for i, b := range sk.bytes {
		if b != 0 {
			t.Errorf("sk.bytes[%d] = %d after Zero(), want 0", i, b)
		}
	}
}

// desOracleBlock expands a 7-byte key slice with the package's desExpandKey
// and encrypts one block with crypto/des directly, bypassing desBlock and
// the derivation functions under test.
func desOracleBlock(t *testing.T, key7slice []byte, in [8]byte) [8]byte {
	t.Helper()
	var key7 [7]byte
	copy(key7[:], key7slice)
	key8 := desExpandKey(key7)
	block, err := des.NewCipher(key8[:])
	if err != nil {
		t.Fatalf("des.NewCipher() error = %v", err)
	}
	var out [8]byte
	block.Encrypt(out[:], in[:])
	return out
}
