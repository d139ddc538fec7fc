package netlogon

import (
	"crypto/des"
	"testing"

	"golang.org/x/crypto/md4"
)

func TestDesExpandKey_LowBitCleared(t *testing.T) {
	key7 := [7]byte{0x01, 0x23, 0x45, 0x67, 0x89, 0xAB, 0xCD}
	key8 := desExpandKey(key7)

	for i, b := range key8 {
		if b&0x01 != 0 {
			t.Errorf("key8[%d] = %#08b has its low bit set, want cleared", i, b)
		}
	}
}

func TestDesBlock_MatchesStdlibCipher(t *testing.T) {
	key7 := [7]byte{0xDE, 0xAD, 0xBE, 0xEF, 0x01, 0x02, 0x03}
	in := [8]byte{1, 2, 3, 4, 5, 6, 7, 8}

	got, err := desBlock(key7, in)
	if err != nil {
		t.Fatalf("desBlock() error = %v", err)
	}

	key8 := desExpandKey(key7)
	block, err := des.NewCipher(key8[:])
	if err != nil {
		t.Fatalf("des.NewCipher() error = %v", err)
	}
	var want [8]byte
	block.Encrypt(want[:], in[:])

	if got != want {
		t.Errorf("desBlock() = %x, want %x", got, want)
	}
}

func TestNtlmHash_MatchesMD4(t *testing.T) {
	password := encodeUTF16LE("Pw!")

	got := ntlmHash(password)

	h := md4.New()
	h.Write(password)
	var want [16]byte
	copy(want[:], h.Sum(nil))

	if got != want {
		t.Errorf("ntlmHash() = %x, want %x", got, want)
	}
}

func TestNtlmHashString_MatchesNtlmHash(t *testing.T) {
	if ntlmHashString("hunter2") != ntlmHash(encodeUTF16LE("hunter2")) {
		t.Error("ntlmHashString() diverges from ntlmHash(encodeUTF16LE())")
	}
}

func TestCredentialsEqual(t *testing.T) {
	a := [8]byte{1, 2, 3, 4, 5, 6, 7, 8}
	b := a
	c := [8]byte{1, 2, 3, 4, 5, 6, 7, 9}

	if !credentialsEqual(a, b) {
		t.Error("credentialsEqual(a, b) = false, want true for identical arrays")
	}
	if credentialsEqual(a, c) {
		t.Error("credentialsEqual(a, c) = true, want false for differing arrays")
	}
}

func TestZeroBytes(t *testing.T) {
	buf := []byte{1, 2, 3, 4}
	zeroBytes(buf)
	for i, b := range buf {
		if b != 0 {
			t.Errorf("buf[%d] = %d, want 0", i, b)
		}
	}
}

func TestRandomNonce8_Unique(t *testing.T) {
	n1, err := randomNonce8()
	if err != nil {
		t.Fatalf("randomNonce8() error = %v", err)
	}
	n2, err := randomNonce8()
	if err != nil {
		t.Fatalf("randomNonce8() error = %v", err)
	}
	if n1 == n2 {
		t.Error("two consecutive randomNonce8() calls returned the same value")
	}
}
