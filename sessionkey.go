package netlogon

// SessionKey holds the shared secret derived from both sides' challenges
// and the machine password: the base key for the credential chain. Its
// length is 8 when the legacy skey64 derivation was used, 16 when the
// strong-key skey128 derivation was used; strongKey records which path
// produced it.
type SessionKey struct {
	bytes     [16]byte
	strongKey bool
}

// Bytes returns the key material: 8 bytes for skey64, 16 for skey128.
func (k SessionKey) Bytes() []byte {
	if k.strongKey {
		return k.bytes[:16]
	}
	return k.bytes[:8]
}

// Zero scrubs the key material. Call once the channel is torn down.
func (k *SessionKey) Zero() {
	zeroArray16(&k.bytes)
}

// deriveSessionKey128 implements skey128: the strong-key derivation used
// when STRONG_KEY is negotiated.
//
//  1. H = ntlm_hash(machine_password)
//  2. digest = MD5(0x00000000 || client_challenge || server_challenge)
//  3. session_key = HMAC_MD5(key=H, data=digest), length 16
func deriveSessionKey128(machinePassword []byte, clientChallenge, serverChallenge [8]byte) (SessionKey, error) {
	encoded := encodeUTF16LE(string(machinePassword))
	defer zeroBytes(encoded)
	h := ntlmHash(encoded)
	defer zeroArray16(&h)

	var zeros [4]byte
	digest := md5Sum(zeros[:], clientChallenge[:], serverChallenge[:])

	sum := hmacMD5(h[:], digest[:])
	return SessionKey{bytes: sum, strongKey: true}, nil
}

// deriveSessionKey64 implements skey64: the legacy DES fallback.
//
//  1. H = ntlm_hash(machine_password), first 16 bytes
//  2. (c0,c1), (s0,s1) = LE32 pairs of client/server challenge;
//     S = LE32(c0+s0, c1+s1) (wrapping)
//  3. tmp = DES(key=H[0:7], in=S)
//  4. session_key = DES(key=H[9:16], in=tmp), length 8
//
// The second DES stage deliberately keys from H[9:16], not H[8:15]. This
// is a legacy byte-offset anomaly, not a bug: it must be reproduced
// bit-exactly for interoperability with existing domain controllers.
func deriveSessionKey64(machinePassword []byte, clientChallenge, serverChallenge [8]byte) (SessionKey, error) {
	encoded := encodeUTF16LE(string(machinePassword))
	defer zeroBytes(encoded)
	h := ntlmHash(encoded)
	defer zeroArray16(&h)

	c0, c1 := splitLE32Pair(clientChallenge)
	s0, s1 := splitLE32Pair(serverChallenge)
	s := joinLE32Pair(c0+s0, c1+s1)
	defer zeroArray8(&s)

	var key1 [7]byte
	copy(key1[:], h[0:7])
	tmp, err := desBlock(key1, s)
	if err != nil {
		return SessionKey{}, err
	}
	defer zeroArray8(&tmp)

	var key2 [7]byte
	copy(key2[:], h[9:16])
	out, err := desBlock(key2, tmp)
	if err != nil {
		return SessionKey{}, err
	}

	var sk SessionKey
	copy(sk.bytes[:8], out[:])
	return sk, nil
}

// deriveSessionKey picks skey128 or skey64 based on whether STRONG_KEY is
// in the proposed negotiation flags, zeroing the password on every exit
// path.
func deriveSessionKey(machinePassword []byte, strongKey bool, clientChallenge, serverChallenge [8]byte) (SessionKey, error) {
	defer zeroBytes(machinePassword)
	if strongKey {
		return deriveSessionKey128(machinePassword, clientChallenge, serverChallenge)
	}
	return deriveSessionKey64(machinePassword, clientChallenge, serverChallenge)
}
