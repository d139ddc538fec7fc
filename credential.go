package netlogon

// genCredentials implements gen_credentials: derives an 8-byte credential
// from (session key, challenge, timestamp).
//
//  1. (c0,c1) = LE32 pair of challenge; S = LE32(c0+timestamp, c1) (wrapping)
//  2. tmp = DES(key=session_key[0:7], in=S)
//  3. credential = DES(key=session_key[7:14], in=tmp)
//
// For an 8-byte (skey64) session key, session_key[7:14] reaches past the
// end of the key; the second 7 bytes are zero-padded. When retry is true
// and the result fails the mitigation predicate, errMitigationRetry is
// returned instead of a credential. The caller is responsible for
// resampling its inputs (a new timestamp) and calling again; this value
// must never escape past that caller.
func genCredentials(key SessionKey, challenge [8]byte, timestamp uint32, retry bool) ([8]byte, error) {
	c0, c1 := splitLE32Pair(challenge)
	s := joinLE32Pair(c0+timestamp, c1)
	defer zeroArray8(&s)

	keyBytes := key.Bytes()

	var key1 [7]byte
	copy(key1[:], keyBytes[0:7])
	tmp, err := desBlock(key1, s)
	if err != nil {
		return [8]byte{}, err
	}
	defer zeroArray8(&tmp)

	var key2 [7]byte
	if len(keyBytes) >= 14 {
		copy(key2[:], keyBytes[7:14])
	} else if len(keyBytes) > 7 {
		copy(key2[:], keyBytes[7:])
	}

	cred, err := desBlock(key2, tmp)
	if err != nil {
		return [8]byte{}, err
	}

	if retry && !passes(cred) {
		return [8]byte{}, errMitigationRetry
	}
	return cred, nil
}

// genPassword implements gen_password: encrypts the two 8-byte halves of
// the current machine password, each under a different 7-byte half of a
// 16-byte session key, producing the new 16-byte OWF password sent to
// ServerPasswordSet.
//
//	new[0:8]  = DES(key=session_key[0:7], in=old[0:8])
//	new[8:16] = DES(key=session_key[7:14], in=old[8:16])
func genPassword(sessionKey16 [16]byte, old [16]byte) ([16]byte, error) {
	var key1, key2 [7]byte
	copy(key1[:], sessionKey16[0:7])
	copy(key2[:], sessionKey16[7:14])

	var in1, in2 [8]byte
	copy(in1[:], old[0:8])
	copy(in2[:], old[8:16])

	out1, err := desBlock(key1, in1)
	if err != nil {
		return [16]byte{}, err
	}
	out2, err := desBlock(key2, in2)
	if err != nil {
		return [16]byte{}, err
	}

	var out [16]byte
	copy(out[0:8], out1[:])
	copy(out[8:16], out2[:])
	return out, nil
}
