package netlogon

// passes implements the DC-mitigation predicate: among the first five bytes
// of buf, at least one value must appear exactly once. Only those five
// bytes are considered; the remaining three are ignored.
func passes(buf [8]byte) bool {
	for i := 0; i < 5; i++ {
		unique := true
		for j := 0; j < 5; j++ {
			if j != i && buf[j] == buf[i] {
				unique = false
				break
			}
		}
		if unique {
			return true
		}
	}
	return false
}

// sampleMitigatedNonce draws 8-byte nonces from gen until one satisfies the
// mitigation predicate, or maxAttempts is exhausted. It and
// retryMitigatedCredential are the package's only automatic retry loops:
// both are bounded, unlike a request-level retry policy, because an
// unbounded loop here would be a pathological hang rather than a
// transient-failure recovery.
func sampleMitigatedNonce(maxAttempts int, logger Logger, gen func() ([8]byte, error)) ([8]byte, error) {
	var last [8]byte
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		nonce, err := gen()
		if err != nil {
			return [8]byte{}, err
		}
		if passes(nonce) {
			return nonce, nil
		}
		last = nonce
		if logger != nil {
			logger.Printf("netlogon: nonce %x failed mitigation predicate (attempt %d/%d), resampling",
				last, attempt, maxAttempts)
		}
	}
	return [8]byte{}, ErrMitigationExceeded
}

// retryMitigatedCredential calls gen repeatedly, treating errMitigationRetry
// as a signal to call gen again with the next attempt number (so gen can
// resample its input), up to maxAttempts. Used by the
// per-call authenticator (retry=true in gen_credentials).
func retryMitigatedCredential(maxAttempts int, logger Logger, gen func(attempt int) ([8]byte, error)) ([8]byte, error) {
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		cred, err := gen(attempt)
		if err == nil {
			return cred, nil
		}
		if err != errMitigationRetry {
			return [8]byte{}, err
		}
		if logger != nil {
			logger.Printf("netlogon: credential failed mitigation predicate (attempt %d/%d), resampling timestamp",
				attempt, maxAttempts)
		}
	}
	return [8]byte{}, ErrMitigationExceeded
}
