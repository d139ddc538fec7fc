package netlogon

import "context"

// ChangeMachinePassword implements ServerPasswordSet: it builds the call's
// authenticator from the chain, derives a new 16-byte OWF password from
// the current one under the session key, and sends the RPC. Only on RPC
// success and a validated reply authenticator is newPassword reported as
// the value the caller should now persist as the machine password. The
// rotation is all-or-nothing from the client's point of view, so on any
// failure the function returns an error and reports no new password.
//
// The caller (not this package) owns the configuration store and is
// responsible for persisting the returned password; ChangeMachinePassword
// never writes through cfg itself; it returns the new password so the
// persist-then-report-success sequencing is explicit at the call site.
func (c *Channel) ChangeMachinePassword(ctx context.Context, currentPassword []byte, clock func() uint32) (newPassword [16]byte, err error) {
	c.mu.Lock()
	if !c.valid {
		c.mu.Unlock()
		return [16]byte{}, ErrChannelInvalid
	}
	sessionKey := c.sessionKey
	binding := c.binding
	hostname := c.clientHostname
	serverUNC := c.serverUNC
	c.mu.Unlock()

	keyBytes := sessionKey.Bytes()
	if len(keyBytes) != 16 {
		return [16]byte{}, unsuccessful("ServerPasswordSet", ErrCryptoFailure)
	}
	var key16 [16]byte
	copy(key16[:], keyBytes)

	var oldPassword [16]byte
	copy(oldPassword[:], currentPassword)
	defer zeroArray16(&oldPassword)

	auth, err := c.setupAuthenticator(func(attempt int) uint32 {
		return clock() + uint32(attempt-1)
	})
	if err != nil {
		return [16]byte{}, err
	}

	owf, err := genPassword(key16, oldPassword)
	if err != nil {
		return [16]byte{}, err
	}

	reply, err := binding.PasswordSet(ctx, PasswordSetArgs{
		ServerUNC:      serverUNC,
		AccountName:    AccountName(hostname),
		AccountType:    AccountTypeWkstaTrust,
		ClientHostname: hostname,
		Auth:           auth,
		OWFPassword:    owf,
	})
	if err != nil {
		c.invalidate()
		return [16]byte{}, unsuccessful("ServerPasswordSet", ErrTransportFailure)
	}
	if reply.Status != StatusSuccess {
		return [16]byte{}, wrapRemoteStatus("ServerPasswordSet", reply.Status)
	}

	if err := c.validateChain(auth.Timestamp, reply.ReturnAuth); err != nil {
		return [16]byte{}, err
	}

	return owf, nil
}
