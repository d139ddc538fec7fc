package netlogon

import (
	"context"
	"sync"
)

// NegotiatedFlags is the NRPC negotiate-flags bitfield. Only the bits
// material to this core are named; others pass through nego_flags
// unexamined.
type NegotiatedFlags uint32

const (
	// FlagBase is the legacy base feature set proposed unconditionally.
	FlagBase NegotiatedFlags = 0x000001FF
	// FlagStrongKey selects the 128-bit HMAC-MD5 session-key path
	// (skey128) over the legacy DES fallback (skey64).
	FlagStrongKey NegotiatedFlags = 0x00004000
	// FlagSecureRPC requests Netlogon SSP (schannel) message protection
	// on the established channel. Negotiation itself never uses it.
	FlagSecureRPC NegotiatedFlags = 0x40000000
)

// channelState is the negotiation state machine's state.
type channelState int

const (
	stateIdle channelState = iota
	stateBound
	stateChallenged
	stateAuthenticated
	stateClosed
)

// Channel is the credential chain: a single-writer resource owned by the
// caller that established it. No two goroutines may drive the same
// Channel concurrently. mu guards the channel's fields during each step
// (authenticator setup, reply validation, teardown) but is not held while
// an RPC is in flight, so concurrent calls on one Channel are not
// serialized against each other and can interleave their chain updates.
type Channel struct {
	mu sync.Mutex

	state   channelState
	binding Binding

	serverUNC      string
	clientHostname string

	sessionKey SessionKey
	nego       NegotiatedFlags

	clientStoredCredential [8]byte
	serverStoredCredential [8]byte

	valid bool

	policy GlobalPolicy
	logger Logger

	maxMitigationAttempts int
}

// Valid reports whether the channel has completed negotiation and not
// since been invalidated.
func (c *Channel) Valid() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.valid
}

// NegotiatedFlagsValue returns the server-intersected flag set from the last
// successful Authenticate2.
func (c *Channel) NegotiatedFlagsValue() NegotiatedFlags {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nego
}

// Negotiate drives Idle → Bound → Challenged → Authenticated: it binds to
// the server named by cfg.FQDNDomain, runs ServerReqChallenge then ServerAuthenticate2, and
// returns an established Channel or an error. It is the only constructor
// for a valid Channel.
func Negotiate(ctx context.Context, transport Transport, cfg *Config, policy GlobalPolicy) (*Channel, error) {
	cfg.setDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	serverUNC := ServerUNC(cfg.FQDNDomain)

	bindCtx, cancel := context.WithTimeout(ctx, cfg.ConnTimeout)
	defer cancel()

	if cfg.Logger != nil {
		cfg.Logger.Printf("netlogon: binding to %s", serverUNC)
	}

	binding, err := transport.Bind(bindCtx, serverUNC, cfg.NBDomain)
	if err != nil {
		if cfg.Logger != nil {
			cfg.Logger.Printf("netlogon: bind to %s failed: %v", serverUNC, err)
		}
		return nil, unsuccessful("negotiate", ErrTransportFailure)
	}

	c := &Channel{
		state:                 stateBound,
		binding:               binding,
		serverUNC:             serverUNC,
		clientHostname:        cfg.NetBIOSHostname,
		policy:                policy,
		logger:                cfg.Logger,
		maxMitigationAttempts: cfg.MaxMitigationAttempts,
	}

	if err := c.negotiateLocked(ctx, cfg); err != nil {
		c.state = stateClosed
		_ = binding.Release(ctx)
		return nil, err
	}

	if cfg.SeqNumNotifier != nil {
		cfg.SeqNumNotifier()
	}

	return c, nil
}

func (c *Channel) negotiateLocked(ctx context.Context, cfg *Config) error {
	clientChallenge, err := sampleMitigatedNonce(c.maxMitigationAttempts, c.logger, randomNonce8)
	if err != nil {
		return unsuccessful("negotiate", err)
	}

	reqReply, err := c.binding.ReqChallenge(ctx, ReqChallengeArgs{
		ServerUNC:       c.serverUNC,
		ClientHostname:  c.clientHostname,
		ClientChallenge: clientChallenge,
	})
	if err != nil {
		return unsuccessful("ServerReqChallenge", ErrTransportFailure)
	}
	if reqReply.Status != StatusSuccess {
		return unsuccessful("ServerReqChallenge", wrapRemoteStatus("ServerReqChallenge", reqReply.Status))
	}
	c.state = stateChallenged
	serverChallenge := reqReply.ServerChallenge

	proposedFlags := FlagBase | FlagStrongKey
	if c.policy.UseSecureRPC {
		proposedFlags |= FlagSecureRPC
	}
	strongKey := proposedFlags&FlagStrongKey != 0

	// deriveSessionKey zeroes the password it's handed, so hand it a copy
	// scoped to this derivation. cfg.MachinePassword itself lives on
	// until the caller rotates or discards it.
	passwordCopy := append([]byte(nil), cfg.MachinePassword...)
	sessionKey, err := deriveSessionKey(passwordCopy, strongKey, clientChallenge, serverChallenge)
	if err != nil {
		return unsuccessful("negotiate", err)
	}

	clientCredential, err := genCredentials(sessionKey, clientChallenge, 0, false)
	if err != nil {
		return unsuccessful("negotiate", err)
	}
	expectedServerCredential, err := genCredentials(sessionKey, serverChallenge, 0, false)
	if err != nil {
		return unsuccessful("negotiate", err)
	}

	authReply, err := c.binding.Authenticate2(ctx, Authenticate2Args{
		ServerUNC:        c.serverUNC,
		AccountName:      AccountName(c.clientHostname),
		AccountType:      AccountTypeWkstaTrust,
		ClientHostname:   c.clientHostname,
		ClientCredential: clientCredential,
		ProposedFlags:    uint32(proposedFlags),
	})
	if err != nil {
		return unsuccessful("ServerAuthenticate2", ErrTransportFailure)
	}
	if authReply.Status != StatusSuccess {
		return unsuccessful("ServerAuthenticate2", wrapRemoteStatus("ServerAuthenticate2", authReply.Status))
	}

	if !credentialsEqual(authReply.ServerCredential, expectedServerCredential) {
		return unsuccessful("ServerAuthenticate2", ErrCredentialMismatch)
	}

	c.sessionKey = sessionKey
	c.nego = NegotiatedFlags(authReply.NegotiateFlags)
	c.clientStoredCredential = clientCredential
	c.serverStoredCredential = authReply.ServerCredential
	c.state = stateAuthenticated
	c.valid = true

	if c.logger != nil {
		c.logger.Printf("netlogon: negotiated channel with %s, flags=0x%08x, strongKey=%v",
			c.serverUNC, uint32(c.nego), strongKey)
	}

	return nil
}

// setupAuthenticator builds the outgoing half of the credential chain for
// one call: advance the stored client seed by timestamp, derive its
// credential (resampling the timestamp on a mitigation-predicate miss),
// and return the Authenticator to attach to the call. The caller supplies
// the timestamp generator so tests can drive deterministic sequences.
func (c *Channel) setupAuthenticator(nextTimestamp func(attempt int) uint32) (Authenticator, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.valid {
		return Authenticator{}, ErrChannelInvalid
	}

	var finalTimestamp uint32
	var advanced [8]byte

	cred, err := retryMitigatedCredential(c.maxMitigationAttempts, c.logger, func(attempt int) ([8]byte, error) {
		ts := nextTimestamp(attempt)
		a0, a1 := splitLE32Pair(c.clientStoredCredential)
		advanced = joinLE32Pair(a0+ts, a1)
		finalTimestamp = ts
		return genCredentials(c.sessionKey, advanced, 0, true)
	})
	if err != nil {
		return Authenticator{}, err
	}

	c.clientStoredCredential = advanced
	return Authenticator{Credential: cred, Timestamp: finalTimestamp}, nil
}

// validateChain checks the incoming half of the credential chain for one
// call: advance the stored server seed by the same timestamp used for the
// outgoing call, compute the expected credential, and compare against the
// reply. A mismatch invalidates the channel.
func (c *Channel) validateChain(timestamp uint32, reply Authenticator) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.valid {
		return ErrChannelInvalid
	}

	a0, a1 := splitLE32Pair(c.serverStoredCredential)
	advanced := joinLE32Pair(a0+timestamp, a1)

	expected, err := genCredentials(c.sessionKey, advanced, 0, false)
	if err != nil {
		c.valid = false
		return err
	}

	if !credentialsEqual(expected, reply.Credential) {
		c.valid = false
		if c.logger != nil {
			c.logger.Printf("netlogon: validate_chain mismatch, invalidating channel")
		}
		return ErrCredentialMismatch
	}

	c.serverStoredCredential = advanced
	return nil
}

// Call drives one authenticated RPC through the credential chain: builds
// the request authenticator, issues the call, and validates the reply's
// authenticator before returning. A transport failure (including a
// cancelled in-flight call) or a reply-authenticator mismatch invalidates
// the channel and the caller must re-negotiate; such a call is never
// partially recovered. A non-success status from the DC is returned as a
// RemoteStatusError and leaves the channel valid.
func (c *Channel) Call(ctx context.Context, opnum Opnum, body []byte, clock func() uint32) (AuthenticatedCallReply, error) {
	auth, err := c.setupAuthenticator(func(attempt int) uint32 {
		return clock() + uint32(attempt-1)
	})
	if err != nil {
		return AuthenticatedCallReply{}, err
	}

	c.mu.Lock()
	binding := c.binding
	c.mu.Unlock()

	reply, err := binding.Call(ctx, AuthenticatedCallArgs{Opnum: opnum, Auth: auth, Body: body})
	if err != nil {
		c.invalidate()
		return AuthenticatedCallReply{}, unsuccessful("authenticated call", ErrTransportFailure)
	}
	if reply.Status != StatusSuccess {
		return reply, wrapRemoteStatus("authenticated call", reply.Status)
	}

	if err := c.validateChain(auth.Timestamp, reply.ReturnAuth); err != nil {
		return reply, err
	}

	return reply, nil
}

func (c *Channel) invalidate() {
	c.mu.Lock()
	c.valid = false
	c.mu.Unlock()
}

// Close tears down the RPC binding and invalidates the channel. Safe to
// call more than once.
func (c *Channel) Close(ctx context.Context) error {
	c.mu.Lock()
	binding := c.binding
	wasClosed := c.state == stateClosed
	c.state = stateClosed
	c.valid = false
	c.sessionKey.Zero()
	c.mu.Unlock()

	if wasClosed || binding == nil {
		return nil
	}
	return binding.Release(ctx)
}
