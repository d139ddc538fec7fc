package netlogon

import (
	"context"
	"sync"
	"time"
)

// MockDC provides an in-memory domain-controller simulation for testing
// the negotiation state machine and credential chain without a network.
// It can be scripted to emulate a well-behaved DC (computing its own
// credentials against a known machine password) or to inject specific
// failures and perturbed replies, and it records every call for
// verification.
type MockDC struct {
	mu sync.Mutex

	// MachinePassword is the password the mock DC believes is correct;
	// set this to the same value the Config under test uses so a
	// well-behaved negotiation succeeds.
	MachinePassword []byte

	// StrongKey controls which session-key derivation the mock DC uses
	// to compute its own credentials; it should match the flags the
	// client is expected to propose.
	StrongKey bool

	// PerturbServerCredential, when true, XORs the first byte of the
	// server credential before returning it from Authenticate2, used to
	// exercise the CredentialMismatch path.
	PerturbServerCredential bool

	// BindErr, ReqChallengeErr, AuthenticateErr, PasswordSetErr, CallErr
	// are injected as transport-level failures when non-nil.
	BindErr         error
	ReqChallengeErr error
	AuthenticateErr error
	PasswordSetErr  error
	CallErr         error

	// ReqChallengeStatus, AuthenticateStatus, PasswordSetStatus, CallStatus
	// are returned as the RPC reply's NT status; StatusSuccess unless set.
	ReqChallengeStatus NTStatus
	AuthenticateStatus NTStatus
	PasswordSetStatus  NTStatus
	CallStatus         NTStatus

	// PerturbAuthReply, when true, corrupts the return authenticator on
	// authenticated calls and ServerPasswordSet, exercising validate_chain
	// failure.
	PerturbAuthReply bool

	operations []MockOperation

	clientChallenge [8]byte
	serverChallenge [8]byte
	sessionKey      SessionKey
	serverSeed      [8]byte
	clientSeed      [8]byte
}

// MockOperation records one call made against the mock DC.
type MockOperation struct {
	Op   string
	Time time.Time
}

// NewMockDC creates a mock DC ready to accept a negotiation.
func NewMockDC(machinePassword []byte) *MockDC {
	return &MockDC{
		MachinePassword: append([]byte(nil), machinePassword...),
		StrongKey:       true,
	}
}

func (m *MockDC) record(op string) {
	m.operations = append(m.operations, MockOperation{Op: op, Time: time.Now()})
}

// Operations returns a copy of the recorded call log.
func (m *MockDC) Operations() []MockOperation {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockOperation, len(m.operations))
	copy(out, m.operations)
	return out
}

// Bind implements Transport.
func (m *MockDC) Bind(ctx context.Context, server, domain string) (Binding, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("Bind")
	if m.BindErr != nil {
		return nil, m.BindErr
	}
	return &mockBinding{dc: m}, nil
}

type mockBinding struct {
	dc *MockDC
}

func (b *mockBinding) ReqChallenge(ctx context.Context, args ReqChallengeArgs) (ReqChallengeReply, error) {
	m := b.dc
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("ServerReqChallenge")

	if m.ReqChallengeErr != nil {
		return ReqChallengeReply{}, m.ReqChallengeErr
	}
	if m.ReqChallengeStatus != StatusSuccess {
		return ReqChallengeReply{Status: m.ReqChallengeStatus}, nil
	}

	m.clientChallenge = args.ClientChallenge

	challenge, err := randomNonce8()
	if err != nil {
		return ReqChallengeReply{}, err
	}
	m.serverChallenge = challenge
	return ReqChallengeReply{ServerChallenge: challenge, Status: StatusSuccess}, nil
}

func (b *mockBinding) Authenticate2(ctx context.Context, args Authenticate2Args) (Authenticate2Reply, error) {
	m := b.dc
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("ServerAuthenticate2")

	if m.AuthenticateErr != nil {
		return Authenticate2Reply{}, m.AuthenticateErr
	}
	if m.AuthenticateStatus != StatusSuccess {
		return Authenticate2Reply{Status: m.AuthenticateStatus}, nil
	}

	strongKey := m.StrongKey
	passwordCopy := append([]byte(nil), m.MachinePassword...)
	sessionKey, err := deriveSessionKey(passwordCopy, strongKey, m.clientChallenge, m.serverChallenge)
	if err != nil {
		return Authenticate2Reply{}, err
	}
	m.sessionKey = sessionKey

	serverCred, err := genCredentials(sessionKey, m.serverChallenge, 0, false)
	if err != nil {
		return Authenticate2Reply{}, err
	}
	if m.PerturbServerCredential {
		serverCred[0] ^= 0xFF
	}

	m.clientSeed = args.ClientCredential
	m.serverSeed = serverCred

	negFlags := FlagBase
	if strongKey {
		negFlags |= FlagStrongKey
	}
	return Authenticate2Reply{
		ServerCredential: serverCred,
		NegotiateFlags:   uint32(negFlags),
		Status:           StatusSuccess,
	}, nil
}

func (b *mockBinding) replyAuth(timestamp uint32) (Authenticator, error) {
	m := b.dc
	a0, a1 := splitLE32Pair(m.serverSeed)
	advanced := joinLE32Pair(a0+timestamp, a1)
	cred, err := genCredentials(m.sessionKey, advanced, 0, false)
	if err != nil {
		return Authenticator{}, err
	}
	if m.PerturbAuthReply {
		cred[0] ^= 0xFF
	}
	m.serverSeed = advanced
	return Authenticator{Credential: cred, Timestamp: timestamp}, nil
}

func (b *mockBinding) Call(ctx context.Context, args AuthenticatedCallArgs) (AuthenticatedCallReply, error) {
	m := b.dc
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("AuthenticatedCall")

	if m.CallErr != nil {
		return AuthenticatedCallReply{}, m.CallErr
	}
	if m.CallStatus != StatusSuccess {
		return AuthenticatedCallReply{Status: m.CallStatus}, nil
	}

	auth, err := b.replyAuth(args.Auth.Timestamp)
	if err != nil {
		return AuthenticatedCallReply{}, err
	}
	return AuthenticatedCallReply{ReturnAuth: auth, Status: StatusSuccess}, nil
}

func (b *mockBinding) PasswordSet(ctx context.Context, args PasswordSetArgs) (PasswordSetReply, error) {
	m := b.dc
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("ServerPasswordSet")

	if m.PasswordSetErr != nil {
		return PasswordSetReply{}, m.PasswordSetErr
	}
	if m.PasswordSetStatus != StatusSuccess {
		return PasswordSetReply{Status: m.PasswordSetStatus}, nil
	}

	auth, err := b.replyAuth(args.Auth.Timestamp)
	if err != nil {
		return PasswordSetReply{}, err
	}
	m.MachinePassword = make([]byte, 16)
	copy(m.MachinePassword, args.OWFPassword[:])
	return PasswordSetReply{ReturnAuth: auth, Status: StatusSuccess}, nil
}

func (b *mockBinding) BindSecure(ctx context.Context, sessionKey []byte) error {
	return nil
}

func (b *mockBinding) Release(ctx context.Context) error {
	return nil
}
