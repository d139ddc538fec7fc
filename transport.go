package netlogon

import "context"

// NTStatus is an NT status code as returned by the domain controller. Zero
// (StatusSuccess) is the only success value; anything else is propagated
// verbatim as a RemoteStatusError.
type NTStatus uint32

// Status codes material to this package. The DC may return others; they
// pass through RemoteStatusError uninterpreted.
const (
	StatusSuccess            NTStatus = 0x00000000
	StatusAccessDenied       NTStatus = 0xC0000022
	StatusNoTrustSamAccount  NTStatus = 0xC000018E
	StatusNoLogonServers     NTStatus = 0xC000005E
	StatusInvalidParameter   NTStatus = 0xC000000D
)

func (s NTStatus) String() string {
	switch s {
	case StatusSuccess:
		return "STATUS_SUCCESS"
	case StatusAccessDenied:
		return "STATUS_ACCESS_DENIED"
	case StatusNoTrustSamAccount:
		return "STATUS_NO_TRUST_SAM_ACCOUNT"
	case StatusNoLogonServers:
		return "STATUS_NO_LOGON_SERVERS"
	case StatusInvalidParameter:
		return "STATUS_INVALID_PARAMETER"
	default:
		return "STATUS_0x" + hex32(uint32(s))
	}
}

func hex32(v uint32) string {
	const digits = "0123456789ABCDEF"
	buf := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		buf[i] = digits[v&0xF]
		v >>= 4
	}
	return string(buf)
}

// Opnum identifies one of the three NRPC operations the core drives.
type Opnum uint16

const (
	OpServerReqChallenge  Opnum = 4
	OpServerAuthenticate2 Opnum = 15
	OpServerPasswordSet   Opnum = 6
)

// ReqChallengeArgs/Reply model NetrServerReqChallenge.
type ReqChallengeArgs struct {
	ServerUNC       string
	ClientHostname  string
	ClientChallenge [8]byte
}

type ReqChallengeReply struct {
	ServerChallenge [8]byte
	Status          NTStatus
}

// Authenticate2Args/Reply model NetrServerAuthenticate2.
type Authenticate2Args struct {
	ServerUNC        string
	AccountName      string // "HOSTNAME$"
	AccountType      uint16 // WKSTA_TRUST
	ClientHostname   string
	ClientCredential [8]byte
	ProposedFlags    uint32
}

type Authenticate2Reply struct {
	ServerCredential [8]byte
	NegotiateFlags   uint32
	Status           NTStatus
}

// PasswordSetArgs/Reply model NetrServerPasswordSet (opnum 6, the
// OWF-password variant this package uses).
type PasswordSetArgs struct {
	ServerUNC      string
	AccountName    string
	AccountType    uint16
	ClientHostname string
	Auth           Authenticator
	OWFPassword    [16]byte
}

type PasswordSetReply struct {
	ReturnAuth Authenticator
	Status     NTStatus
}

// AuthenticatedCallArgs/Reply model any other authenticated NRPC call made
// over an established channel (e.g. the SamLogon family layered above this
// package); the core only needs the authenticator envelope.
type AuthenticatedCallArgs struct {
	Opnum Opnum
	Auth  Authenticator
	Body  []byte
}

type AuthenticatedCallReply struct {
	ReturnAuth Authenticator
	Body       []byte
	Status     NTStatus
}

// WKSTA_TRUST account type, per MS-NRPC.
const AccountTypeWkstaTrust uint16 = 2

// Transport is everything the negotiation state machine and credential
// chain need from the RPC layer. The NDR-level encoding of arguments is
// the transport's concern; this package only ever produces and consumes
// the fixed-size fields above. Every method is a suspension point: it may
// block on the network and must respect ctx cancellation.
type Transport interface {
	// Bind opens an RPC binding to server with anonymous credentials.
	// Secure RPC message protection is never used for negotiation itself;
	// it may be applied to the session afterward if negotiated.
	Bind(ctx context.Context, server, domain string) (Binding, error)
}

// Binding is a bound RPC handle scoped to one negotiation/channel. A
// Binding is single-writer: the caller that owns a *Channel must not
// invoke its methods concurrently.
type Binding interface {
	ReqChallenge(ctx context.Context, args ReqChallengeArgs) (ReqChallengeReply, error)
	Authenticate2(ctx context.Context, args Authenticate2Args) (Authenticate2Reply, error)
	PasswordSet(ctx context.Context, args PasswordSetArgs) (PasswordSetReply, error)
	Call(ctx context.Context, args AuthenticatedCallArgs) (AuthenticatedCallReply, error)

	// BindSecure upgrades the binding to use Netlogon SSP message
	// protection once a session key is established. The core never calls
	// this itself; the SSP authenticator is an external collaborator, so
	// this exists only so a transport adapter can offer it to callers
	// above this package.
	BindSecure(ctx context.Context, sessionKey []byte) error

	// Release tears down the binding. Idempotent.
	Release(ctx context.Context) error
}
