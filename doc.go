// Package netlogon implements the client side of the Microsoft Netlogon
// (NRPC) secure-channel negotiation and credential-chain protocol used by
// a member server to establish a cryptographically authenticated trust
// channel with a domain controller.
//
// # Overview
//
// netlogon drives the ServerReqChallenge/ServerAuthenticate2 handshake,
// derives the session key with either the legacy DES-based skey64 or the
// strong-key HMAC-MD5-based skey128 algorithm, and maintains the rolling
// credential chain that every subsequent authenticated call (including
// ServerPasswordSet) must advance. It does not implement the RPC
// transport, NDR marshaling, or name resolution; those are supplied by an
// implementation of the Transport interface.
//
// # Basic Usage
//
//	cfg := &netlogon.Config{
//	    NetBIOSHostname: "WORKSTATION1",
//	    NBDomain:        "CORP",
//	    FQDNDomain:      "dc01.corp.example.com",
//	    MachinePassword: machinePassword,
//	}
//	policy := netlogon.NewGlobalPolicy(0)
//
//	channel, err := netlogon.Negotiate(ctx, transport, cfg, policy)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer channel.Close(ctx)
//
// # Authenticated calls
//
// Once negotiated, every further call to the domain controller goes
// through the channel's credential chain:
//
//	reply, err := channel.Call(ctx, netlogon.OpServerPasswordSet, body, clockFunc)
//
// # Password rotation
//
//	newPassword, err := channel.ChangeMachinePassword(ctx, currentPassword, clockFunc)
//	if err == nil {
//	    // persist newPassword to the configuration store
//	}
//
// # Non-goals
//
// This package does not implement the server side of Netlogon, does not
// support domain controllers that predate the strong-key mitigation path,
// and is not a general-purpose NRPC library: only the three opnums the
// secure-channel handshake and password rotation need are modeled.
package netlogon
