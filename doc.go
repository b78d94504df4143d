// Package sias is the access-control and authentication core of a
// university records portal.
//
// [Engine] combines five access models (mandatory labels, owner-granted
// shares, role hierarchy, time windows and attribute matching) with the
// credential lifecycle: sign-in with lockout, TOTP second factor with
// single-use backup codes, opaque Redis-backed sessions, password reset
// and an append-only audit trail whose details are sealed with AES-GCM.
//
// # Architecture boundaries
//
// sias is the public surface. It exposes [Engine], [Builder], [Config], the
// store interfaces the host implements, and value types. Sign-in, MFA and
// reset state machines live in internal/flows and receive their
// collaborators as function sets; Redis stores, limiters and audit dispatch
// live under internal/ and are never exported.
//
// Access decisions are pure functions in package access. The engine composes
// them per operation; MAC is always part of an [access.All] so that a share
// never lowers a clearance requirement.
//
// # Errors
//
// Operations return the sentinel errors declared in errors.go, possibly
// wrapped. [Classify] maps any returned error to the caller-facing kind and
// [PublicMessage] to the text safe to show. Internal failures are logged in
// full through the configured zap logger.
package sias
