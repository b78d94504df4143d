// Package stores provides Redis-backed, short-lived record stores for
// security-sensitive flows. Today that is the password reset token store.
//
// # Design
//
// Records are binary-encoded with a version byte and stored with a TTL under
// the SHA-256 of the token. Consume uses WATCH/MULTI with retry on contention
// so a token is redeemed at most once. Expiry is also checked against the
// store clock on every read, so a row Redis has not yet evicted is still
// treated as absent.
//
// # What this package must NOT do
//
//   - Import the root package or any sibling internal package.
//   - Store plaintext tokens.
//   - Generate tokens or make authentication decisions.
package stores
