// Package session provides Redis-backed persistence for opaque bearer
// sessions.
//
// # Keys
//
// A session is stored under <prefix>:<sha256(token)>; the bearer token itself
// never reaches Redis. Each identity has an index set <prefix>:u:<userID>
// listing its session ids so all sessions can be revoked together.
//
// # Expiry
//
// Redis TTL bounds storage, but validity is decided by ExpiresAt against the
// store's clock. A session found expired on lookup is deleted and reported as
// [ErrNotFound]. There is no background sweep.
//
// # What this package must NOT do
//
//   - Import the root package.
//   - Resolve identities or make authorization decisions.
//   - Store plaintext tokens.
package session
