// Package internal holds helpers shared by the engine and its sub-packages:
// opaque token generation, token hashing and backup code handling.
//
// # Sub-packages
//
//   - audit: AES-GCM sealing and the async audit dispatcher
//   - flows: the login, logout, session validation and reset orchestrators
//   - limiters: Redis counters for MFA, password reset and signup
//   - stores: the short-lived password reset token store
//
// Nothing here may appear in the exported API of the module.
package internal
