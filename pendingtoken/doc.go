// Package pendingtoken issues and verifies the short-lived token that bridges
// a password-verified login and its MFA verification.
//
// The wire format is three dot-separated parts:
//
//	<payload>.<unix-millis>.<hex HMAC-SHA256(payload + "." + unix-millis)>
//
// Verification checks the part count, then the signature, then the age. The
// signing key and clock are injected; there is no package-level secret.
package pendingtoken
