// Package password hashes credentials and validates candidate passwords
// against the portal's composition policy.
//
// # Hashing
//
// [Bcrypt] is the default hasher. [Argon2] encodes PHC strings:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// [Chain] hashes with its primary and verifies any hash one of its members
// recognises, so stored hashes keep working when the primary changes.
//
// # Policy
//
// [Validate] is pure. It reports every violated rule in a fixed order, a 0-4
// strength score from zxcvbn seeded with user-identifying strings, and the
// matching label.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords. Reuse history lives with the engine.
//   - Log plaintext passwords.
package password
