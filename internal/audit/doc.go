// Package audit records security-relevant actions.
//
// # Components
//
//   - [Event] is what callers emit: action tag, optional identity, resource, IP and details.
//   - [Dispatcher] relays events to a [Sink], either inline or through a buffered goroutine.
//   - [EncryptingSink] seals details with [Cipher] and appends a [Record] to the store.
//   - [Cipher] is AES-256-GCM with a 16-byte IV, stored as hex JSON {"iv","data","tag"}.
//
// # Failure semantics
//
// Emitting never fails the caller. Store and encryption errors are handed to
// EncryptingSink.OnError. Reading uses [Cipher.Open], which degrades to plain
// JSON and then to an empty object rather than failing.
//
// # What this package must NOT do
//
//   - Decide which events to emit. That belongs to the engine and flows.
//   - Import the root package or any sibling internal package.
//   - Return ciphertext as decrypted details.
package audit
