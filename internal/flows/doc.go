// Package flows contains pure-function orchestrators for the sign-in, MFA,
// password reset, session validation, and sign-out operations.
//
// Each flow function (RunSignIn, RunValidateMFA, RunConfirmPasswordReset,
// etc.) accepts a typed dependency struct and returns results without
// side-effects beyond those dependencies. Flows are unit tested with plain
// function fakes and keep the Engine type thin.
//
// # Architecture boundaries
//
// Flow functions coordinate calls to the identity store, session store,
// pending-token signer, limiters, audit emitter, and metrics. They do NOT own
// any of these resources; ownership stays with the Engine.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import sias (to avoid import cycles).
//   - Perform I/O directly. All I/O is mediated through dependency functions.
package flows
