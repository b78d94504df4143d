// Package middleware adapts sias.Engine to net/http: session cookies, the
// session guard, role gates, and client IP capture.
//
// # Guards
//
//   - [RequireSession] validates the session_token cookie (or a Bearer
//     header) and attaches the principal to the request context.
//   - [RequireRole] admits only principals holding exactly one of the
//     listed roles.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. Session
// validation and every access decision beyond the role gate are made by the
// Engine.
//
// # What this package must NOT do
//
//   - Read or write Redis or SQL directly.
//   - Log request bodies or tokens.
package middleware
