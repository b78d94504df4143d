// Package httpapi exposes the engine over JSON HTTP routes registered on a
// gorilla/mux router.
//
// Engine errors are translated with [sias.Classify] and
// [sias.PublicMessage]; internal details never reach the response body.
// Session and pending-MFA tokens travel in HttpOnly cookies managed by
// [middleware.Cookies].
package httpapi
