// Package middleware adapts selfauth to net/http.
//
// # Guards
//
//   - [Guard] validates the bearer token through Engine.Authenticate and
//     stores the identity in the request context.
//   - [RequireAdmin] rejects non-admin identities; mount it after Guard.
//   - [ClientInfo] records caller IP and User-Agent for session records.
//
// Errors are written as JSON by [WriteError] using the engine's public
// messages. The package makes no authentication decisions of its own.
package middleware
