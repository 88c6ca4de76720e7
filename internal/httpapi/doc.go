// Package httpapi exposes the engine as a JSON HTTP API.
//
// Routes live under /api/auth, /api/2fa, /api/users and /api/admin. Errors
// are written by middleware.WriteError with the engine's public messages.
// /healthz and /metrics are served alongside.
package httpapi
