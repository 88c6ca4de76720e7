// Package internal holds helpers private to selfauth: opaque token
// generation and digesting.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - flows: pure-function orchestrators for every Engine operation
//   - logging: structured logger interface and slog adapter
//   - config: server configuration loading
//   - httpapi: JSON HTTP handlers for the bundled server
package internal
