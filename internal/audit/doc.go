// Package audit dispatches security events (logins, resets, 2FA changes,
// admin actions) to a pluggable sink without blocking request paths.
//
// The Engine decides which events to emit; this package only buffers and
// delivers them.
package audit
