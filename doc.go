// Package selfauth is a self-service identity and session engine: password
// registration and login, an optional TOTP second factor, bearer tokens,
// opaque session tokens, password reset and magic-link sign-in, and a small
// set of admin operations with self-protection.
//
// Engine methods are safe to call from multiple goroutines once built
// through [Builder.Build].
//
// # Architecture boundaries
//
// selfauth owns credential verification and token lifecycle only. Records
// live behind [CredentialStore], sessions behind [SessionStore] and email
// delivery behind [Notifier]; implementations are in store/memory,
// store/sqlstore, session (Redis) and notify. Flow orchestration lives in
// internal/flows and is never exported.
//
// # Secrets
//
//   - Passwords are stored as argon2id digests; legacy bcrypt digests still
//     verify and are upgraded on the next login.
//   - Session, reset and magic-link tokens are 256-bit random strings. Stores
//     only ever receive their SHA-256 digests.
//   - Bearer tokens are never stored. Logout deletes sessions but does not
//     revoke bearer tokens; keep their TTL short.
//
// Nothing in this module logs passwords, raw tokens or TOTP secrets.
package selfauth
