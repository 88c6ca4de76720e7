// Package password hashes and verifies account passwords.
//
// # Output format
//
// New digests are argon2id in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// Digests produced with weaker parameters, and legacy bcrypt digests, still
// verify; [Argon2.NeedsUpgrade] reports them so the caller can rehash after
// the next successful login.
//
// # Architecture boundaries
//
// This package owns hashing and verification only. Password policy (length
// limits) is enforced by the Engine. Nothing here logs or stores passwords.
package password
