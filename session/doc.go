// Package session is a Redis-backed selfauth.SessionStore.
//
// # Layout
//
// Each session is stored under <prefix>:s:<token digest> in a compact
// binary encoding (see [Encode]) with a TTL equal to its remaining
// lifetime. A set under <prefix>:u:<user id> indexes a user's digests so
// logout, password change and reset can delete them in one Lua call.
//
// Raw session tokens never reach Redis; keys carry only their SHA-256
// digests.
package session
