// Package jwt mints and validates the short-lived bearer tokens handed out at
// login. Tokens carry only sub, iat and exp (plus optional iss and aud); they
// are never stored and stay valid until they expire.
package jwt
