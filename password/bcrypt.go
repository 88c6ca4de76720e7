package password

import (
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Digests written by the previous backend use bcrypt. They still verify so
// existing accounts can sign in, and are rehashed on the next login.
var bcryptPrefixes = []string{"$2a$", "$2b$", "$2y$"}

func isBcrypt(digest string) bool {
	for _, p := range bcryptPrefixes {
		if strings.HasPrefix(digest, p) {
			return true
		}
	}
	return false
}

func verifyBcrypt(password, digest string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(password)) == nil
}
