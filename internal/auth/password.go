package auth

import "golang.org/x/crypto/bcrypt"

// passwordCost is the bcrypt work factor for stored hashes.
const passwordCost = 10

// HashPassword returns a salted bcrypt hash of secret.
func HashPassword(secret string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(secret), passwordCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// VerifyPassword reports whether secret matches hash. Malformed hashes and
// oversized secrets are treated as a mismatch.
func VerifyPassword(secret, hash string) bool {
	if secret == "" || hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) == nil
}
