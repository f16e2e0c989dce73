package auth

import "golang.org/x/crypto/bcrypt"

// HashSecret returns a bcrypt hash of a short-lived secret such as a
// verification code. cost <= 0 uses bcrypt.DefaultCost.
func HashSecret(plain string, cost int) (string, error) {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	return string(b), err
}

// CheckSecret compares a bcrypt hash against the candidate in constant time.
func CheckSecret(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
