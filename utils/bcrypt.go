package utils

import "golang.org/x/crypto/bcrypt"

// HashPin hashes a PIN; cost <= 0 selects bcrypt.DefaultCost.
func HashPin(pin string, cost int) (string, error) {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(pin), cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// ComparePin is constant-time; a nil error means the PIN matched.
func ComparePin(hashed string, pin string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(pin))
}
