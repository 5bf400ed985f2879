package utils

import (
	"golang.org/x/crypto/bcrypt"
)

// HashSecret hashes a plain passphrase using bcrypt.
func HashSecret(secret string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	return string(bytes), err
}

// CheckSecret compares a plain passphrase with a bcrypt hash.
func CheckSecret(plain, hashed string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain))
	return err == nil
}
