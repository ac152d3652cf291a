package helpers

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// PasswordCost is the bcrypt work factor for newly hashed passwords.
var PasswordCost = bcrypt.DefaultCost

// MaxPasswordBytes is the longest input bcrypt hashes without truncation.
const MaxPasswordBytes = 72

var ErrPasswordTooLong = errors.New("password exceeds 72 bytes")

func HashPassword(plain string) (string, error) {
	if len(plain) > MaxPasswordBytes {
		return "", ErrPasswordTooLong
	}
	b, err := bcrypt.GenerateFromPassword([]byte(plain), PasswordCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// PasswordMatches reports whether plain hashes to hash. An empty hash never matches.
func PasswordMatches(hash, plain string) bool {
	return hash != "" && bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
