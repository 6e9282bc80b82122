package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/rand"
)

// GenerateVerificationCode generates a random 6-digit verification code
func GenerateVerificationCode() string {
	code := ""
	for range 6 {
		code += fmt.Sprintf("%d", rand.Intn(10))
	}
	return code
}

// HashVerificationCode returns the hex-encoded SHA-256 of a code. Only the
// hash is ever persisted.
func HashVerificationCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}
