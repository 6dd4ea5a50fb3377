package otp

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// New returns a 6-digit numeric one-time code, uniformly random in
// [100000, 999999].
func New() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", fmt.Errorf("generate OTP: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}
