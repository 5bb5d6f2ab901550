package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// NewOTP returns a random numeric one-time code of the given length,
// zero-padded. Used for password reset codes.
func NewOTP(digits int) (string, error) {
	max := big.NewInt(1)
	for i := 0; i < digits; i++ {
		max.Mul(max, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", digits, n), nil
}
