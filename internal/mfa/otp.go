package mfa

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"io"
	"math/big"
)

// DefaultDigits is the length of an emailed 2FA code unless configured otherwise.
const DefaultDigits = 6

// CodeGenerator draws numeric 2FA codes from a cryptographically secure source.
type CodeGenerator struct {
	digits int
	rand   io.Reader
}

// NewCodeGenerator returns a generator for codes of the given length (DefaultDigits when digits <= 0).
func NewCodeGenerator(digits int) *CodeGenerator {
	if digits <= 0 {
		digits = DefaultDigits
	}
	return &CodeGenerator{digits: digits, rand: rand.Reader}
}

// Generate returns a code uniformly distributed over [10^(d-1), 10^d - 1], so it never has a leading zero
// (e.g. 100000–999999 for six digits).
func (g *CodeGenerator) Generate() (string, error) {
	low := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(g.digits-1)), nil)
	high := new(big.Int).Mul(low, big.NewInt(10))
	span := new(big.Int).Sub(high, low)
	n, err := rand.Int(g.rand, span)
	if err != nil {
		return "", fmt.Errorf("mfa: generate code: %w", err)
	}
	return n.Add(n, low).String(), nil
}

// CodeEqual reports whether provided equals stored exactly, in constant time.
func CodeEqual(provided, stored string) bool {
	return subtle.ConstantTimeCompare([]byte(provided), []byte(stored)) == 1
}
