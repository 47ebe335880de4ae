// Package sluggen provides random token generation over fixed alphabets.
// Generators should be safe for concurrent use.
package sluggen

import (
	"crypto/rand"
	"errors"
)

const (
	// URLSafe is the 64-character alphabet used for short codes.
	URLSafe = "useandom-26T198340PX75pxJACKVERYMINDBUSHWOLF_GQZbfghjklqvwyzrict"
	// Digits is used for human-facing numeric labels.
	Digits = "0123456789"
)

var errEmptyAlphabet = errors.New("alphabet must have between 2 and 256 characters")

// Generator generates random tokens.
// Implementations should be safe for concurrent use.
type Generator interface {
	Generate(length int) (string, error)
}

// alphabetGenerator draws characters uniformly from its alphabet.
// It is safe for concurrent use.
type alphabetGenerator struct {
	alphabet string
	mask     byte
}

// NewURLSafe returns a generator over the URLSafe alphabet.
func NewURLSafe() Generator {
	g, _ := NewAlphabet(URLSafe)
	return g
}

// NewDigits returns a generator over the decimal digits.
func NewDigits() Generator {
	g, _ := NewAlphabet(Digits)
	return g
}

// NewAlphabet returns a generator over the given alphabet.
func NewAlphabet(alphabet string) (Generator, error) {
	if len(alphabet) < 2 || len(alphabet) > 256 {
		return nil, errEmptyAlphabet
	}

	// Smallest all-ones mask covering the alphabet; bytes above it are
	// rejected so every character is equally likely.
	mask := byte(1)
	for int(mask) < len(alphabet)-1 {
		mask = mask<<1 | 1
	}

	return &alphabetGenerator{alphabet: alphabet, mask: mask}, nil
}

// Generate generates a random string of the specified length.
func (g *alphabetGenerator) Generate(length int) (string, error) {
	if length <= 0 {
		return "", errors.New("length must be positive")
	}

	out := make([]byte, 0, length)
	buf := make([]byte, length*2)

	for len(out) < length {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			idx := int(b & g.mask)
			if idx >= len(g.alphabet) {
				continue
			}
			out = append(out, g.alphabet[idx])
			if len(out) == length {
				break
			}
		}
	}

	return string(out), nil
}
