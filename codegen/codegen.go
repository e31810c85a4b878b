// Package codegen provides short-code generation functionality.
// Generators should be safe for concurrent use.
package codegen

import (
	"errors"
	"math/rand/v2"
)

const (
	alphanumericChars = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// Generator generates short codes.
// Implementations should be safe for concurrent use.
type Generator interface {
	Generate(length int) (string, error)
}

// alphanumericGenerator implements Generator over the 62-character
// alphanumeric alphabet. Each position is drawn independently and
// uniformly. Codes are identifiers, not secrets, so a seeded PRNG is
// sufficient; collision handling belongs to the caller.
// It is safe for concurrent use.
type alphanumericGenerator struct{}

// NewAlphanumeric returns a new alphanumeric short-code generator.
func NewAlphanumeric() Generator {
	return &alphanumericGenerator{}
}

// Generate generates a random alphanumeric string of the specified length.
func (g *alphanumericGenerator) Generate(length int) (string, error) {
	if length <= 0 {
		return "", errors.New("length must be positive")
	}

	b := make([]byte, length)
	for i := range b {
		b[i] = alphanumericChars[rand.IntN(len(alphanumericChars))]
	}

	return string(b), nil
}
