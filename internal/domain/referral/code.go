package referral

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"
)

const (
	CodePrefix = "REF-"
	CodeLength = 6
	// CodeAlphabet leaves out I, L, O, 0 and 1.
	CodeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"
)

// Generator produces candidate codes. Uniqueness is the store's job.
type Generator interface {
	Generate() (string, error)
}

// RandomGenerator draws suffixes from CodeAlphabet using Source.
type RandomGenerator struct {
	Source io.Reader
}

// NewRandomGenerator uses crypto/rand.
func NewRandomGenerator() *RandomGenerator {
	return &RandomGenerator{Source: rand.Reader}
}

func (g *RandomGenerator) Generate() (string, error) {
	src := g.Source
	if src == nil {
		src = rand.Reader
	}
	n := len(CodeAlphabet)
	// reject bytes above the largest multiple of n to avoid modulo bias
	limit := 256 - 256%n

	var b strings.Builder
	b.WriteString(CodePrefix)
	buf := make([]byte, 1)
	for b.Len() < len(CodePrefix)+CodeLength {
		if _, err := io.ReadFull(src, buf); err != nil {
			return "", fmt.Errorf("reading random source: %w", err)
		}
		if int(buf[0]) >= limit {
			continue
		}
		b.WriteByte(CodeAlphabet[int(buf[0])%n])
	}
	return b.String(), nil
}

// ValidCode reports whether code has the issued format.
func ValidCode(code string) bool {
	if !strings.HasPrefix(code, CodePrefix) || len(code) != len(CodePrefix)+CodeLength {
		return false
	}
	for _, c := range code[len(CodePrefix):] {
		if !strings.ContainsRune(CodeAlphabet, c) {
			return false
		}
	}
	return true
}

// NormalizeCode upper-cases user input and restores a missing prefix.
func NormalizeCode(input string) string {
	c := strings.ToUpper(strings.TrimSpace(input))
	if !strings.HasPrefix(c, CodePrefix) {
		c = CodePrefix + c
	}
	return c
}
