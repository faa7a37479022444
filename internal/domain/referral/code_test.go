package referral

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRandomGenerator_Format(t *testing.T) {
	g := NewRandomGenerator()
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		code, err := g.Generate()
		require.NoError(t, err)
		assert.True(t, ValidCode(code), "generated %q", code)
		for _, bad := range "ILO01" {
			assert.NotContains(t, code[len(CodePrefix):], string(bad))
		}
		seen[code] = true
	}
	assert.Greater(t, len(seen), 190)
}

func TestRandomGenerator_DeterministicSource(t *testing.T) {
	// 0xFF is above the rejection limit and must be skipped.
	src := bytes.NewReader([]byte{0xFF, 0, 1, 2, 3, 4, 30})
	code, err := (&RandomGenerator{Source: src}).Generate()
	require.NoError(t, err)
	assert.Equal(t, "REF-ABCDE9", code)
}

func TestRandomGenerator_SourceError(t *testing.T) {
	_, err := (&RandomGenerator{Source: strings.NewReader("ab")}).Generate()
	assert.ErrorIs(t, err, io.EOF)
}

func TestValidCode(t *testing.T) {
	assert.True(t, ValidCode("REF-ABC234"))
	assert.False(t, ValidCode("REF-ABC23"))
	assert.False(t, ValidCode("REF-ABCO23"))
	assert.False(t, ValidCode("XYZ-ABC234"))
	assert.False(t, ValidCode("ref-abc234"))
}

func TestNormalizeCode(t *testing.T) {
	assert.Equal(t, "REF-ABC234", NormalizeCode(" ref-abc234 "))
	assert.Equal(t, "REF-ABC234", NormalizeCode("abc234"))
}
