package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	n, err := ParseAmount("0")
	require.NoError(t, err)
	assert.Equal(t, "0", n.String())

	n, err = ParseAmount("1000000000000000000")
	require.NoError(t, err)
	assert.Equal(t, "1000000000000000000", n.String())

	// Values past uint64
	n, err = ParseAmount("340282366920938463463374607431768211456")
	require.NoError(t, err)
	assert.Equal(t, "340282366920938463463374607431768211456", n.String())

	// Surrounding whitespace is tolerated
	n, err = ParseAmount("  42 ")
	require.NoError(t, err)
	assert.Equal(t, "42", n.String())
}

func TestParseAmountRejects(t *testing.T) {
	for _, s := range []string{"", "  ", "-1", "1.5", "0x10", "1e18", "abc", "10 000"} {
		_, err := ParseAmount(s)
		assert.ErrorIs(t, err, ErrValidation, "input %q", s)
	}
}

func TestParseAmountOrZero(t *testing.T) {
	assert.Equal(t, "0", ParseAmountOrZero("").String())
	assert.Equal(t, "0", ParseAmountOrZero("garbage").String())
	assert.Equal(t, "123", ParseAmountOrZero("123").String())
	// Stored negatives pass through; boundary validation already ran
	assert.Equal(t, "-5", ParseAmountOrZero("-5").String())
}
