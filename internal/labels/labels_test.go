package labels

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	digits := Default(10)
	assert.Equal(t, "0", digits[0])
	assert.Equal(t, "9", digits[9])

	letters := Default(27)
	assert.Equal(t, "N/A", letters[0])
	assert.Equal(t, "A", letters[1])
	assert.Equal(t, "Z", letters[26])

	assert.Equal(t, "46", Default(47)[46])
	assert.Empty(t, Default(0))
}

func TestParseMapping(t *testing.T) {
	names, err := ParseMapping(strings.NewReader("0 48\n1 49\n\n3 65\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"0", "1", "2", "A"}, names)

	// The letters split lists upper and lower case codes, the first one names the class.
	names, err = ParseMapping(strings.NewReader("1 65 97\n2 66 98\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"0", "A", "B"}, names)

	_, err = ParseMapping(strings.NewReader("0\n"))
	assert.Error(t, err)
	_, err = ParseMapping(strings.NewReader("x 48\n"))
	assert.Error(t, err)
}
