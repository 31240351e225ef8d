package prompt

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRead_Success(t *testing.T) {
	var out bytes.Buffer
	p := NewWithStreams(strings.NewReader("s3cret\n"), &out)

	value, err := p.Read("database password")

	require.NoError(t, err)
	assert.Equal(t, "s3cret", value)
	assert.Contains(t, out.String(), "database password")
}

func TestRead_TrimsWhitespace(t *testing.T) {
	var out bytes.Buffer
	p := NewWithStreams(strings.NewReader("  value  \n"), &out)

	value, err := p.Read("session secret")

	require.NoError(t, err)
	assert.Equal(t, "value", value)
}

func TestRead_EmptyValue(t *testing.T) {
	var out bytes.Buffer
	p := NewWithStreams(strings.NewReader("\n"), &out)

	_, err := p.Read("database password")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "must not be empty")
}

func TestRead_LastLineWithoutNewline(t *testing.T) {
	var out bytes.Buffer
	p := NewWithStreams(strings.NewReader("s3cret"), &out)

	value, err := p.Read("database password")

	require.NoError(t, err)
	assert.Equal(t, "s3cret", value)
}

func TestRead_ConsecutivePrompts(t *testing.T) {
	var out bytes.Buffer
	p := NewWithStreams(strings.NewReader("first\nsecond\n"), &out)

	one, err := p.ReadMasked("database password")
	require.NoError(t, err)
	two, err := p.Read("session secret")
	require.NoError(t, err)

	assert.Equal(t, "first", one)
	assert.Equal(t, "second", two)
}

func TestReadMasked_FallsBackOnNonTerminal(t *testing.T) {
	var out bytes.Buffer
	p := NewWithStreams(strings.NewReader("hidden\n"), &out)

	value, err := p.ReadMasked("session secret")

	require.NoError(t, err)
	assert.Equal(t, "hidden", value)
}
