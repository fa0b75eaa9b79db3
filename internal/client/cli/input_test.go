package cli

import (
	"bufio"
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rdr(s string) *bufio.Reader {
	return bufio.NewReader(strings.NewReader(s))
}

func TestGetSimpleText(t *testing.T) {
	var out bytes.Buffer
	got, err := GetSimpleText(rdr("hello world\n"), "Name?", &out)
	require.NoError(t, err)
	assert.Equal(t, "hello world", got)
	assert.Equal(t, "Name?\n> ", out.String())
}

func TestGetSimpleTextEOF(t *testing.T) {
	var out bytes.Buffer
	got, err := GetSimpleText(rdr("lastline"), "Name?", &out)
	require.NoError(t, err)
	assert.Equal(t, "lastline", got)

	_, err = GetSimpleText(rdr(""), "Name?", &out)
	assert.Error(t, err)
}

func TestConfirm(t *testing.T) {
	tests := map[string]bool{
		"y\n":    true,
		"YES\n":  true,
		"n\n":    false,
		"\n":     false,
		"sure\n": false,
	}
	for in, want := range tests {
		var out bytes.Buffer
		got, err := Confirm(rdr(in), "Really?", &out)
		require.NoError(t, err)
		assert.Equal(t, want, got, "input %q", in)
	}
}

func TestGetPassword(t *testing.T) {
	old := readPassword
	defer func() { readPassword = old }()

	readPassword = func(int) ([]byte, error) { return []byte("s3cret"), nil }
	var out bytes.Buffer
	pw, err := GetPassword(&out, "Group password")
	require.NoError(t, err)
	assert.Equal(t, "s3cret", string(pw))
	assert.Equal(t, "Group password: \n", out.String())

	readPassword = func(int) ([]byte, error) { return nil, errors.New("boom") }
	_, err = GetPassword(&out, "Group password")
	assert.Error(t, err)
}

func TestWipe(t *testing.T) {
	b := []byte("secret")
	wipe(b)
	assert.Equal(t, make([]byte, 6), b)
}
