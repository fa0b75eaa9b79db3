package identity

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingSigner struct{}

func (failingSigner) Address() (string, bool)     { return "0xabc", true }
func (failingSigner) Sign(string) (string, error) { return "", errors.New("user rejected") }

func TestAttest(t *testing.T) {
	w, err := NewWallet(bytes.Repeat([]byte{7}, 32))
	require.NoError(t, err)

	tests := []struct {
		name     string
		a        Attestor
		wantAddr string
		wantOK   bool
		wantSig  func(string) bool
	}{
		{"nil attestor", nil, NoAddress, false, func(s string) bool { return s == NoSignature }},
		{"none", None{}, NoAddress, false, func(s string) bool { return s == NoSignature }},
		{"signer fails", failingSigner{}, "0xabc", false, func(s string) bool { return s == NoSignature }},
		{"wallet", w, w.address, true, func(s string) bool { return len(s) == 128 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			addr, sig, ok := Attest(tt.a, "Message: hi")
			assert.Equal(t, tt.wantAddr, addr)
			assert.Equal(t, tt.wantOK, ok)
			assert.True(t, tt.wantSig(sig), "unexpected signature %q", sig)
		})
	}
}

func TestWallet_AddressAndSignature(t *testing.T) {
	w, err := NewWallet(bytes.Repeat([]byte{1}, 32))
	require.NoError(t, err)

	addr, ok := w.Address()
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(addr, "0x"))
	assert.Len(t, addr, 42)

	w2, err := NewWallet(bytes.Repeat([]byte{1}, 32))
	require.NoError(t, err)
	addr2, _ := w2.Address()
	assert.Equal(t, addr, addr2, "address is deterministic per seed")

	sig, err := w.Sign("Create Group: Team")
	require.NoError(t, err)
	assert.True(t, Verify(w.PublicKey(), "Create Group: Team", sig))
	assert.False(t, Verify(w.PublicKey(), "Create Group: Other", sig))
	assert.False(t, Verify(w.PublicKey(), "Create Group: Team", "zz"))
}

func TestNewWallet_BadSeed(t *testing.T) {
	_, err := NewWallet([]byte("short"))
	assert.Error(t, err)
}

func TestKeystore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys", "wallet.json")

	created, err := CreateKeystore(path, []byte("hunter2"))
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	opened, err := OpenKeystore(path, []byte("hunter2"))
	require.NoError(t, err)
	a1, _ := created.Address()
	a2, _ := opened.Address()
	assert.Equal(t, a1, a2)

	_, err = OpenKeystore(path, []byte("wrong"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBadPassphrase))
}
