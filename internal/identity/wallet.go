package identity

import (
	"crypto/ed25519"
	"encoding/hex"
	"strings"

	"github.com/cockroachdb/errors"
	"golang.org/x/crypto/sha3"
)

// Wallet is a local ed25519 signing identity.
type Wallet struct {
	priv    ed25519.PrivateKey
	address string
}

// NewWallet derives the wallet from a 32-byte seed.
func NewWallet(seed []byte) (*Wallet, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, errors.Newf("wallet seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return &Wallet{priv: priv, address: AddressOf(priv.Public().(ed25519.PublicKey))}, nil
}

// AddressOf is "0x" followed by the last 20 bytes of keccak256(pub), hex.
func AddressOf(pub ed25519.PublicKey) string {
	h := sha3.NewLegacyKeccak256()
	h.Write(pub)
	sum := h.Sum(nil)
	return "0x" + hex.EncodeToString(sum[12:])
}

func (w *Wallet) Address() (string, bool) {
	return w.address, true
}

func (w *Wallet) Sign(msg string) (string, error) {
	return hex.EncodeToString(ed25519.Sign(w.priv, []byte(msg))), nil
}

func (w *Wallet) PublicKey() ed25519.PublicKey {
	return w.priv.Public().(ed25519.PublicKey)
}

// Verify checks a hex signature produced by Sign.
func Verify(pub ed25519.PublicKey, msg, signature string) bool {
	sig, err := hex.DecodeString(strings.TrimPrefix(signature, "0x"))
	if err != nil {
		return false
	}
	return ed25519.Verify(pub, []byte(msg), sig)
}
