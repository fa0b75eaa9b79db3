package identity

import (
	"crypto/ed25519"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"github.com/dmitrijs2005/groupsync/internal/cryptox"
)

var ErrBadPassphrase = errors.New("keystore: wrong passphrase or corrupted file")

// keystoreFile is the on-disk format. Byte fields are base64 via encoding/json.
type keystoreFile struct {
	Address    string `json:"address"`
	Salt       []byte `json:"salt"`
	Nonce      []byte `json:"nonce"`
	Ciphertext []byte `json:"ciphertext"`
}

// CreateKeystore generates a new wallet and writes its seed to path,
// sealed under passphrase.
func CreateKeystore(path string, passphrase []byte) (*Wallet, error) {
	seed, err := cryptox.RandomBytes(ed25519.SeedSize)
	if err != nil {
		return nil, err
	}
	w, err := NewWallet(seed)
	if err != nil {
		return nil, err
	}

	salt, err := cryptox.RandomBytes(16)
	if err != nil {
		return nil, err
	}
	ct, nonce, err := cryptox.Seal(seed, cryptox.DeriveKey(passphrase, salt))
	if err != nil {
		return nil, err
	}

	b, err := json.MarshalIndent(keystoreFile{
		Address:    w.address,
		Salt:       salt,
		Nonce:      nonce,
		Ciphertext: ct,
	}, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "encode keystore")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, errors.Wrap(err, "create keystore dir")
	}
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return nil, errors.Wrap(err, "write keystore")
	}
	return w, nil
}

// OpenKeystore decrypts the wallet stored at path.
func OpenKeystore(path string, passphrase []byte) (*Wallet, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read keystore")
	}
	var f keystoreFile
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, errors.Wrap(err, "decode keystore")
	}

	seed, err := cryptox.Open(f.Ciphertext, f.Nonce, cryptox.DeriveKey(passphrase, f.Salt))
	if err != nil {
		return nil, errors.Mark(err, ErrBadPassphrase)
	}
	w, err := NewWallet(seed)
	if err != nil {
		return nil, err
	}
	if f.Address != "" && f.Address != w.address {
		return nil, errors.Wrap(ErrBadPassphrase, "address mismatch")
	}
	return w, nil
}
