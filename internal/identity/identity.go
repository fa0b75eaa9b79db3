// Package identity provides the optional attestation capability: an
// address that identifies the signer and a signature over a payload.
package identity

import "github.com/cockroachdb/errors"

// Sentinel values stored when no attestation identity is available.
const (
	NoAddress   = "no-wallet"
	NoSignature = "no-signature"
)

var ErrNoIdentity = errors.New("no attestation identity available")

// Attestor signs payloads on behalf of the local user.
type Attestor interface {
	// Address returns the signer address, or false when none is available.
	Address() (string, bool)
	// Sign returns a hex signature over msg.
	Sign(msg string) (string, error)
}

// None is the attestor used when no wallet is configured.
type None struct{}

func (None) Address() (string, bool) { return "", false }

func (None) Sign(string) (string, error) { return "", ErrNoIdentity }

// Attest returns the address and signature for msg, or the sentinel pair
// when a is unavailable or signing fails. ok reports a real attestation.
func Attest(a Attestor, msg string) (address, signature string, ok bool) {
	if a == nil {
		return NoAddress, NoSignature, false
	}
	addr, has := a.Address()
	if !has {
		return NoAddress, NoSignature, false
	}
	sig, err := a.Sign(msg)
	if err != nil {
		return addr, NoSignature, false
	}
	return addr, sig, true
}
