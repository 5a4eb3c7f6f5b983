// Package pqc wraps the lattice-based primitives behind narrow interfaces so
// the runtime and its tests can substitute deterministic implementations.
package pqc

import "errors"

var (
	ErrCryptoUnavailable   = errors.New("crypto layer unavailable")
	ErrMalformedCiphertext = errors.New("malformed kem ciphertext")
	ErrMalformedKey        = errors.New("malformed key material")
)

// KEM establishes shared secret material between two parties without
// transmitting it directly.
type KEM interface {
	GenerateKeyPair() (publicKey, privateKey []byte, err error)
	Encapsulate(publicKey []byte) (ciphertext, sharedSecret []byte, err error)
	Decapsulate(privateKey, ciphertext []byte) (sharedSecret []byte, err error)
}

// Signer produces authenticity tags over messages.
type Signer interface {
	Sign(message []byte) ([]byte, error)
	PublicKey() []byte
}

// Verifier checks authenticity tags. Verify must reject any message/signature
// pair that does not exactly match what was signed.
type Verifier interface {
	Verify(message, signature []byte) bool
}
