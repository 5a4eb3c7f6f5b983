package pqc

import (
	"fmt"

	"github.com/cloudflare/circl/kem"
	"github.com/cloudflare/circl/kem/mlkem/mlkem768"
)

// MLKEM is the ML-KEM-768 key-encapsulation mechanism.
type MLKEM struct {
	scheme kem.Scheme
}

func NewMLKEM() *MLKEM {
	return &MLKEM{scheme: mlkem768.Scheme()}
}

func (k *MLKEM) GenerateKeyPair() ([]byte, []byte, error) {
	pub, priv, err := k.scheme.GenerateKeyPair()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrCryptoUnavailable, err)
	}
	return marshalKEMPair(pub, priv)
}

// DeriveKeyPair derives a key pair deterministically from a seed of
// SeedSize bytes; provisioning uses it to rebuild keys from the master seed.
func (k *MLKEM) DeriveKeyPair(seed []byte) ([]byte, []byte, error) {
	if len(seed) != k.scheme.SeedSize() {
		return nil, nil, fmt.Errorf("%w: kem seed must be %d bytes", ErrMalformedKey, k.scheme.SeedSize())
	}
	pub, priv := k.scheme.DeriveKeyPair(seed)
	return marshalKEMPair(pub, priv)
}

func (k *MLKEM) Encapsulate(publicKey []byte) ([]byte, []byte, error) {
	pub, err := k.scheme.UnmarshalBinaryPublicKey(publicKey)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrMalformedKey, err)
	}
	ct, ss, err := k.scheme.Encapsulate(pub)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrCryptoUnavailable, err)
	}
	return ct, ss, nil
}

func (k *MLKEM) Decapsulate(privateKey, ciphertext []byte) ([]byte, error) {
	priv, err := k.scheme.UnmarshalBinaryPrivateKey(privateKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedKey, err)
	}
	if len(ciphertext) != k.scheme.CiphertextSize() {
		return nil, fmt.Errorf("%w: ciphertext must be %d bytes", ErrMalformedCiphertext, k.scheme.CiphertextSize())
	}
	ss, err := k.scheme.Decapsulate(priv, ciphertext)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedCiphertext, err)
	}
	return ss, nil
}

func (k *MLKEM) SeedSize() int {
	return k.scheme.SeedSize()
}

func (k *MLKEM) SharedKeySize() int {
	return k.scheme.SharedKeySize()
}

func marshalKEMPair(pub kem.PublicKey, priv kem.PrivateKey) ([]byte, []byte, error) {
	pubRaw, err := pub.MarshalBinary()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrCryptoUnavailable, err)
	}
	privRaw, err := priv.MarshalBinary()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrCryptoUnavailable, err)
	}
	return pubRaw, privRaw, nil
}
