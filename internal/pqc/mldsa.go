package pqc

import (
	"fmt"

	"github.com/cloudflare/circl/sign"
	"github.com/cloudflare/circl/sign/mldsa/mldsa65"
)

// MLDSASigner signs digests with ML-DSA-65.
type MLDSASigner struct {
	priv sign.PrivateKey
	pub  sign.PublicKey
}

func NewMLDSASigner() (*MLDSASigner, error) {
	pub, priv, err := mldsa65.Scheme().GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCryptoUnavailable, err)
	}
	return &MLDSASigner{priv: priv, pub: pub}, nil
}

// DeriveMLDSASigner rebuilds the signing key pair deterministically from a
// seed of SigningSeedSize bytes.
func DeriveMLDSASigner(seed []byte) (*MLDSASigner, error) {
	scheme := mldsa65.Scheme()
	if len(seed) != scheme.SeedSize() {
		return nil, fmt.Errorf("%w: signing seed must be %d bytes", ErrMalformedKey, scheme.SeedSize())
	}
	pub, priv := scheme.DeriveKey(seed)
	return &MLDSASigner{priv: priv, pub: pub}, nil
}

func (s *MLDSASigner) Sign(message []byte) ([]byte, error) {
	if s == nil || s.priv == nil {
		return nil, ErrCryptoUnavailable
	}
	return mldsa65.Scheme().Sign(s.priv, message, nil), nil
}

func (s *MLDSASigner) PublicKey() []byte {
	if s == nil || s.pub == nil {
		return nil
	}
	raw, err := s.pub.MarshalBinary()
	if err != nil {
		return nil
	}
	return raw
}

func (s *MLDSASigner) Verifier() *MLDSAVerifier {
	return &MLDSAVerifier{pub: s.pub}
}

// MLDSAVerifier verifies ML-DSA-65 signatures.
type MLDSAVerifier struct {
	pub sign.PublicKey
}

func NewMLDSAVerifier(publicKey []byte) (*MLDSAVerifier, error) {
	pub, err := mldsa65.Scheme().UnmarshalBinaryPublicKey(publicKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedKey, err)
	}
	return &MLDSAVerifier{pub: pub}, nil
}

func (v *MLDSAVerifier) Verify(message, signature []byte) bool {
	if v == nil || v.pub == nil {
		return false
	}
	return mldsa65.Scheme().Verify(v.pub, message, signature, nil)
}

func SigningSeedSize() int {
	return mldsa65.Scheme().SeedSize()
}

func SignatureSize() int {
	return mldsa65.Scheme().SignatureSize()
}
