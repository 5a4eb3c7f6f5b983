package provision

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"

	"sigil-attest/go-engine/internal/keystore"
	"sigil-attest/go-engine/internal/pqc"

	"golang.org/x/crypto/chacha20poly1305"
)

var ErrEscrowInvalid = errors.New("escrow payload is invalid")

// EscrowedKeys is the transportable form of engine key material: the seeds
// encrypted under a secret established with the recipient's KEM public key,
// so the secret itself never crosses the wire.
type EscrowedKeys struct {
	KEMCiphertext []byte `json:"kem_ciphertext"`
	Nonce         []byte `json:"nonce"`
	Sealed        []byte `json:"sealed"`
}

// Escrower holds an engine's key material for wrapping to enrollment peers.
type Escrower struct {
	kem pqc.KEM
	km  keystore.KeyMaterial
}

func NewEscrower(kem pqc.KEM, km keystore.KeyMaterial) *Escrower {
	return &Escrower{kem: kem, km: km}
}

// Escrow wraps the held key material for the holder of recipientPublicKey.
func (e *Escrower) Escrow(recipientPublicKey []byte) (EscrowedKeys, error) {
	return EscrowKeyMaterial(e.kem, recipientPublicKey, e.km)
}

// EscrowKeyMaterial encrypts key material for the holder of recipientPublicKey.
func EscrowKeyMaterial(kem pqc.KEM, recipientPublicKey []byte, km keystore.KeyMaterial) (EscrowedKeys, error) {
	ct, ss, err := kem.Encapsulate(recipientPublicKey)
	if err != nil {
		return EscrowedKeys{}, err
	}
	key, err := expandEscrowKey(ss)
	if err != nil {
		return EscrowedKeys{}, err
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return EscrowedKeys{}, err
	}
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return EscrowedKeys{}, err
	}
	payload, err := json.Marshal(km)
	if err != nil {
		return EscrowedKeys{}, err
	}
	// The KEM ciphertext rides as associated data so it cannot be swapped.
	sealed := aead.Seal(nil, nonce, payload, ct)
	return EscrowedKeys{KEMCiphertext: ct, Nonce: nonce, Sealed: sealed}, nil
}

// RecoverKeyMaterial reverses EscrowKeyMaterial on the recipient side.
func RecoverKeyMaterial(kem pqc.KEM, recipientPrivateKey []byte, esc EscrowedKeys) (keystore.KeyMaterial, error) {
	ss, err := kem.Decapsulate(recipientPrivateKey, esc.KEMCiphertext)
	if err != nil {
		return keystore.KeyMaterial{}, err
	}
	key, err := expandEscrowKey(ss)
	if err != nil {
		return keystore.KeyMaterial{}, err
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return keystore.KeyMaterial{}, err
	}
	if len(esc.Nonce) != chacha20poly1305.NonceSizeX {
		return keystore.KeyMaterial{}, ErrEscrowInvalid
	}
	payload, err := aead.Open(nil, esc.Nonce, esc.Sealed, esc.KEMCiphertext)
	if err != nil {
		return keystore.KeyMaterial{}, fmt.Errorf("%w: %v", ErrEscrowInvalid, err)
	}
	var km keystore.KeyMaterial
	if err := json.Unmarshal(payload, &km); err != nil {
		return keystore.KeyMaterial{}, ErrEscrowInvalid
	}
	return km, nil
}

func expandEscrowKey(sharedSecret []byte) ([]byte, error) {
	return hkdfExpand(sharedSecret, "sigil/provision/escrow-key/v1", chacha20poly1305.KeySize)
}
