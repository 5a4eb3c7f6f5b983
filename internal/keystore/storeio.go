package keystore

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// KeyMaterial is the plaintext payload sealed into a keystore file: the seeds
// the engine derives its signing and KEM key pairs from.
type KeyMaterial struct {
	SigningSeed  []byte `json:"signing_seed"`
	KEMSeed      []byte `json:"kem_seed"`
	TVHashMaster []byte `json:"tvhash_master"`
}

// SaveKeyMaterial seals key material with the passphrase and writes it to path.
func SaveKeyMaterial(path, passphrase string, km KeyMaterial) error {
	payload, err := json.Marshal(km)
	if err != nil {
		return err
	}
	sealed, err := Seal(passphrase, payload)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(path, sealed, 0o600)
}

// LoadKeyMaterial reads and opens a sealed keystore file.
func LoadKeyMaterial(path, passphrase string) (KeyMaterial, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return KeyMaterial{}, err
	}
	payload, err := Open(passphrase, raw)
	if err != nil {
		return KeyMaterial{}, err
	}
	var km KeyMaterial
	if err := json.Unmarshal(payload, &km); err != nil {
		return KeyMaterial{}, ErrInvalid
	}
	return km, nil
}
