package provision

import (
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/hkdf"
)

const (
	hkdfInfoSigning = "sigil/provision/signing-seed/v1"
	hkdfInfoKEM     = "sigil/provision/kem-seed/v1"
	hkdfInfoTVHash  = "sigil/provision/tvhash-master/v1"

	tvhashMasterLen = 32
)

// EngineKeys holds the seeds every engine key derives from. The three seeds
// are independently expanded from one master seed, so an exported mnemonic
// restores the complete engine identity.
type EngineKeys struct {
	SigningSeed  []byte
	KEMSeed      []byte
	TVHashMaster []byte
}

// DeriveEngineKeys expands a master seed into the engine's key seeds.
// Seed lengths come from the concrete crypto schemes.
func DeriveEngineKeys(seedBytes []byte, signingSeedLen, kemSeedLen int) (*EngineKeys, error) {
	signingSeed, err := hkdfExpand(seedBytes, hkdfInfoSigning, signingSeedLen)
	if err != nil {
		return nil, err
	}
	kemSeed, err := hkdfExpand(seedBytes, hkdfInfoKEM, kemSeedLen)
	if err != nil {
		return nil, err
	}
	master, err := hkdfExpand(seedBytes, hkdfInfoTVHash, tvhashMasterLen)
	if err != nil {
		return nil, err
	}
	return &EngineKeys{
		SigningSeed:  signingSeed,
		KEMSeed:      kemSeed,
		TVHashMaster: master,
	}, nil
}

func hkdfExpand(seed []byte, info string, outLen int) ([]byte, error) {
	reader := hkdf.New(sha256.New, seed, nil, []byte(info))
	out := make([]byte, outLen)
	if _, err := io.ReadFull(reader, out); err != nil {
		return nil, err
	}
	return out, nil
}
