package provision

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"sigil-attest/go-engine/internal/keystore"
	"sigil-attest/go-engine/internal/pqc"
)

const testMnemonic = "legal winner thank year wave sausage worth useful legal winner thank year wave sausage worth useful legal winner thank year wave sausage worth title"

func TestDeriveEngineKeysIsDeterministic(t *testing.T) {
	seed := bytes.Repeat([]byte{0x42}, 64)
	k1, err := DeriveEngineKeys(seed, 32, 64)
	if err != nil {
		t.Fatalf("derive failed: %v", err)
	}
	k2, err := DeriveEngineKeys(seed, 32, 64)
	if err != nil {
		t.Fatalf("derive failed: %v", err)
	}
	if !bytes.Equal(k1.SigningSeed, k2.SigningSeed) ||
		!bytes.Equal(k1.KEMSeed, k2.KEMSeed) ||
		!bytes.Equal(k1.TVHashMaster, k2.TVHashMaster) {
		t.Fatal("derivation must be deterministic")
	}
	if bytes.Equal(k1.SigningSeed, k1.KEMSeed[:32]) {
		t.Fatal("signing and kem seeds must be domain-separated")
	}
	if len(k1.SigningSeed) != 32 || len(k1.KEMSeed) != 64 {
		t.Fatalf("unexpected seed lengths: %d %d", len(k1.SigningSeed), len(k1.KEMSeed))
	}
}

func TestImportRejectsInvalidMnemonic(t *testing.T) {
	s := NewSeedManager(32, 64)
	if _, _, err := s.Import("not a mnemonic", "password"); !errors.Is(err, ErrInvalidMnemonic) {
		t.Fatalf("expected ErrInvalidMnemonic, got %v", err)
	}
	if _, _, err := s.Import("", "password"); !errors.Is(err, ErrMnemonicRequired) {
		t.Fatalf("expected ErrMnemonicRequired, got %v", err)
	}
	if _, _, err := s.Import(testMnemonic, " "); !errors.Is(err, ErrPasswordRequired) {
		t.Fatalf("expected ErrPasswordRequired, got %v", err)
	}
}

func TestImportExportRoundTrip(t *testing.T) {
	s := NewSeedManager(32, 64)
	normalized, keys, err := s.Import("  "+testMnemonic+"  ", "password")
	if err != nil {
		t.Fatalf("import failed: %v", err)
	}
	if normalized != testMnemonic {
		t.Fatalf("mnemonic not normalized: %q", normalized)
	}
	if keys == nil || len(keys.SigningSeed) != 32 {
		t.Fatalf("unexpected keys: %+v", keys)
	}
	exported, err := s.Export("password")
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}
	if exported != testMnemonic {
		t.Fatal("export must return the imported mnemonic")
	}
}

func TestCreateThenImportRestoresSameKeys(t *testing.T) {
	s := NewSeedManager(32, 64)
	mnemonic, created, err := s.Create("password")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	restored, imported, err := NewSeedManager(32, 64).Import(mnemonic, "other-password")
	if err != nil {
		t.Fatalf("import failed: %v", err)
	}
	if restored != mnemonic {
		t.Fatal("import must accept the created mnemonic")
	}
	if !bytes.Equal(created.SigningSeed, imported.SigningSeed) {
		t.Fatal("same mnemonic must restore the same engine keys")
	}
}

func TestExportBacksOffAfterFailedAttempts(t *testing.T) {
	current := time.Unix(1000, 0)
	s := newSeedManagerWithClock(32, 64, func() time.Time { return current })
	if _, _, err := s.Import(testMnemonic, "password"); err != nil {
		t.Fatalf("import failed: %v", err)
	}
	if _, err := s.Export("wrong"); !errors.Is(err, ErrInvalidPassword) {
		t.Fatalf("expected ErrInvalidPassword, got %v", err)
	}
	if _, err := s.Export("password"); !errors.Is(err, ErrPasswordLocked) {
		t.Fatalf("expected ErrPasswordLocked during backoff, got %v", err)
	}
	current = current.Add(2 * time.Second)
	if _, err := s.Export("password"); err != nil {
		t.Fatalf("export after backoff failed: %v", err)
	}
}

func TestChangePassword(t *testing.T) {
	s := NewSeedManager(32, 64)
	if _, _, err := s.Import(testMnemonic, "old"); err != nil {
		t.Fatalf("import failed: %v", err)
	}
	if err := s.ChangePassword("old", "new"); err != nil {
		t.Fatalf("change password failed: %v", err)
	}
	if _, err := s.Export("old"); !errors.Is(err, ErrInvalidPassword) {
		t.Fatalf("old password must stop working, got %v", err)
	}
	if _, err := s.Export("new"); err != nil {
		t.Fatalf("export with new password failed: %v", err)
	}
}

func TestEscrowRoundTrip(t *testing.T) {
	kem := pqc.NewMLKEM()
	pub, priv, err := kem.GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate recipient keys failed: %v", err)
	}
	km := keystore.KeyMaterial{
		SigningSeed:  bytes.Repeat([]byte{1}, 32),
		KEMSeed:      bytes.Repeat([]byte{2}, 64),
		TVHashMaster: bytes.Repeat([]byte{3}, 32),
	}
	esc, err := EscrowKeyMaterial(kem, pub, km)
	if err != nil {
		t.Fatalf("escrow failed: %v", err)
	}
	recovered, err := RecoverKeyMaterial(kem, priv, esc)
	if err != nil {
		t.Fatalf("recover failed: %v", err)
	}
	if !bytes.Equal(recovered.SigningSeed, km.SigningSeed) {
		t.Fatal("recovered material must match")
	}
}

func TestEscrowRejectsTampering(t *testing.T) {
	kem := pqc.NewMLKEM()
	pub, priv, err := kem.GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate recipient keys failed: %v", err)
	}
	km := keystore.KeyMaterial{SigningSeed: bytes.Repeat([]byte{1}, 32)}
	esc, err := EscrowKeyMaterial(kem, pub, km)
	if err != nil {
		t.Fatalf("escrow failed: %v", err)
	}
	esc.Sealed[0] ^= 0xFF
	if _, err := RecoverKeyMaterial(kem, priv, esc); !errors.Is(err, ErrEscrowInvalid) {
		t.Fatalf("expected ErrEscrowInvalid, got %v", err)
	}
}
