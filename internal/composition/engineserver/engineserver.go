package engineserver

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"

	"sigil-attest/go-engine/internal/api"
	"sigil-attest/go-engine/internal/config"
	"sigil-attest/go-engine/internal/entropy"
	"sigil-attest/go-engine/internal/hardware"
	"sigil-attest/go-engine/internal/keystore"
	"sigil-attest/go-engine/internal/pqc"
	"sigil-attest/go-engine/internal/provision"
	"sigil-attest/go-engine/internal/signal"
	"sigil-attest/go-engine/internal/tvhash"
)

const keystoreFileName = "keystore.bin"

// Bundle is a fully wired engine: runtime, metrics registry and API server.
type Bundle struct {
	Runtime  *signal.Runtime
	Registry *prometheus.Registry
	Server   *api.Server

	// Mnemonic is set only when this boot provisioned a fresh seed. The
	// caller must surface it once; it is never persisted in the clear.
	Mnemonic string
}

// Build loads or provisions key material and wires the attestation runtime
// with its HTTP surface.
func Build(cfg config.Config, dataDir string, logger *slog.Logger) (*Bundle, error) {
	if logger == nil {
		logger = slog.Default()
	}
	dataDir, err := resolveDataDir(dataDir)
	if err != nil {
		return nil, err
	}

	km, mnemonic, err := loadOrProvisionKeys(cfg, dataDir, logger)
	if err != nil {
		return nil, err
	}

	signer, err := pqc.DeriveMLDSASigner(km.SigningSeed)
	if err != nil {
		return nil, fmt.Errorf("derive signer: %w", err)
	}
	ent, err := entropy.NewManager()
	if err != nil {
		return nil, fmt.Errorf("entropy manager: %w", err)
	}
	hash, err := tvhash.NewEngine(km.TVHashMaster, cfg.TimeBucketWidth)
	if err != nil {
		return nil, fmt.Errorf("time-variant hash: %w", err)
	}
	binder := hardware.NewBinder(cfg.HardwareRefreshInterval)

	rt, err := signal.NewRuntime(signal.Config{
		SkewTolerance:  cfg.SkewTolerance,
		MaxAge:         cfg.MaxAge,
		BucketWidth:    cfg.TimeBucketWidth,
		ReplayCapacity: cfg.ReplayCacheCapacity,
	}, ent, binder, hash, signer, signer.Verifier())
	if err != nil {
		return nil, fmt.Errorf("signal runtime: %w", err)
	}

	registry := prometheus.NewRegistry()
	rt.SetMetrics(signal.NewMetrics(registry))

	if profile, err := rt.CurrentHardwareProfile(); err == nil {
		logger.Info("hardware binding established", "profile_id", hardware.ProfileID(profile))
	}

	escrower := provision.NewEscrower(pqc.NewMLKEM(), km)
	return &Bundle{
		Runtime:  rt,
		Registry: registry,
		Server:   api.NewServer(cfg.ListenAddr, rt, escrower, logger, registry),
		Mnemonic: mnemonic,
	}, nil
}

func loadOrProvisionKeys(cfg config.Config, dataDir string, logger *slog.Logger) (keystore.KeyMaterial, string, error) {
	passphrase := os.Getenv(cfg.PassphraseEnv)
	if passphrase == "" {
		return keystore.KeyMaterial{}, "", fmt.Errorf("keystore passphrase env %s is not set", cfg.PassphraseEnv)
	}

	path := cfg.KeystorePath
	if path == "" {
		path = filepath.Join(dataDir, keystoreFileName)
	}

	km, err := keystore.LoadKeyMaterial(path, passphrase)
	if err == nil {
		return km, "", nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return keystore.KeyMaterial{}, "", fmt.Errorf("open keystore: %w", err)
	}

	sm := provision.NewSeedManager(pqc.SigningSeedSize(), pqc.NewMLKEM().SeedSize())
	mnemonic, keys, err := sm.Create(passphrase)
	if err != nil {
		return keystore.KeyMaterial{}, "", fmt.Errorf("provision seed: %w", err)
	}
	km = keystore.KeyMaterial{
		SigningSeed:  keys.SigningSeed,
		KEMSeed:      keys.KEMSeed,
		TVHashMaster: keys.TVHashMaster,
	}
	if err := keystore.SaveKeyMaterial(path, passphrase, km); err != nil {
		return keystore.KeyMaterial{}, "", fmt.Errorf("write keystore: %w", err)
	}
	logger.Info("provisioned new engine keystore", "path", path)
	return km, mnemonic, nil
}

func resolveDataDir(dataDir string) (string, error) {
	if dataDir != "" {
		return dataDir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve data dir: %w", err)
	}
	return filepath.Join(home, ".sigil"), nil
}
