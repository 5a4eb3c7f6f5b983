package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestMergeOverridesOnlySetFields(t *testing.T) {
	dst := DefaultConfig()
	src := EngineFileConfig{
		SkewTolerance:       2 * time.Second,
		ReplayCacheCapacity: 1024,
		ListenAddr:          "127.0.0.1:9000",
	}

	Merge(&dst, src)

	if dst.SkewTolerance != 2*time.Second {
		t.Fatalf("expected skewTolerance=2s, got %s", dst.SkewTolerance)
	}
	if dst.ReplayCacheCapacity != 1024 {
		t.Fatalf("expected replayCacheCapacity=1024, got %d", dst.ReplayCacheCapacity)
	}
	if dst.ListenAddr != "127.0.0.1:9000" {
		t.Fatalf("expected listenAddr=127.0.0.1:9000, got %s", dst.ListenAddr)
	}
	if dst.MaxAge != time.Minute {
		t.Fatalf("unset maxAge must keep default, got %s", dst.MaxAge)
	}
	if dst.TimeBucketWidth != time.Minute {
		t.Fatalf("unset timeBucketWidth must keep default, got %s", dst.TimeBucketWidth)
	}
	if dst.PassphraseEnv != "SIGIL_KEYSTORE_PASSPHRASE" {
		t.Fatalf("unset passphraseEnv must keep default, got %s", dst.PassphraseEnv)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("SIGIL_SKEW_TOLERANCE", "3s")
	t.Setenv("SIGIL_MAX_AGE", "90s")
	t.Setenv("SIGIL_REPLAY_CACHE_CAPACITY", "2048")
	t.Setenv("SIGIL_LISTEN_ADDR", "0.0.0.0:8080")

	cfg := DefaultConfig()
	ApplyEnvOverrides(&cfg)

	if cfg.SkewTolerance != 3*time.Second {
		t.Fatalf("expected skewTolerance=3s, got %s", cfg.SkewTolerance)
	}
	if cfg.MaxAge != 90*time.Second {
		t.Fatalf("expected maxAge=90s, got %s", cfg.MaxAge)
	}
	if cfg.ReplayCacheCapacity != 2048 {
		t.Fatalf("expected replayCacheCapacity=2048, got %d", cfg.ReplayCacheCapacity)
	}
	if cfg.ListenAddr != "0.0.0.0:8080" {
		t.Fatalf("expected listenAddr=0.0.0.0:8080, got %s", cfg.ListenAddr)
	}
}

func TestApplyEnvOverridesIgnoresInvalidValues(t *testing.T) {
	t.Setenv("SIGIL_SKEW_TOLERANCE", "not-a-duration")
	t.Setenv("SIGIL_MAX_AGE", "-10s")
	t.Setenv("SIGIL_REPLAY_CACHE_CAPACITY", "zero")

	cfg := DefaultConfig()
	ApplyEnvOverrides(&cfg)

	if cfg.SkewTolerance != 5*time.Second {
		t.Fatalf("invalid env value must not change skewTolerance, got %s", cfg.SkewTolerance)
	}
	if cfg.MaxAge != time.Minute {
		t.Fatalf("negative env value must not change maxAge, got %s", cfg.MaxAge)
	}
	if cfg.ReplayCacheCapacity != 65536 {
		t.Fatalf("invalid env value must not change replayCacheCapacity, got %d", cfg.ReplayCacheCapacity)
	}
}

func TestLoadFromPathMergesFileOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "engine.yaml")
	data := []byte("engine:\n  maxAge: 120000000000\n  keystorePath: /var/lib/sigil/keystore.bin\n")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg := LoadFromPath(path)

	if cfg.MaxAge != 2*time.Minute {
		t.Fatalf("expected maxAge=2m from file, got %s", cfg.MaxAge)
	}
	if cfg.KeystorePath != "/var/lib/sigil/keystore.bin" {
		t.Fatalf("expected keystorePath from file, got %s", cfg.KeystorePath)
	}
	if cfg.SkewTolerance != 5*time.Second {
		t.Fatalf("unset skewTolerance must keep default, got %s", cfg.SkewTolerance)
	}
}

func TestLoadFromPathMissingFileFallsBackToDefaults(t *testing.T) {
	cfg := LoadFromPath(filepath.Join(t.TempDir(), "absent.yaml"))
	if cfg != DefaultConfig() {
		t.Fatalf("expected defaults for missing file, got %+v", cfg)
	}
}
