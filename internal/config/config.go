package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the recognized engine configuration surface.
type Config struct {
	SkewTolerance           time.Duration
	MaxAge                  time.Duration
	TimeBucketWidth         time.Duration
	ReplayCacheCapacity     int
	HardwareRefreshInterval time.Duration
	KeystorePath            string
	PassphraseEnv           string
	ListenAddr              string
}

func DefaultConfig() Config {
	return Config{
		SkewTolerance:           5 * time.Second,
		MaxAge:                  time.Minute,
		TimeBucketWidth:         time.Minute,
		ReplayCacheCapacity:     65536,
		HardwareRefreshInterval: time.Minute,
		PassphraseEnv:           "SIGIL_KEYSTORE_PASSPHRASE",
		ListenAddr:              "127.0.0.1:8878",
	}
}

type FileConfig struct {
	Engine EngineFileConfig `yaml:"engine"`
}

type EngineFileConfig struct {
	SkewTolerance           time.Duration `yaml:"skewTolerance"`
	MaxAge                  time.Duration `yaml:"maxAge"`
	TimeBucketWidth         time.Duration `yaml:"timeBucketWidth"`
	ReplayCacheCapacity     int           `yaml:"replayCacheCapacity"`
	HardwareRefreshInterval time.Duration `yaml:"hardwareRefreshInterval"`
	KeystorePath            string        `yaml:"keystorePath"`
	PassphraseEnv           string        `yaml:"passphraseEnv"`
	ListenAddr              string        `yaml:"listenAddr"`
}

// LoadFromPath reads the first parseable candidate config file, merges it
// over defaults and applies env overrides. A missing file is not an error.
func LoadFromPath(configPath string) Config {
	cfg := DefaultConfig()

	candidates := make([]string, 0, 2)
	if configPath != "" {
		candidates = append(candidates, configPath)
	} else {
		candidates = append(candidates,
			"configs/engine.yaml",
			"engine.yaml",
		)
	}

	for _, path := range candidates {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var parsed FileConfig
		if err := yaml.Unmarshal(data, &parsed); err != nil {
			continue
		}
		merged := cfg
		Merge(&merged, parsed.Engine)
		ApplyEnvOverrides(&merged)
		return merged
	}

	ApplyEnvOverrides(&cfg)
	return cfg
}

func Merge(dst *Config, src EngineFileConfig) {
	if src.SkewTolerance != 0 {
		dst.SkewTolerance = src.SkewTolerance
	}
	if src.MaxAge != 0 {
		dst.MaxAge = src.MaxAge
	}
	if src.TimeBucketWidth != 0 {
		dst.TimeBucketWidth = src.TimeBucketWidth
	}
	if src.ReplayCacheCapacity != 0 {
		dst.ReplayCacheCapacity = src.ReplayCacheCapacity
	}
	if src.HardwareRefreshInterval != 0 {
		dst.HardwareRefreshInterval = src.HardwareRefreshInterval
	}
	if src.KeystorePath != "" {
		dst.KeystorePath = src.KeystorePath
	}
	if src.PassphraseEnv != "" {
		dst.PassphraseEnv = src.PassphraseEnv
	}
	if src.ListenAddr != "" {
		dst.ListenAddr = src.ListenAddr
	}
}

func ApplyEnvOverrides(cfg *Config) {
	if d, ok := durationEnv("SIGIL_SKEW_TOLERANCE"); ok {
		cfg.SkewTolerance = d
	}
	if d, ok := durationEnv("SIGIL_MAX_AGE"); ok {
		cfg.MaxAge = d
	}
	if d, ok := durationEnv("SIGIL_TIME_BUCKET_WIDTH"); ok {
		cfg.TimeBucketWidth = d
	}
	if raw := strings.TrimSpace(os.Getenv("SIGIL_REPLAY_CACHE_CAPACITY")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			cfg.ReplayCacheCapacity = n
		}
	}
	if d, ok := durationEnv("SIGIL_HARDWARE_REFRESH_INTERVAL"); ok {
		cfg.HardwareRefreshInterval = d
	}
	if path := strings.TrimSpace(os.Getenv("SIGIL_KEYSTORE_PATH")); path != "" {
		cfg.KeystorePath = path
	}
	if addr := strings.TrimSpace(os.Getenv("SIGIL_LISTEN_ADDR")); addr != "" {
		cfg.ListenAddr = addr
	}
}

func durationEnv(key string) (time.Duration, bool) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return 0, false
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, false
	}
	return d, true
}
