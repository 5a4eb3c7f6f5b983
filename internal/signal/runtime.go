package signal

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"sigil-attest/go-engine/internal/entropy"
	"sigil-attest/go-engine/internal/pqc"
	"sigil-attest/go-engine/internal/tvhash"
	"sigil-attest/go-engine/pkg/models"
)

var (
	ErrDegenerateHardware = errors.New("issuing hardware profile is degenerate")
	ErrHardwareChanged    = errors.New("hardware fingerprint changed since runtime start")
)

// Config is the temporal-validation policy of the runtime.
type Config struct {
	// SkewTolerance bounds how far in the future a timestamp may lie.
	SkewTolerance time.Duration
	// MaxAge bounds how old a signal may be and still validate.
	MaxAge time.Duration
	// BucketWidth is the time-variant hash bucket width.
	BucketWidth time.Duration
	// ReplayCapacity bounds the replay cache entry count.
	ReplayCapacity int
}

func DefaultConfig() Config {
	return Config{
		SkewTolerance:  5 * time.Second,
		MaxAge:         time.Minute,
		BucketWidth:    tvhash.DefaultBucketWidth,
		ReplayCapacity: defaultReplayCapacity,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.SkewTolerance <= 0 {
		c.SkewTolerance = d.SkewTolerance
	}
	if c.MaxAge <= 0 {
		c.MaxAge = d.MaxAge
	}
	if c.BucketWidth <= 0 {
		c.BucketWidth = d.BucketWidth
	}
	if c.ReplayCapacity <= 0 {
		c.ReplayCapacity = d.ReplayCapacity
	}
	return c
}

// HardwareBinder is the hardware dependency of the runtime.
type HardwareBinder interface {
	Profile() (models.HardwareProfile, error)
	Verify(models.HardwareProfile) error
}

// Runtime orchestrates entropy, hardware binding, the time-variant hash and
// the signature scheme to produce and verify signals. It owns the replay
// cache and the temporal-validation policy.
type Runtime struct {
	cfg      Config
	entropy  *entropy.Manager
	binder   HardwareBinder
	hash     *tvhash.Engine
	signer   pqc.Signer
	verifier pqc.Verifier
	replay   *replayCache
	metrics  *Metrics

	// boundFingerprint is the fingerprint signals are issued under; a later
	// mismatch against the live profile is reported as HardwareMismatch
	// rather than a bare signature failure.
	boundFingerprint []byte

	now func() time.Time
}

func NewRuntime(cfg Config, ent *entropy.Manager, binder HardwareBinder, hash *tvhash.Engine, signer pqc.Signer, verifier pqc.Verifier) (*Runtime, error) {
	cfg = cfg.withDefaults()
	profile, err := binder.Profile()
	if err != nil {
		return nil, fmt.Errorf("hardware profile: %w", err)
	}
	if profile.IsDegenerate() {
		return nil, ErrDegenerateHardware
	}
	return &Runtime{
		cfg:              cfg,
		entropy:          ent,
		binder:           binder,
		hash:             hash,
		signer:           signer,
		verifier:         verifier,
		replay:           newReplayCache(cfg.ReplayCapacity, cfg.MaxAge),
		boundFingerprint: append([]byte(nil), profile.Fingerprint...),
		now:              time.Now,
	}, nil
}

func (r *Runtime) SetMetrics(m *Metrics) {
	r.metrics = m
}

func (r *Runtime) Config() Config {
	return r.cfg
}

// Generate issues a signal over payload. Failures are fatal to the call;
// no partially constructed signal is ever returned.
func (r *Runtime) Generate(payload []byte) (models.SignalState, error) {
	sig, err := r.generate(payload)
	r.metrics.observeGenerated(err)
	return sig, err
}

func (r *Runtime) generate(payload []byte) (models.SignalState, error) {
	ts := r.now().UnixNano()
	ent, err := r.entropy.Next()
	if err != nil {
		return models.SignalState{}, fmt.Errorf("entropy: %w", err)
	}
	profile, err := r.binder.Profile()
	if err != nil {
		return models.SignalState{}, fmt.Errorf("hardware profile: %w", err)
	}
	// Generation and validation must agree on one binding: signals are only
	// minted while the live fingerprint still matches the one pinned at start.
	if subtle.ConstantTimeCompare(profile.Fingerprint, r.boundFingerprint) != 1 {
		return models.SignalState{}, ErrHardwareChanged
	}
	msg := boundMessage(ts, ent, payload, r.boundFingerprint)
	digest := r.hash.DigestAt(ts, msg)
	sigBytes, err := r.signer.Sign(digest[:])
	if err != nil {
		return models.SignalState{}, fmt.Errorf("sign: %w", err)
	}
	return models.SignalState{
		Timestamp:    ts,
		EntropyState: ent,
		Data:         append([]byte(nil), payload...),
		Signature:    sigBytes,
	}, nil
}

// Validate runs the four-check admission: temporal window, hardware binding,
// signature over the recomputed time-variant digest, and replay. All four
// must pass; the first failure short-circuits with its specific outcome.
// Operational faults surface as an error distinct from any rejection.
func (r *Runtime) Validate(sig models.SignalState) (models.ValidationOutcome, error) {
	outcome, err := r.validate(sig)
	r.metrics.observeValidated(outcome.Code, err)
	return outcome, err
}

func (r *Runtime) validate(sig models.SignalState) (models.ValidationOutcome, error) {
	if sig.Timestamp <= 0 || len(sig.Signature) == 0 {
		return models.Reject(models.OutcomeMalformedInput, "missing timestamp or signature"), nil
	}

	now := r.now().UnixNano()
	age := time.Duration(now - sig.Timestamp)
	if age < -r.cfg.SkewTolerance {
		return models.Reject(models.OutcomeFutureTimestamp, "timestamp exceeds skew tolerance"), nil
	}
	if age > r.cfg.MaxAge {
		return models.Reject(models.OutcomeExpiredSignal, "signal older than max age"), nil
	}

	profile, err := r.binder.Profile()
	if err != nil {
		return models.ValidationOutcome{}, fmt.Errorf("hardware profile: %w", err)
	}
	if profile.IsDegenerate() || subtle.ConstantTimeCompare(profile.Fingerprint, r.boundFingerprint) != 1 {
		return models.Reject(models.OutcomeHardwareMismatch, "fingerprint does not match issuing hardware"), nil
	}

	// Key on the signal's own bucket so a signal validated just across a
	// bucket boundary still reproduces its generation digest.
	msg := boundMessage(sig.Timestamp, sig.EntropyState, sig.Data, profile.Fingerprint)
	digest := r.hash.DigestAt(sig.Timestamp, msg)
	if !r.verifier.Verify(digest[:], sig.Signature) {
		return models.Reject(models.OutcomeSignatureInvalid, "signature does not cover bound fields"), nil
	}

	if !r.replay.admit(replayKey{entropy: sig.EntropyState, timestamp: sig.Timestamp}, now) {
		return models.Reject(models.OutcomeReplayDetected, "signal already consumed"), nil
	}
	return models.Accept(), nil
}

// CurrentHardwareProfile exposes the binder's live profile.
func (r *Runtime) CurrentHardwareProfile() (models.HardwareProfile, error) {
	return r.binder.Profile()
}

// ValidateHardwareBinding checks a profile against live hardware without
// running full signal validation. Degenerate profiles always fail.
func (r *Runtime) ValidateHardwareBinding(profile models.HardwareProfile) bool {
	if profile.IsDegenerate() {
		return false
	}
	return r.binder.Verify(profile) == nil
}
