package hardware

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"sigil-attest/go-engine/pkg/models"
)

func newTestBinder(machineID string) *Binder {
	b := NewBinder(time.Minute)
	b.readMachineID = func() (string, bool) { return machineID, true }
	return b
}

func TestProfileIsDeterministicForSameInstance(t *testing.T) {
	b := newTestBinder("instance-a")
	p1, err := b.Profile()
	if err != nil {
		t.Fatalf("profile failed: %v", err)
	}
	p2, err := b.Profile()
	if err != nil {
		t.Fatalf("profile failed: %v", err)
	}
	if !bytes.Equal(p1.Fingerprint, p2.Fingerprint) {
		t.Fatal("fingerprint must be stable for the same instance")
	}
	if p1.IsDegenerate() {
		t.Fatalf("collected profile must not be degenerate: %+v", p1)
	}
}

func TestProfileDiffersAcrossInstances(t *testing.T) {
	pa, err := newTestBinder("instance-a").Profile()
	if err != nil {
		t.Fatalf("profile failed: %v", err)
	}
	pb, err := newTestBinder("instance-b").Profile()
	if err != nil {
		t.Fatalf("profile failed: %v", err)
	}
	if bytes.Equal(pa.Fingerprint, pb.Fingerprint) {
		t.Fatal("different machine ids must not collide")
	}
}

func TestVerifyAcceptsOwnProfile(t *testing.T) {
	b := newTestBinder("instance-a")
	p, err := b.Profile()
	if err != nil {
		t.Fatalf("profile failed: %v", err)
	}
	if err := b.Verify(p); err != nil {
		t.Fatalf("own profile must verify: %v", err)
	}
}

func TestVerifyRejectsDegenerateProfile(t *testing.T) {
	b := newTestBinder("instance-a")
	spoofed := models.HardwareProfile{
		Fingerprint:  make([]byte, models.FingerprintSize),
		Features:     nil,
		Capabilities: nil,
	}
	if err := b.Verify(spoofed); !errors.Is(err, ErrDegenerateProfile) {
		t.Fatalf("expected ErrDegenerateProfile, got %v", err)
	}
}

func TestVerifyRejectsForeignFingerprint(t *testing.T) {
	b := newTestBinder("instance-a")
	foreign, err := newTestBinder("instance-b").Profile()
	if err != nil {
		t.Fatalf("profile failed: %v", err)
	}
	if err := b.Verify(foreign); !errors.Is(err, ErrFingerprintMismatch) {
		t.Fatalf("expected ErrFingerprintMismatch, got %v", err)
	}
}

func TestProfileCacheRespectsRefreshInterval(t *testing.T) {
	calls := 0
	b := NewBinder(time.Minute)
	b.readMachineID = func() (string, bool) {
		calls++
		return "instance-a", true
	}
	base := time.Now()
	b.now = func() time.Time { return base }

	if _, err := b.Profile(); err != nil {
		t.Fatalf("profile failed: %v", err)
	}
	if _, err := b.Profile(); err != nil {
		t.Fatalf("profile failed: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected one identifier read within the TTL, got %d", calls)
	}

	b.now = func() time.Time { return base.Add(2 * time.Minute) }
	if _, err := b.Profile(); err != nil {
		t.Fatalf("profile failed: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected a re-read after the TTL, got %d", calls)
	}
}

func TestProfileID(t *testing.T) {
	p, err := newTestBinder("instance-a").Profile()
	if err != nil {
		t.Fatalf("profile failed: %v", err)
	}
	id := ProfileID(p)
	if !strings.HasPrefix(id, "hw1_") || len(id) < 12 {
		t.Fatalf("unexpected profile id %q", id)
	}
}
