package hardware

import (
	"crypto/subtle"
	"errors"
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"sigil-attest/go-engine/pkg/models"

	"github.com/mr-tron/base58/base58"
	"lukechampine.com/blake3"
)

var (
	ErrFingerprintMismatch = errors.New("hardware fingerprint mismatch")
	ErrDegenerateProfile   = errors.New("degenerate hardware profile")
	ErrNoIdentifiers       = errors.New("no stable hardware identifiers available")
)

const (
	fingerprintContext = "sigil/hardware/fingerprint/v1"
	defaultRefreshTTL  = time.Minute
)

var machineIDPaths = []string{
	"/etc/machine-id",
	"/var/lib/dbus/machine-id",
}

// Binder derives the local hardware fingerprint from stable identifiers and
// checks profiles against it. Identifier reads are cached with a short
// refresh interval instead of hitting the filesystem per call.
type Binder struct {
	mu         sync.Mutex
	cached     models.HardwareProfile
	cachedAt   time.Time
	refreshTTL time.Duration
	now        func() time.Time

	// readMachineID is swappable so tests can pin distinct hardware.
	readMachineID func() (string, bool)
}

func NewBinder(refreshTTL time.Duration) *Binder {
	if refreshTTL <= 0 {
		refreshTTL = defaultRefreshTTL
	}
	return &Binder{
		refreshTTL:    refreshTTL,
		now:           time.Now,
		readMachineID: readMachineID,
	}
}

// Profile returns the current hardware profile, recomputing it only after
// the cache refresh interval elapses.
func (b *Binder) Profile() (models.HardwareProfile, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.cachedAt.IsZero() && b.now().Sub(b.cachedAt) < b.refreshTTL {
		return models.CloneProfile(b.cached), nil
	}
	p, err := b.collect()
	if err != nil {
		return models.HardwareProfile{}, err
	}
	b.cached = p
	b.cachedAt = b.now()
	return models.CloneProfile(p), nil
}

// Verify recomputes the expected fingerprint from currently observable
// hardware and compares in constant time. Equality is necessary but not
// sufficient for signal admission: the runtime additionally requires the
// fingerprint to have been bound into the signature.
func (b *Binder) Verify(p models.HardwareProfile) error {
	if p.IsDegenerate() {
		return ErrDegenerateProfile
	}
	current, err := b.Profile()
	if err != nil {
		return err
	}
	if subtle.ConstantTimeCompare(current.Fingerprint, p.Fingerprint) != 1 {
		return ErrFingerprintMismatch
	}
	return nil
}

// ProfileID renders a short human-readable handle for a fingerprint.
func ProfileID(p models.HardwareProfile) string {
	return "hw1_" + base58.Encode(p.Fingerprint)
}

func (b *Binder) collect() (models.HardwareProfile, error) {
	features := make([]string, 0, 4)
	identifiers := make([]string, 0, 4)

	if id, ok := b.readMachineID(); ok {
		features = append(features, "machine-id")
		identifiers = append(identifiers, "machine-id:"+id)
	}
	if host, err := os.Hostname(); err == nil && strings.TrimSpace(host) != "" {
		features = append(features, "hostname")
		identifiers = append(identifiers, "hostname:"+strings.TrimSpace(host))
	}
	if len(identifiers) == 0 {
		return models.HardwareProfile{}, ErrNoIdentifiers
	}
	features = append(features, "os", "arch")
	identifiers = append(identifiers,
		"os:"+runtime.GOOS,
		"arch:"+runtime.GOARCH,
	)

	material := make([]byte, 0, 128)
	material = append(material, []byte(fingerprintContext)...)
	for _, id := range identifiers {
		material = append(material, 0)
		material = append(material, []byte(id)...)
	}
	sum := blake3.Sum256(material)

	return models.HardwareProfile{
		Fingerprint: sum[:],
		Features:    features,
		Capabilities: map[string]string{
			"os":   runtime.GOOS,
			"arch": runtime.GOARCH,
			"cpus": strconv.Itoa(runtime.NumCPU()),
		},
	}, nil
}

func readMachineID() (string, bool) {
	for _, path := range machineIDPaths {
		raw, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		id := strings.TrimSpace(string(raw))
		if id != "" {
			return id, true
		}
	}
	return "", false
}
